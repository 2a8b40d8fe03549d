package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
	"github.com/sweeney/quad-decoder/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *logic.Decoder) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Backend:     "cdev",
		ReportMs:    1000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	dec := logic.NewDecoder()
	tr := status.NewTracker(dec, start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, dec
}

// turn drives channel A0 one full forward cycle (+4).
func turn(dec *logic.Decoder) {
	for _, s := range []byte{0b10, 0b11, 0b01, 0b00} {
		dec.Apply(logic.GroupA, s)
		dec.EndIteration()
	}
}

func seedAll(dec *logic.Decoder) {
	for _, g := range logic.Groups {
		dec.Seed(g, 0)
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, dec := newTestServer(t)
	seedAll(dec)
	turn(dec)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if sj.Status.Counters["A"][0] != 4 {
		t.Errorf("Counters[A][0]: got %d, want 4", sj.Status.Counters["A"][0])
	}
	if sj.Status.Iterations != 4 {
		t.Errorf("Iterations: got %d, want 4", sj.Status.Iterations)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.ReportMs != 1000 {
		t.Errorf("Config.ReportMs: got %d, want 1000", sj.Status.Config.ReportMs)
	}
}

func TestJSONNotReadyBeforeSeed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Ready {
		t.Error("expected Ready=false before seeding")
	}
	if len(sj.Status.Counters) != logic.NumGroups {
		t.Errorf("expected %d counter groups, got %d", logic.NumGroups, len(sj.Status.Counters))
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestCountersEndpoint(t *testing.T) {
	ts, _, dec := newTestServer(t)
	seedAll(dec)
	turn(dec)
	turn(dec)

	resp, err := http.Get(ts.URL + "/counters.json")
	if err != nil {
		t.Fatalf("GET /counters.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control: got %q, want no-store", cc)
	}

	var cj status.CountersJSON
	if err := json.NewDecoder(resp.Body).Decode(&cj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if cj.Counters["A"] != [4]int32{8, 0, 0, 0} {
		t.Errorf("Counters[A]: got %v, want [8 0 0 0]", cj.Counters["A"])
	}
	if cj.Counters["D"] != [4]int32{} {
		t.Errorf("Counters[D]: got %v, want zeros", cj.Counters["D"])
	}
	if cj.Iterations != 8 {
		t.Errorf("Iterations: got %d, want 8", cj.Iterations)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, dec := newTestServer(t)
	seedAll(dec)
	turn(dec)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	if !strings.Contains(html, `<td id="c-A0">4</td>`) {
		t.Error("expected A0 counter cell with value 4")
	}
	if !strings.Contains(html, `<td id="c-D3">0</td>`) {
		t.Error("expected D3 counter cell")
	}
	if !strings.Contains(html, "00000000") {
		t.Error("expected raw sample bits")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, dec := newTestServer(t)

	// Initially not seeded
	resp1, _ := http.Get(ts.URL + "/index.json")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	seedAll(dec)
	turn(dec)
	tr.SetMQTTConnected(true)
	tr.SetReadErrors(2)

	resp2, _ := http.Get(ts.URL + "/index.json")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.Ready {
		t.Error("expected Ready=true after seeding")
	}
	if sj2.Status.Counters["A"][0] != 4 {
		t.Errorf("Counters[A][0]: got %d, want 4", sj2.Status.Counters["A"][0])
	}
	if sj2.Status.ReadErrors != 2 {
		t.Errorf("ReadErrors: got %d, want 2", sj2.Status.ReadErrors)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
