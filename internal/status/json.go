package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Ready         bool             `json:"ready"`
	Iterations    uint64           `json:"iterations"`
	ReadErrors    uint64           `json:"read_errors"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Counters      CounterGroups    `json:"counters"`
	Samples       map[string]uint8 `json:"samples"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// CounterGroups maps a group name to its four channel counters.
type CounterGroups map[string][logic.ChannelsPerGroup]int32

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend          string `json:"backend"`
	SampleIntervalUs int64  `json:"sample_interval_us"`
	ReportMs         int64  `json:"report_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPPort         string `json:"http_port"`
	SerialDevice     string `json:"serial_device,omitempty"`
}

// CountersJSON is the envelope served by /counters.json.
type CountersJSON struct {
	Counters   CounterGroups `json:"counters"`
	Iterations uint64        `json:"iterations"`
	Timestamp  string        `json:"timestamp"`
}

func sampleBytes(snap logic.Snapshot) map[string]uint8 {
	m := make(map[string]uint8, logic.NumGroups)
	for _, g := range logic.Groups {
		m[g.String()] = snap.Samples[g]
	}
	return m
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.Decoder.Seeded,
		Iterations:    snap.Decoder.Iterations,
		ReadErrors:    snap.ReadErrors,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counters:      snap.Decoder.Counters.ByName(),
		Samples:       sampleBytes(snap.Decoder),
		Config: ConfigJSON{
			Backend:          snap.Config.Backend,
			SampleIntervalUs: snap.Config.SampleIntervalUs,
			ReportMs:         snap.Config.ReportMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			SerialDevice:     snap.Config.SerialDevice,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCountersJSON returns only the counters, for polling clients.
func FormatCountersJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(CountersJSON{
		Counters:   snap.Decoder.Counters.ByName(),
		Iterations: snap.Decoder.Iterations,
		Timestamp:  snap.Now.UTC().Format(time.RFC3339),
	}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
