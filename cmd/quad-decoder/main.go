// Command quad-decoder samples sixteen quadrature encoders, keeps a signed
// position counter per encoder and reports the counters over MQTT, HTTP and
// an optional serial register bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/config"
	"github.com/sweeney/quad-decoder/internal/gpio"
	"github.com/sweeney/quad-decoder/internal/logic"
	"github.com/sweeney/quad-decoder/internal/mqtt"
	"github.com/sweeney/quad-decoder/internal/regbus"
	"github.com/sweeney/quad-decoder/internal/sampler"
	"github.com/sweeney/quad-decoder/internal/status"
	"github.com/sweeney/quad-decoder/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty for defaults)")
	printState := flag.Bool("print-state", false, "Print current raw group state and exit")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")

	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := run(*configPath, *printState, *logLevel); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadConfig(path, logLevel string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openRegbus opens the register bus serial port, or returns nil when no
// device is configured.
func openRegbus(cfg *config.Config) (*regbus.Port, error) {
	if cfg.Serial.Device == "" {
		return nil, nil
	}
	return regbus.OpenSerial(regbus.SerialConfig{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.SerialReadTimeout(),
	})
}

func run(configPath string, printState bool, logLevel string) error {
	cfg, err := loadConfig(configPath, logLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	log.SetLevel(level)

	reader, err := gpio.Open(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		return printGroups(os.Stdout, reader)
	}

	port, err := openRegbus(cfg)
	if err != nil {
		return fmt.Errorf("init register bus: %w", err)
	}
	if port != nil {
		defer port.Close()
	}

	decoder := logic.NewDecoder()
	smp := sampler.New(reader, decoder)
	if err := smp.Seed(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(decoder, time.Now(), status.Config{
		Backend:          cfg.Reader.Backend,
		SampleIntervalUs: cfg.Sampling.IntervalUs,
		ReportMs:         cfg.ReportInterval().Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat().Milliseconds(),
		Broker:           cfg.MQTT.Broker,
		HTTPPort:         cfg.HTTP.Addr,
		SerialDevice:     cfg.Serial.Device,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Errorf("failed to publish startup event: %v", err)
	} else {
		log.Infof("published startup event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// Sampling loop: the only writer of the counters.
	wg.Add(1)
	go func() {
		defer wg.Done()
		var tick <-chan time.Time
		if iv := cfg.SampleInterval(); iv > 0 {
			t := time.NewTicker(iv)
			defer t.Stop()
			tick = t.C
		}
		smp.Run(ctx, tick)
	}()

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	// Start register bus
	if port != nil {
		bus := regbus.NewServer(decoder)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bus.Serve(ctx, port); err != nil {
				log.Errorf("register bus stopped: %v", err)
			}
		}()
		log.Infof("register bus on %s at %d baud", cfg.Serial.Device, cfg.Serial.Baud)
	}

	log.WithFields(log.Fields{
		"backend":   cfg.Reader.Backend,
		"interval":  cfg.SampleInterval(),
		"report":    cfg.ReportInterval(),
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat(),
	}).Info("started")

	// With reports disabled the loop still ticks for heartbeats.
	every, reports := cfg.ReportInterval(), true
	if every <= 0 {
		every, reports = time.Second, false
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(decoder, smp, publisher, publisher, tracker, reports, cfg.Heartbeat(), time.Now, ticker.C, sigCh)

	cancel()
	wg.Wait()
	return err
}

// statsSource reports sampler health.
type statsSource interface {
	Stats() sampler.Stats
}

// reportLoop publishes counter reports, heartbeats and the shutdown event.
// It is owned by the runLoop goroutine.
type reportLoop struct {
	source     status.CounterSource
	stats      statsSource
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	reports    bool
	heartbeat  time.Duration
	reporter   *logic.Reporter
}

func runLoop(source status.CounterSource, stats statsSource, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, reports bool, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	l := &reportLoop{
		source:     source,
		stats:      stats,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		reports:    reports,
		heartbeat:  heartbeat,
		reporter:   logic.NewReporter(now()),
	}

	for {
		select {
		case s := <-sig:
			l.shutdown(now(), s)
			return nil
		case <-tick:
			l.tick(now())
		}
	}
}

// refresh copies connection state and sampler health into the tracker.
func (l *reportLoop) refresh() {
	if l.tracker == nil {
		return
	}
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	if l.stats != nil {
		l.tracker.SetReadErrors(l.stats.Stats().ReadErrors)
	}
}

func (l *reportLoop) tick(t time.Time) {
	snap := l.source.Snapshot()
	l.refresh()

	if !snap.Seeded {
		// Still waiting for baseline
		return
	}

	if l.reports && l.reporter.Changed(snap.Counters) {
		report := l.reporter.Report(snap, t)
		log.Debugf("report: iterations=%d counters=%v", report.Iterations, report.Counters)
		if err := l.publisher.PublishCounters(report); err != nil {
			log.Warnf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}

	// Check for heartbeat
	if hbData := l.reporter.CheckHeartbeat(t, l.heartbeat, snap.Iterations); hbData != nil {
		log.Infof("heartbeat: uptime=%v iterations=%d reports=%d",
			hbData.Uptime, hbData.Iterations, hbData.Reports)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Warnf("heartbeat publish error: %v", err)
		}
	}
}

func (l *reportLoop) shutdown(t time.Time, s os.Signal) {
	log.Infof("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refresh()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Errorf("failed to publish shutdown event: %v", err)
	} else {
		log.Infof("published shutdown event")
	}
}

// printGroups reads every group once and prints the raw byte and the 2-bit
// state of each channel.
func printGroups(w io.Writer, reader gpio.GroupReader) error {
	for _, g := range logic.Groups {
		v, err := reader.ReadGroup(g)
		if err != nil {
			return fmt.Errorf("read group %s: %w", g, err)
		}
		fmt.Fprintf(w, "%s: %08b", g, v)
		for i := 0; i < logic.ChannelsPerGroup; i++ {
			fmt.Fprintf(w, " %s=%02b", logic.Channel{Group: g, Index: i}, logic.PairState(v, i))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
