// Package status provides a thread-safe status tracker for the quad-decoder daemon.
// It is read by the HTTP handlers and used to build MQTT system payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend          string
	SampleIntervalUs int64
	ReportMs         int64
	HeartbeatMs      int64
	Broker           string
	HTTPPort         string
	SerialDevice     string // empty = register bus disabled
}

// CounterSource provides locked copies of the decoder state.
type CounterSource interface {
	Snapshot() logic.Snapshot
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Decoder       logic.Snapshot
	ReadErrors    uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. Counters are never
// stored here; every Snapshot takes them from the source.
type Tracker struct {
	source CounterSource

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given counter source, start time and config.
func NewTracker(source CounterSource, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		source: source,
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetReadErrors sets the total number of failed group reads.
func (t *Tracker) SetReadErrors(n uint64) {
	t.mu.Lock()
	t.snap.ReadErrors = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if t.source != nil {
		s.Decoder = t.source.Snapshot()
	}
	s.Now = time.Now()
	return s
}
