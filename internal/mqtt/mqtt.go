// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/quad-decoder/internal/logic"
)

// Topic is the MQTT topic for counter reports.
const Topic = "sensors/quadrature/counters"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "sensors/quadrature/system"

// Publisher publishes counter reports and system events to MQTT.
type Publisher interface {
	// PublishCounters sends a counter report to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishCounters(report logic.CounterReport) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT counter message payload structure.
type Payload struct {
	Counters CountersPayload `json:"counters"`
}

// CountersPayload contains one counter report.
type CountersPayload struct {
	Timestamp  string        `json:"timestamp"`
	Iterations uint64        `json:"iterations"`
	Groups     GroupCounters `json:"groups"`
	Deltas     GroupCounters `json:"deltas"`
}

// GroupCounters maps a group name to its four channel values.
type GroupCounters map[string][logic.ChannelsPerGroup]int32

// FormatPayload creates the JSON payload for a counter report.
func FormatPayload(report logic.CounterReport) ([]byte, error) {
	payload := Payload{
		Counters: CountersPayload{
			Timestamp:  report.Timestamp.UTC().Format(time.RFC3339),
			Iterations: report.Iterations,
			Groups:     report.Counters.ByName(),
			Deltas:     report.Deltas.ByName(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
