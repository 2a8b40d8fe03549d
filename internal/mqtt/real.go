package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/logic"
)

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages kept while disconnected
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are kept in an outbox and replayed, oldest first,
// once the client reconnects. Only the latest counter report is replayed.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buffer    *outbox
	connected bool // at least one connection has been established
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker is told to publish a retained OFFLINE event if the daemon
// disappears without a clean shutdown.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := newPublisher(o.BufferSize)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(bufferSize int) *RealPublisher {
	return &RealPublisher{buffer: newOutbox(bufferSize)}
}

// handleConnect replays buffered messages and, on every connection after the
// first, announces the reconnect.
func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	if len(pending) > 0 {
		log.Infof("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Warnf("mqtt: replay to %s failed: %v", m.topic, err)
		}
	}

	if reconnect {
		log.Infof("mqtt: reconnected")
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			log.Warnf("mqtt: publish RECONNECTED: %v", err)
		}
	}
}

// PublishCounters sends a counter report to the MQTT broker.
func (p *RealPublisher) PublishCounters(report logic.CounterReport) error {
	payload, err := FormatPayload(report)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload, report: &report})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(m)
		p.mu.Unlock()
		return nil
	}
	if err := p.send(m); err != nil {
		p.mu.Lock()
		p.buffer.push(m)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
