package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/rf-receiver/internal/receiver"
)

// DefaultBufferSize is how many messages are kept while the broker is away.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	RunID       string
	BufferSize  int

	// ConnectTimeout bounds the initial connect. The publisher keeps
	// retrying in the background after it expires.
	ConnectTimeout time.Duration

	// OnConnectionChange, if set, is called whenever the connection is
	// established or lost.
	OnConnectionChange func(connected bool)

	Logger *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the broker is unreachable are buffered and replayed, in order, on reconnect.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	runID   string
	logger  *slog.Logger
	onState func(bool)

	mu        sync.Mutex
	buf       *outbox
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. A broker that is not reachable within ConnectTimeout is not an
// error; messages are buffered until it comes up.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: no broker")
	}
	if opts.ClientID == "" {
		opts.ClientID = "rf-receiver"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	p := newPublisher(nil, opts)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if token.WaitTimeout(opts.ConnectTimeout) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		p.logger.Warn("mqtt: broker not reachable yet, buffering", "broker", opts.Broker)
	}
	return p, nil
}

func newPublisher(client paho.Client, opts Options) *RealPublisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RealPublisher{
		client:  client,
		topics:  NewTopics(opts.TopicPrefix),
		runID:   opts.RunID,
		logger:  logger,
		onState: opts.OnConnectionChange,
		buf:     newOutbox(size, logger),
	}
}

// Publish sends a channel transition to the MQTT broker.
func (p *RealPublisher) Publish(t receiver.Transition) error {
	payload, err := FormatPayload(p.runID, t)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(message{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - lifecycle events should not be lost
	return p.send(message{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes msg, or buffers it if the connection is down. Messages still
// buffered from an earlier failed publish are retried first.
// Buffered messages are not an error.
func (p *RealPublisher) send(msg message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return nil
	}
	// Keep order: messages left over from a failed publish go first.
	if p.buf.len() > 0 && !p.flushLocked(p.takeLocked()) {
		p.buf.push(msg)
		return nil
	}
	if err := p.publish(msg); err != nil {
		p.buf.push(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg message) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	p.connected = true

	pending := p.takeLocked()
	if reconnect {
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			pending = append(pending, message{topic: p.topics.System, payload: payload, qos: 1})
		}
	}

	p.flushLocked(pending)
	p.mu.Unlock()

	p.logger.Info("mqtt: connected", "replayed", len(pending), "reconnect", reconnect)
	if p.onState != nil {
		p.onState(true)
	}
}

// takeLocked empties the outbox, logging any messages it had to drop.
// Caller holds p.mu.
func (p *RealPublisher) takeLocked() []message {
	pending, dropped := p.buf.drain()
	if dropped > 0 {
		p.logger.Warn("mqtt: messages lost while undelivered", "dropped", dropped)
	}
	return pending
}

// flushLocked publishes pending in order. On the first failure the rest are
// put back in the outbox and false is returned. Caller holds p.mu.
func (p *RealPublisher) flushLocked(pending []message) bool {
	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.logger.Warn("mqtt: replay failed, re-buffering", "error", err, "remaining", len(pending)-i)
			p.buf.requeue(pending[i:])
			return false
		}
	}
	return true
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	p.logger.Warn("mqtt: connection lost", "error", err)
	if p.onState != nil {
		p.onState(false)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns how many messages are waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.logger.Warn("mqtt: closing with undelivered messages", "count", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
