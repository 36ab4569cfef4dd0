// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/receiver"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "rf/receiver"

// Topics holds the topics the publisher writes to.
type Topics struct {
	Events string // channel transitions
	System string // lifecycle events, retained
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a channel transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(t receiver.Transition) error

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

// Payload represents the MQTT message payload structure.
type Payload struct {
	Receiver TransitionPayload `json:"receiver"`
}

// TransitionPayload contains one channel transition and the levels after it.
type TransitionPayload struct {
	Timestamp string            `json:"timestamp"`
	RunID     string            `json:"run_id,omitempty"`
	Channel   string            `json:"channel"`
	Line      int               `json:"line"`
	State     string            `json:"state"`
	Channels  map[string]string `json:"channels"`
}

// FormatPayload creates the JSON payload for a channel transition.
func FormatPayload(runID string, t receiver.Transition) ([]byte, error) {
	channels := make(map[string]string, logic.NumChannels)
	for _, c := range logic.Channels {
		channels[c.Key()] = logic.LevelString(t.State.Level(c))
	}
	payload := Payload{
		Receiver: TransitionPayload{
			Timestamp: t.Time.UTC().Format(time.RFC3339Nano),
			RunID:     runID,
			Channel:   t.Channel.Key(),
			Line:      t.Line,
			State:     logic.LevelString(t.Level),
			Channels:  channels,
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
