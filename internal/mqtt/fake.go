package mqtt

import (
	"github.com/sweeney/rf-receiver/internal/logic"
	"github.com/sweeney/rf-receiver/internal/receiver"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// RunID is stamped into transition payloads.
	RunID string

	// Transitions contains all channel transitions that were published.
	Transitions []receiver.Transition

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the transition.
func (f *FakePublisher) Publish(t receiver.Transition) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Transitions = append(f.Transitions, t)

	payload, err := FormatPayload(f.RunID, t)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// EventNames returns the names of published system events in order.
func (f *FakePublisher) EventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// ChannelTransitions returns the published transitions of channel c.
func (f *FakePublisher) ChannelTransitions(c logic.Channel) []receiver.Transition {
	var out []receiver.Transition
	for _, t := range f.Transitions {
		if t.Channel == c {
			out = append(out, t)
		}
	}
	return out
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Transitions = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
