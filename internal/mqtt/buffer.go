package mqtt

import "log/slog"

// message is a serialized MQTT publish held for replay after reconnection.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a bounded FIFO of messages waiting for the broker. When full, the
// oldest message is dropped so the latest channel levels always survive.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	queue   []message
	limit   int
	dropped int
	logger  *slog.Logger
}

func newOutbox(limit int, logger *slog.Logger) *outbox {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &outbox{limit: limit, logger: logger}
}

func (o *outbox) push(msg message) {
	if len(o.queue) == o.limit {
		if o.dropped == 0 {
			o.logger.Warn("mqtt: buffer full, dropping oldest", "capacity", o.limit)
		}
		o.dropped++
		copy(o.queue, o.queue[1:])
		o.queue[len(o.queue)-1] = msg
		return
	}
	o.queue = append(o.queue, msg)
}

// requeue puts msgs back ahead of anything queued since, keeping the newest
// messages if the total exceeds the limit.
func (o *outbox) requeue(msgs []message) {
	merged := make([]message, 0, len(msgs)+len(o.queue))
	merged = append(merged, msgs...)
	merged = append(merged, o.queue...)
	if excess := len(merged) - o.limit; excess > 0 {
		o.dropped += excess
		merged = merged[excess:]
	}
	o.queue = merged
}

// drain empties the outbox, returning its messages oldest first and how many
// were dropped since the previous drain.
func (o *outbox) drain() ([]message, int) {
	msgs, dropped := o.queue, o.dropped
	o.queue, o.dropped = nil, 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.queue)
}
