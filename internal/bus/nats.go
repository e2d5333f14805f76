package bus

import (
	"context"
	"encoding/json"
	"time"

	"qms/ticket-queue/internal/store"
)

// natsPublisher is the part of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards durable outbox events to NATS subjects named
// <prefix>.<event type>.
type NATSSink struct {
	conn   natsPublisher
	prefix string
}

type natsEnvelope struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewNATSSink(conn natsPublisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "queue.events"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Name() string {
	return "nats"
}

func (s *NATSSink) Deliver(_ context.Context, event store.OutboxEvent) error {
	data, err := json.Marshal(natsEnvelope{
		EventID:   event.EventID,
		Type:      event.Type,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.conn.Publish(s.Subject(event.Type), data)
}

func (s *NATSSink) Subject(eventType string) string {
	return s.prefix + "." + eventType
}
