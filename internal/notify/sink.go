package notify

import (
	"context"
	"encoding/json"
	"log"

	"qms/ticket-queue/internal/store"
)

// Sink turns durable queue events into chat notifications. Only invited
// tickets with a linked subscriber produce a message.
type Sink struct {
	provider Provider
}

func NewSink(provider Provider) *Sink {
	return &Sink{provider: provider}
}

func (s *Sink) Name() string {
	return "notify"
}

func (s *Sink) Deliver(ctx context.Context, event store.OutboxEvent) error {
	if event.Type != store.EventTicketInvited {
		return nil
	}
	var payload store.TicketEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}
	if payload.Ticket.SubscriberID == nil || *payload.Ticket.SubscriberID == "" {
		return nil
	}
	message := TurnMessage(payload.Ticket.Language, payload.Window)
	if err := s.provider.Send(ctx, message, *payload.Ticket.SubscriberID); err != nil {
		return err
	}
	log.Printf("turn notification sent ticket_id=%d number=%s", payload.Ticket.ID, payload.Ticket.Number)
	return nil
}
