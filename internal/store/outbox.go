package store

import (
	"encoding/json"
	"time"

	"qms/ticket-queue/internal/models"
)

const (
	EventTicketCreated   = "ticket.created"
	EventTicketInvited   = "ticket.invited"
	EventTicketCompleted = "ticket.completed"
	EventTicketSkipped   = "ticket.skipped"
	EventTicketCancelled = "ticket.cancelled"
	EventTicketDeleted   = "ticket.deleted"
	EventQueuePurged     = "queue.purged"
)

type OutboxEvent struct {
	Seq       int64           `json:"seq"`
	TxID      int64           `json:"txid"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e OutboxEvent) Cursor() OutboxCursor {
	return OutboxCursor{TxID: e.TxID, Seq: e.Seq}
}

// OutboxCursor is a relay position. Events are read in (TxID, Seq) order
// and only once their writing transaction is no longer in flight, so a
// transaction that commits late can never land behind the cursor.
type OutboxCursor struct {
	TxID int64
	Seq  int64
}

// Before reports whether c sorts strictly before other.
func (c OutboxCursor) Before(other OutboxCursor) bool {
	if c.TxID != other.TxID {
		return c.TxID < other.TxID
	}
	return c.Seq < other.Seq
}

// TicketEventPayload is the outbox body for every ticket.* event.
type TicketEventPayload struct {
	Ticket models.Ticket `json:"ticket"`
	Window int           `json:"window,omitempty"`
}

type PurgePayload struct {
	Removed int64 `json:"removed"`
}
