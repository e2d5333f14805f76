package models

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusInvited   Status = "invited"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusCancelled:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"full_name"`
	PhoneNumber  string     `json:"phone_number"`
	Language     Language   `json:"language"`
	Number       string     `json:"number"`
	Status       Status     `json:"status"`
	CategoryID   int64      `json:"category_id"`
	WorkerID     *int64     `json:"worker_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Rate         *int       `json:"rate,omitempty"`
	Token        string     `json:"token"`
	SubscriberID *string    `json:"subscriber_id,omitempty"`
}

// ServiceDuration is the time between invitation and completion.
func (t Ticket) ServiceDuration() (time.Duration, bool) {
	if t.StartTime == nil || t.EndTime == nil {
		return 0, false
	}
	return t.EndTime.Sub(*t.StartTime), true
}

// MarshalJSON adds duration_seconds for tickets that have been served.
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	out := struct {
		plain
		DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	}{plain: plain(t)}
	if d, ok := t.ServiceDuration(); ok {
		seconds := d.Seconds()
		out.DurationSeconds = &seconds
	}
	return json.Marshal(out)
}

// TicketStatus is the client-facing view of a ticket's place in its queue.
type TicketStatus struct {
	Ticket        Ticket  `json:"ticket"`
	Ahead         int     `json:"front_queue"`
	CurrentNumber *string `json:"current_ticket,omitempty"`
}
