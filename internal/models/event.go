package models

type Action string

const (
	ActionNewTicket      Action = "new_ticket"
	ActionUpdateTicket   Action = "update_ticket"
	ActionNextTicket     Action = "next_ticket"
	ActionCompleteTicket Action = "complete_ticket"
	ActionSkipTicket     Action = "skip_ticket"
	ActionDeleteTicket   Action = "delete_ticket"
	ActionGeneralQueue   Action = "general_queue"
)

// Event is a queue state change pushed to live subscribers. A nil
// CategoryID marks an unscoped event.
type Event struct {
	Action     Action      `json:"action"`
	CategoryID *int64      `json:"category_id,omitempty"`
	Data       interface{} `json:"data"`
}

type NextTicketData struct {
	Ticket Ticket `json:"ticket"`
	Window int    `json:"window"`
}

type DeleteTicketData struct {
	TicketID int64 `json:"ticket_id"`
}

func CategoryEvent(action Action, categoryID int64, data interface{}) Event {
	id := categoryID
	return Event{Action: action, CategoryID: &id, Data: data}
}
