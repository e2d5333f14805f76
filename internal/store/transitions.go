package store

import "qms/ticket-queue/internal/models"

type Action string

const (
	ActionClaim    Action = "claim"
	ActionComplete Action = "complete"
	ActionSkip     Action = "skip"
	ActionCancel   Action = "cancel"
	ActionRate     Action = "rate"
)

var transitionMap = map[Action][]models.Status{
	ActionClaim:    {models.StatusWaiting},
	ActionComplete: {models.StatusInvited},
	ActionSkip:     {models.StatusInvited},
	ActionCancel:   {models.StatusWaiting, models.StatusInvited},
	ActionRate:     {models.StatusCompleted},
}

var transitionTarget = map[Action]models.Status{
	ActionClaim:    models.StatusInvited,
	ActionComplete: models.StatusCompleted,
	ActionSkip:     models.StatusSkipped,
	ActionCancel:   models.StatusCancelled,
}

func ValidTransition(action Action, from models.Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// Target returns the status an action moves a ticket into. Rating keeps the
// current status and has no target.
func Target(action Action) (models.Status, bool) {
	status, ok := transitionTarget[action]
	return status, ok
}
