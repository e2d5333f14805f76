package store

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrWorkerNotFound   = errors.New("worker not found")
	ErrNoTicket         = errors.New("no ticket available")
	ErrNoActiveTicket   = errors.New("worker has no invited ticket")
	ErrInvalidState     = errors.New("invalid ticket state")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrWorkerUnassigned = errors.New("worker has no category")
	ErrEmailTaken       = errors.New("email already registered")
	ErrCategoryExists   = errors.New("category already exists")
	ErrWorkerBusy       = errors.New("worker is serving a ticket")
	ErrTransient        = errors.New("temporary store failure")
)
