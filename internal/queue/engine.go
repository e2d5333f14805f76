package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"
	"qms/ticket-queue/internal/telemetry"
)

const defaultStoreTimeout = 5 * time.Second

// Publisher delivers live events. Failures are logged by the engine and
// never undo a committed change.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Options struct {
	StoreTimeout time.Duration
	Location     *time.Location
	Now          func() time.Time
}

type Engine struct {
	tickets    store.TicketStore
	categories store.CategoryStore
	publisher  Publisher
	timeout    time.Duration
	location   *time.Location
	now        func() time.Time
}

type CreateTicketRequest struct {
	FullName    string
	PhoneNumber string
	CategoryID  int64
	Language    string
}

func NewEngine(tickets store.TicketStore, categories store.CategoryStore, publisher Publisher, opts Options) *Engine {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		tickets:    tickets,
		categories: categories,
		publisher:  publisher,
		timeout:    opts.StoreTimeout,
		location:   opts.Location,
		now:        opts.Now,
	}
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// CreateTicket returns the existing waiting ticket for the same person and
// category instead of issuing a second number. The bool reports whether a
// new ticket was created.
func (e *Engine) CreateTicket(ctx context.Context, req CreateTicketRequest) (models.Ticket, bool, error) {
	fullName := strings.TrimSpace(req.FullName)
	phone := strings.TrimSpace(req.PhoneNumber)
	if fullName == "" || phone == "" || req.CategoryID <= 0 {
		return models.Ticket{}, false, store.ErrInvalidInput
	}
	token, err := newClaimToken()
	if err != nil {
		return models.Ticket{}, false, err
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	ticket, created, err := e.tickets.CreateTicket(sctx, store.CreateTicketInput{
		FullName:    fullName,
		PhoneNumber: phone,
		CategoryID:  req.CategoryID,
		Language:    models.ParseLanguage(req.Language),
		Token:       token,
	})
	if err != nil {
		telemetry.TicketOperations.WithLabelValues("create", "error").Inc()
		return models.Ticket{}, false, err
	}
	if !created {
		telemetry.TicketOperations.WithLabelValues("create", "existing").Inc()
		return ticket, false, nil
	}
	telemetry.TicketOperations.WithLabelValues("create", "ok").Inc()
	e.publish(ctx, models.CategoryEvent(models.ActionNewTicket, ticket.CategoryID, ticket))
	return ticket, true, nil
}

// ClaimNext completes the worker's current ticket, if any, and invites the
// oldest waiting ticket of the worker's category. When the queue is empty
// the completion still stands and store.ErrNoTicket is returned.
func (e *Engine) ClaimNext(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	return e.advance(ctx, worker, "claim", false)
}

// SkipCurrent marks the worker's invited ticket skipped and invites the
// next one. It fails with store.ErrNoActiveTicket when nothing is invited.
func (e *Engine) SkipCurrent(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	return e.advance(ctx, worker, "skip", true)
}

func (e *Engine) advance(ctx context.Context, worker models.Worker, operation string, skip bool) (models.Ticket, error) {
	if worker.CategoryID == nil {
		return models.Ticket{}, store.ErrWorkerUnassigned
	}
	input := store.ClaimInput{
		WorkerID:   worker.ID,
		CategoryID: *worker.CategoryID,
		Window:     worker.Window,
		At:         e.now().UTC(),
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	var (
		result store.ClaimResult
		err    error
	)
	if skip {
		result, err = e.tickets.SkipCurrent(sctx, input)
	} else {
		result, err = e.tickets.ClaimNext(sctx, input)
	}

	if result.Previous != nil {
		action := models.ActionCompleteTicket
		if skip {
			action = models.ActionSkipTicket
		}
		e.publish(ctx, models.CategoryEvent(action, result.Previous.CategoryID, *result.Previous))
	}
	if err != nil {
		if errors.Is(err, store.ErrNoTicket) {
			telemetry.TicketOperations.WithLabelValues(operation, "empty").Inc()
		} else {
			telemetry.TicketOperations.WithLabelValues(operation, "error").Inc()
		}
		return models.Ticket{}, err
	}
	if result.Next == nil {
		return models.Ticket{}, store.ErrNoTicket
	}

	telemetry.TicketOperations.WithLabelValues(operation, "ok").Inc()
	next := *result.Next
	e.publish(ctx, models.CategoryEvent(models.ActionNextTicket, next.CategoryID, models.NextTicketData{
		Ticket: next,
		Window: worker.Window,
	}))
	return next, nil
}

func (e *Engine) Rate(ctx context.Context, ticketID int64, rating int) (models.Ticket, error) {
	if rating < 1 || rating > 5 {
		return models.Ticket{}, store.ErrInvalidRating
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	ticket, err := e.tickets.RateTicket(sctx, ticketID, rating)
	telemetry.TicketOperations.WithLabelValues("rate", telemetry.Result(err)).Inc()
	if err != nil {
		return models.Ticket{}, err
	}
	e.publish(ctx, models.CategoryEvent(models.ActionUpdateTicket, ticket.CategoryID, ticket))
	return ticket, nil
}

func (e *Engine) Cancel(ctx context.Context, ticketID int64) (models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	ticket, err := e.tickets.CancelTicket(sctx, ticketID)
	telemetry.TicketOperations.WithLabelValues("cancel", telemetry.Result(err)).Inc()
	if err != nil {
		return models.Ticket{}, err
	}
	e.publish(ctx, models.CategoryEvent(models.ActionUpdateTicket, ticket.CategoryID, ticket))
	return ticket, nil
}

// Delete removes a ticket outright and refreshes the general queue view.
func (e *Engine) Delete(ctx context.Context, ticketID int64) error {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	ticket, err := e.tickets.DeleteTicket(sctx, ticketID)
	telemetry.TicketOperations.WithLabelValues("delete", telemetry.Result(err)).Inc()
	if err != nil {
		return err
	}
	e.publish(ctx, models.CategoryEvent(models.ActionDeleteTicket, ticket.CategoryID, models.DeleteTicketData{TicketID: ticket.ID}))
	e.publishGeneralQueue(ctx)
	return nil
}

// Purge deletes every waiting ticket and resets the counter in one
// transaction. It returns the number of removed tickets.
func (e *Engine) Purge(ctx context.Context) (int64, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	removed, err := e.tickets.PurgeWaitingAndResetCounter(sctx)
	telemetry.TicketOperations.WithLabelValues("purge", telemetry.Result(err)).Inc()
	if err != nil {
		return 0, err
	}
	e.publish(ctx, models.Event{Action: models.ActionGeneralQueue, Data: []models.Ticket{}})
	return removed, nil
}

func (e *Engine) LinkSubscriber(ctx context.Context, token, subscriberID string) (models.Ticket, error) {
	token = strings.TrimSpace(token)
	subscriberID = strings.TrimSpace(subscriberID)
	if token == "" || subscriberID == "" {
		return models.Ticket{}, store.ErrInvalidInput
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.LinkSubscriber(sctx, token, subscriberID)
}

func (e *Engine) publishGeneralQueue(ctx context.Context) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	waiting, err := e.tickets.ListWaiting(sctx, 0)
	if err != nil {
		log.Printf("general queue refresh error: %v", err)
		return
	}
	e.publish(ctx, models.Event{Action: models.ActionGeneralQueue, Data: waiting})
}

func (e *Engine) publish(ctx context.Context, event models.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.Printf("publish event action=%s error: %v", event.Action, err)
	}
}
