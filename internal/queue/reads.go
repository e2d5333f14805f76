package queue

import (
	"context"
	"time"

	"qms/ticket-queue/internal/models"
)

func (e *Engine) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.GetTicket(sctx, ticketID)
}

func (e *Engine) GetTicketByToken(ctx context.Context, token string) (models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.GetTicketByToken(sctx, token)
}

func (e *Engine) TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.TicketStatus(sctx, ticketID)
}

func (e *Engine) CurrentTicket(ctx context.Context, worker models.Worker) (models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.CurrentTicket(sctx, worker.ID)
}

func (e *Engine) WorkerHistory(ctx context.Context, worker models.Worker) ([]models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.ListWorkerTickets(sctx, worker.ID)
}

// Waiting lists waiting tickets of a category in service order. Zero lists
// every category.
func (e *Engine) Waiting(ctx context.Context, categoryID int64) ([]models.Ticket, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	if categoryID > 0 {
		if _, err := e.categories.GetCategory(sctx, categoryID); err != nil {
			return nil, err
		}
	}
	return e.tickets.ListWaiting(sctx, categoryID)
}

func (e *Engine) CurrentCounter(ctx context.Context) (int64, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.tickets.CurrentCounter(sctx)
}

func (e *Engine) AverageRating(ctx context.Context, categoryID int64) (float64, bool, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.categories.AverageRating(sctx, categoryID)
}

// Dashboard counts the worker's tickets since the start of the serving day.
func (e *Engine) Dashboard(ctx context.Context, worker models.Worker) (models.Dashboard, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	dashboard, err := e.tickets.WorkerStats(sctx, worker.ID, e.startOfDay())
	if err != nil {
		return models.Dashboard{}, err
	}
	dashboard.Worker = worker
	return dashboard, nil
}

func (e *Engine) startOfDay() time.Time {
	now := e.now().In(e.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.location)
}
