package postgres

import (
	"context"
	"errors"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ClaimNext(ctx context.Context, input store.ClaimInput) (store.ClaimResult, error) {
	result, err := s.claim(ctx, input, store.ActionComplete)
	return result, wrapErr(err)
}

func (s *Store) SkipCurrent(ctx context.Context, input store.ClaimInput) (store.ClaimResult, error) {
	result, err := s.claim(ctx, input, store.ActionSkip)
	return result, wrapErr(err)
}

// claim releases the worker's invited ticket with the given action and
// assigns the oldest unassigned waiting ticket of the category. The worker
// row lock serializes calls per worker; SKIP LOCKED keeps workers of the
// same category from selecting the same ticket.
func (s *Store) claim(ctx context.Context, input store.ClaimInput, release store.Action) (store.ClaimResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.ClaimResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if err = lockWorker(ctx, tx, input.WorkerID); err != nil {
		return store.ClaimResult{}, err
	}

	var result store.ClaimResult
	previous, found, err := releaseInvited(ctx, tx, input.WorkerID, release, at)
	if err != nil {
		return store.ClaimResult{}, err
	}
	if found {
		result.Previous = &previous
		eventType := store.EventTicketCompleted
		if release == store.ActionSkip {
			eventType = store.EventTicketSkipped
		}
		if err = insertOutboxEvent(ctx, tx, eventType, store.TicketEventPayload{Ticket: previous, Window: input.Window}); err != nil {
			return store.ClaimResult{}, err
		}
	} else if release == store.ActionSkip {
		err = store.ErrNoActiveTicket
		return store.ClaimResult{}, err
	}

	next, err := claimWaiting(ctx, tx, input, at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err = tx.Commit(ctx); err != nil {
				return store.ClaimResult{}, err
			}
			return result, store.ErrNoTicket
		}
		return store.ClaimResult{}, err
	}
	result.Next = &next

	if err = insertOutboxEvent(ctx, tx, store.EventTicketInvited, store.TicketEventPayload{Ticket: next, Window: input.Window}); err != nil {
		return store.ClaimResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.ClaimResult{}, err
	}
	return result, nil
}

func lockWorker(ctx context.Context, tx pgx.Tx, workerID int64) error {
	var id int64
	row := tx.QueryRow(ctx, `SELECT id FROM workers WHERE id = $1 FOR UPDATE`, workerID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrWorkerNotFound
		}
		return err
	}
	return nil
}

func releaseInvited(ctx context.Context, tx pgx.Tx, workerID int64, action store.Action, at time.Time) (models.Ticket, bool, error) {
	target, ok := store.Target(action)
	if !ok || !store.ValidTransition(action, models.StatusInvited) {
		return models.Ticket{}, false, store.ErrInvalidState
	}
	var endTime interface{}
	if target == models.StatusCompleted {
		endTime = at
	}
	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = $2,
			end_time = COALESCE($3, end_time)
		WHERE worker_id = $1 AND status = 'invited'
		RETURNING `+ticketColumns, workerID, string(target), endTime)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func claimWaiting(ctx context.Context, tx pgx.Tx, input store.ClaimInput, at time.Time) (models.Ticket, error) {
	row := tx.QueryRow(ctx, `
		WITH next_ticket AS (
			SELECT id
			FROM tickets
			WHERE category_id = $1 AND status = 'waiting' AND worker_id IS NULL
			ORDER BY id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE tickets
		SET status = 'invited',
			worker_id = $2,
			start_time = $3
		FROM next_ticket
		WHERE tickets.id = next_ticket.id
		RETURNING `+qualifiedTicketColumns, input.CategoryID, input.WorkerID, at)
	return scanTicket(row)
}

func (s *Store) CurrentTicket(ctx context.Context, workerID int64) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE worker_id = $1 AND status = 'invited'
	`, workerID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrNoActiveTicket
		}
		return models.Ticket{}, wrapErr(err)
	}
	return ticket, nil
}

func (s *Store) ListWorkerTickets(ctx context.Context, workerID int64) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE worker_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 200
	`, workerID)
	if err != nil {
		return nil, wrapErr(err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, wrapErr(err)
	}
	return tickets, nil
}

func (s *Store) WorkerStats(ctx context.Context, workerID int64, since time.Time) (models.Dashboard, error) {
	counts, err := workerCounts(ctx, s.pool, workerID, since)
	if err != nil {
		return models.Dashboard{}, wrapErr(err)
	}
	return models.Dashboard{
		AcceptedToday: counts.Accepted,
		SkippedToday:  counts.Skipped,
		ServedToday:   counts.Served,
	}, nil
}
