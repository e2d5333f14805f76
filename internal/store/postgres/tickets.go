package postgres

import (
	"context"
	"errors"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

var errDuplicateWaiting = errors.New("duplicate waiting ticket")

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	ticket, created, err := s.createTicket(ctx, input)
	if errors.Is(err, errDuplicateWaiting) {
		// A concurrent submission with the same identity won the insert.
		existing, found, findErr := findWaitingDuplicate(ctx, s.pool, input)
		if findErr != nil {
			return models.Ticket{}, false, wrapErr(findErr)
		}
		if found {
			return existing, false, nil
		}
		// The winner left waiting before we could read it; try once more.
		ticket, created, err = s.createTicket(ctx, input)
	}
	if err != nil {
		return models.Ticket{}, false, wrapErr(err)
	}
	return ticket, created, nil
}

func (s *Store) createTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = ensureCategoryExists(ctx, tx, input.CategoryID); err != nil {
		return models.Ticket{}, false, err
	}

	existing, found, err := findWaitingDuplicate(ctx, tx, input)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	seq, err := incrementCounter(ctx, tx)
	if err != nil {
		return models.Ticket{}, false, err
	}

	// The counter row stays locked until commit, so both the id and the
	// clock_timestamp() stamp follow the number order.
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (full_name, phone_number, language, number, status, category_id, created_at, token)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp(), $7)
		RETURNING `+ticketColumns,
		input.FullName, input.PhoneNumber, string(input.Language), formatTicketNumber(seq),
		string(models.StatusWaiting), input.CategoryID, input.Token)
	ticket, err := scanTicket(row)
	if err != nil {
		if isPgError(err, uniqueViolation, "tickets_waiting_dedup") {
			err = errDuplicateWaiting
		}
		return models.Ticket{}, false, err
	}

	if err = insertOutboxEvent(ctx, tx, store.EventTicketCreated, store.TicketEventPayload{Ticket: ticket}); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func findWaitingDuplicate(ctx context.Context, q querier, input store.CreateTicketInput) (models.Ticket, bool, error) {
	row := q.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE full_name = $1 AND phone_number = $2 AND category_id = $3 AND status = 'waiting'
	`, input.FullName, input.PhoneNumber, input.CategoryID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func ensureCategoryExists(ctx context.Context, q querier, categoryID int64) error {
	var id int64
	row := q.QueryRow(ctx, `SELECT id FROM categories WHERE id = $1`, categoryID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrCategoryNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, wrapErr(err)
	}
	return ticket, nil
}

func (s *Store) GetTicketByToken(ctx context.Context, token string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE token = $1`, token)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, wrapErr(err)
	}
	return ticket, nil
}

func (s *Store) ListWaiting(ctx context.Context, categoryID int64) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'waiting' AND ($1::bigint = 0 OR category_id = $1::bigint)
		ORDER BY id ASC
	`, categoryID)
	if err != nil {
		return nil, wrapErr(err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, wrapErr(err)
	}
	return tickets, nil
}

func (s *Store) TicketStatus(ctx context.Context, ticketID int64) (models.TicketStatus, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return models.TicketStatus{}, err
	}
	status := models.TicketStatus{Ticket: ticket}

	if ticket.Status == models.StatusWaiting {
		row := s.pool.QueryRow(ctx, `
			SELECT COUNT(1)
			FROM tickets
			WHERE category_id = $1 AND status = 'waiting' AND id < $2
		`, ticket.CategoryID, ticket.ID)
		if err := row.Scan(&status.Ahead); err != nil {
			return models.TicketStatus{}, wrapErr(err)
		}
	}

	var current string
	row := s.pool.QueryRow(ctx, `
		SELECT number
		FROM tickets
		WHERE category_id = $1 AND status = 'invited'
		ORDER BY start_time DESC NULLS LAST, id DESC
		LIMIT 1
	`, ticket.CategoryID)
	if err := row.Scan(&current); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.TicketStatus{}, wrapErr(err)
		}
	} else {
		status.CurrentNumber = &current
	}
	return status, nil
}

func (s *Store) CancelTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	ticket, err := s.transitionTicket(ctx, ticketID, store.ActionCancel, func(ctx context.Context, tx pgx.Tx) (models.Ticket, error) {
		return scanTicket(tx.QueryRow(ctx, `
			UPDATE tickets SET status = 'cancelled'
			WHERE id = $1
			RETURNING `+ticketColumns, ticketID))
	})
	return ticket, wrapErr(err)
}

func (s *Store) RateTicket(ctx context.Context, ticketID int64, rating int) (models.Ticket, error) {
	if rating < 1 || rating > 5 {
		return models.Ticket{}, store.ErrInvalidRating
	}
	ticket, err := s.transitionTicket(ctx, ticketID, store.ActionRate, func(ctx context.Context, tx pgx.Tx) (models.Ticket, error) {
		return scanTicket(tx.QueryRow(ctx, `
			UPDATE tickets SET rate = $2
			WHERE id = $1
			RETURNING `+ticketColumns, ticketID, rating))
	})
	return ticket, wrapErr(err)
}

// transitionTicket locks a ticket, checks the action against the transition
// table and applies update inside the same transaction.
func (s *Store) transitionTicket(ctx context.Context, ticketID int64, action store.Action, update func(context.Context, pgx.Tx) (models.Ticket, error)) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	if !store.ValidTransition(action, current.Status) {
		err = store.ErrInvalidState
		return models.Ticket{}, err
	}

	ticket, err := update(ctx, tx)
	if err != nil {
		return models.Ticket{}, err
	}

	if target, ok := store.Target(action); ok && target == models.StatusCancelled {
		if err = insertOutboxEvent(ctx, tx, store.EventTicketCancelled, store.TicketEventPayload{Ticket: ticket}); err != nil {
			return models.Ticket{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) DeleteTicket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, wrapErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ticket, err := scanTicket(tx.QueryRow(ctx, `DELETE FROM tickets WHERE id = $1 RETURNING `+ticketColumns, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketNotFound
			return models.Ticket{}, err
		}
		return models.Ticket{}, wrapErr(err)
	}
	if err = insertOutboxEvent(ctx, tx, store.EventTicketDeleted, store.TicketEventPayload{Ticket: ticket}); err != nil {
		return models.Ticket{}, wrapErr(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, wrapErr(err)
	}
	return ticket, nil
}

func (s *Store) LinkSubscriber(ctx context.Context, token, subscriberID string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets SET subscriber_id = $2
		WHERE token = $1
		RETURNING `+ticketColumns, token, subscriberID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, wrapErr(err)
	}
	return ticket, nil
}
