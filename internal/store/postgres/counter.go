package postgres

import (
	"context"
	"errors"

	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

func incrementCounter(ctx context.Context, tx pgx.Tx) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO ticket_counter (id, current_counter)
		VALUES (1, 1)
		ON CONFLICT (id)
		DO UPDATE SET current_counter = ticket_counter.current_counter + 1
		RETURNING current_counter
	`)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) CurrentCounter(ctx context.Context) (int64, error) {
	var current int64
	row := s.pool.QueryRow(ctx, `SELECT current_counter FROM ticket_counter WHERE id = 1`)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, wrapErr(err)
	}
	return current, nil
}

// PurgeWaitingAndResetCounter takes the counter row lock first so that
// in-flight ticket creations either finish before the purge or number from
// one afterwards.
func (s *Store) PurgeWaitingAndResetCounter(ctx context.Context) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, wrapErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO ticket_counter (id, current_counter)
		VALUES (1, 0)
		ON CONFLICT (id)
		DO UPDATE SET current_counter = 0
	`); err != nil {
		return 0, wrapErr(err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tickets WHERE status = 'waiting'`)
	if err != nil {
		return 0, wrapErr(err)
	}
	removed := tag.RowsAffected()

	if err = insertOutboxEvent(ctx, tx, store.EventQueuePurged, store.PurgePayload{Removed: removed}); err != nil {
		return 0, wrapErr(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, wrapErr(err)
	}
	return removed, nil
}
