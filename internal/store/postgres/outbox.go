package postgres

import (
	"context"
	"errors"

	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

// ListOutboxEvents returns events after the cursor whose transaction ended
// before the oldest one still running. Sequence values are handed out at
// insert time, so reading by seq alone would skip a row that commits after
// a higher one was already relayed.
func (s *Store) ListOutboxEvents(ctx context.Context, after store.OutboxCursor, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, txid, event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (txid, seq) > ($1, $2)
			AND txid < pg_snapshot_xmin(pg_current_snapshot())::text::bigint
		ORDER BY txid ASC, seq ASC
		LIMIT $3
	`, after.TxID, after.Seq, limit)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.Seq, &event.TxID, &event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, wrapErr(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return events, nil
}

func (s *Store) GetOutboxOffset(ctx context.Context, consumer string) (store.OutboxCursor, error) {
	var cursor store.OutboxCursor
	row := s.pool.QueryRow(ctx, `SELECT last_txid, last_seq FROM outbox_offsets WHERE consumer = $1`, consumer)
	if err := row.Scan(&cursor.TxID, &cursor.Seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.OutboxCursor{}, nil
		}
		return store.OutboxCursor{}, wrapErr(err)
	}
	return cursor, nil
}

func (s *Store) UpdateOutboxOffset(ctx context.Context, consumer string, cursor store.OutboxCursor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_offsets (consumer, last_txid, last_seq, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (consumer) DO UPDATE
		SET last_txid = EXCLUDED.last_txid, last_seq = EXCLUDED.last_seq, updated_at = now()
	`, consumer, cursor.TxID, cursor.Seq)
	return wrapErr(err)
}
