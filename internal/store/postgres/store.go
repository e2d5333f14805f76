package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketNumberPad = 3

const ticketColumns = `id, full_name, phone_number, language, number, status, category_id, worker_id,
	created_at, start_time, end_time, rate, token, subscriber_id`

const qualifiedTicketColumns = `tickets.id, tickets.full_name, tickets.phone_number, tickets.language,
	tickets.number, tickets.status, tickets.category_id, tickets.worker_id, tickets.created_at,
	tickets.start_time, tickets.end_time, tickets.rate, tickets.token, tickets.subscriber_id`

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var language, status string
	var workerID sql.NullInt64
	var startTime, endTime sql.NullTime
	var rate sql.NullInt16
	var subscriberID sql.NullString
	if err := row.Scan(
		&ticket.ID, &ticket.FullName, &ticket.PhoneNumber, &language, &ticket.Number, &status,
		&ticket.CategoryID, &workerID, &ticket.CreatedAt, &startTime, &endTime, &rate,
		&ticket.Token, &subscriberID,
	); err != nil {
		return models.Ticket{}, err
	}
	ticket.Language = models.Language(language)
	ticket.Status = models.Status(status)
	ticket.WorkerID = nullInt64Ptr(workerID)
	ticket.StartTime = nullTimePtr(startTime)
	ticket.EndTime = nullTimePtr(endTime)
	ticket.SubscriberID = nullStringPtr(subscriberID)
	if rate.Valid {
		value := int(rate.Int16)
		ticket.Rate = &value
	}
	return ticket, nil
}

func collectTickets(rows pgx.Rows) ([]models.Ticket, error) {
	defer rows.Close()
	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func insertOutboxEvent(ctx context.Context, q querier, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	return err
}

func formatTicketNumber(seq int64) string {
	return fmt.Sprintf("%0*d", ticketNumberPad, seq)
}

// wrapErr marks failures that are safe to retry once the transaction has
// been rolled back.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}
	return err
}

func isPgError(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func nullInt64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	return &value.Int64
}
