package postgres

import (
	"context"
	"database/sql"
	"time"

	"qms/ticket-queue/internal/models"
)

// CategoryStatistics counts tickets per category. The "today" figures cover
// tickets created at or after since.
func (s *Store) CategoryStatistics(ctx context.Context, since time.Time) ([]models.CategoryStatistic, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			c.id,
			c.name,
			COUNT(t.id) FILTER (WHERE t.status = 'waiting'),
			COUNT(t.id) FILTER (WHERE t.status IN ('invited', 'completed', 'skipped') AND t.created_at >= $1),
			COUNT(t.id) FILTER (WHERE t.status = 'completed' AND t.created_at >= $1),
			COUNT(t.id) FILTER (WHERE t.status = 'skipped' AND t.created_at >= $1),
			COUNT(t.id) FILTER (WHERE t.status = 'cancelled' AND t.created_at >= $1),
			COUNT(t.id) FILTER (WHERE t.status IN ('invited', 'completed', 'skipped')),
			COUNT(t.id) FILTER (WHERE t.status = 'completed')
		FROM categories c
		LEFT JOIN tickets t ON t.category_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.name ASC
	`, since)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	stats := []models.CategoryStatistic{}
	for rows.Next() {
		var stat models.CategoryStatistic
		if err := rows.Scan(
			&stat.CategoryID, &stat.Name, &stat.Waiting,
			&stat.Today.Accepted, &stat.Today.Served, &stat.Today.Skipped, &stat.Today.Cancelled,
			&stat.AcceptedAllTime, &stat.ServedAllTime,
		); err != nil {
			return nil, wrapErr(err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return stats, nil
}

func (s *Store) WorkerCounts(ctx context.Context, workerID int64, since time.Time) (models.TicketCounts, error) {
	counts, err := workerCounts(ctx, s.pool, workerID, since)
	return counts, wrapErr(err)
}

func workerCounts(ctx context.Context, q querier, workerID int64, since time.Time) (models.TicketCounts, error) {
	var counts models.TicketCounts
	row := q.QueryRow(ctx, `
		SELECT
			COUNT(1) FILTER (WHERE status IN ('invited', 'completed', 'skipped')),
			COUNT(1) FILTER (WHERE status = 'completed'),
			COUNT(1) FILTER (WHERE status = 'skipped'),
			COUNT(1) FILTER (WHERE status = 'cancelled')
		FROM tickets
		WHERE worker_id = $1 AND created_at >= $2
	`, workerID, since)
	if err := row.Scan(&counts.Accepted, &counts.Served, &counts.Skipped, &counts.Cancelled); err != nil {
		return models.TicketCounts{}, err
	}
	return counts, nil
}

// WorkerAverageRating averages the ratings of the worker's completed tickets.
func (s *Store) WorkerAverageRating(ctx context.Context, workerID int64) (float64, bool, error) {
	var avg sql.NullFloat64
	row := s.pool.QueryRow(ctx, `
		SELECT AVG(rate)::float8
		FROM tickets
		WHERE worker_id = $1 AND status = 'completed' AND rate IS NOT NULL
	`, workerID)
	if err := row.Scan(&avg); err != nil {
		return 0, false, wrapErr(err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

func (s *Store) ListWorkerTicketsSince(ctx context.Context, workerID int64, since time.Time) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE worker_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`, workerID, since)
	if err != nil {
		return nil, wrapErr(err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, wrapErr(err)
	}
	return tickets, nil
}
