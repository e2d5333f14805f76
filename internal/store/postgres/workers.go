package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

const workerColumns = `id, first_name, last_name, email, password_hash, window_number, is_admin, category_id`

func scanWorker(row pgx.Row) (models.Worker, error) {
	var worker models.Worker
	var categoryID sql.NullInt64
	if err := row.Scan(&worker.ID, &worker.FirstName, &worker.LastName, &worker.Email, &worker.PasswordHash, &worker.Window, &worker.IsAdmin, &categoryID); err != nil {
		return models.Worker{}, err
	}
	worker.CategoryID = nullInt64Ptr(categoryID)
	return worker, nil
}

func (s *Store) CreateWorker(ctx context.Context, input store.CreateWorkerInput) (models.Worker, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workers (first_name, last_name, email, password_hash, window_number, is_admin, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+workerColumns,
		input.FirstName, input.LastName, strings.ToLower(input.Email), input.PasswordHash, input.Window, input.IsAdmin, input.CategoryID)
	worker, err := scanWorker(row)
	if err != nil {
		switch {
		case isPgError(err, uniqueViolation, ""):
			return models.Worker{}, store.ErrEmailTaken
		case isPgError(err, foreignKeyViolation, ""):
			return models.Worker{}, store.ErrCategoryNotFound
		}
		return models.Worker{}, wrapErr(err)
	}
	return worker, nil
}

func (s *Store) GetWorker(ctx context.Context, workerID int64) (models.Worker, error) {
	worker, err := scanWorker(s.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, workerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Worker{}, store.ErrWorkerNotFound
		}
		return models.Worker{}, wrapErr(err)
	}
	return worker, nil
}

func (s *Store) GetWorkerByEmail(ctx context.Context, email string) (models.Worker, error) {
	worker, err := scanWorker(s.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Worker{}, store.ErrWorkerNotFound
		}
		return models.Worker{}, wrapErr(err)
	}
	return worker, nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, wrapErr(err)
	}
	workers, err := collectWorkers(rows)
	if err != nil {
		return nil, wrapErr(err)
	}
	return workers, nil
}

func (s *Store) ListCategoryWorkers(ctx context.Context, categoryID int64) ([]models.Worker, error) {
	if err := ensureCategoryExists(ctx, s.pool, categoryID); err != nil {
		return nil, wrapErr(err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE category_id = $1
		ORDER BY window_number, id
	`, categoryID)
	if err != nil {
		return nil, wrapErr(err)
	}
	workers, err := collectWorkers(rows)
	if err != nil {
		return nil, wrapErr(err)
	}
	return workers, nil
}

func (s *Store) UpdateWorker(ctx context.Context, workerID int64, input store.UpdateWorkerInput) (models.Worker, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE workers
		SET first_name = $2, last_name = $3, email = $4, window_number = $5, is_admin = $6, category_id = $7
		WHERE id = $1
		RETURNING `+workerColumns,
		workerID, input.FirstName, input.LastName, strings.ToLower(input.Email), input.Window, input.IsAdmin, input.CategoryID)
	worker, err := scanWorker(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Worker{}, store.ErrWorkerNotFound
		case isPgError(err, uniqueViolation, ""):
			return models.Worker{}, store.ErrEmailTaken
		case isPgError(err, foreignKeyViolation, ""):
			return models.Worker{}, store.ErrCategoryNotFound
		}
		return models.Worker{}, wrapErr(err)
	}
	return worker, nil
}

// DeleteWorker removes a worker who holds no invited ticket. The worker row
// lock keeps a concurrent claim from inviting a ticket in between.
func (s *Store) DeleteWorker(ctx context.Context, workerID int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockWorker(ctx, tx, workerID); err != nil {
		return wrapErr(err)
	}
	var busy bool
	if err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tickets WHERE worker_id = $1 AND status = 'invited')
	`, workerID).Scan(&busy); err != nil {
		return wrapErr(err)
	}
	if busy {
		err = store.ErrWorkerBusy
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM workers WHERE id = $1`, workerID); err != nil {
		return wrapErr(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

func collectWorkers(rows pgx.Rows) ([]models.Worker, error) {
	defer rows.Close()
	workers := []models.Worker{}
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workers, nil
}
