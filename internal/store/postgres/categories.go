package postgres

import (
	"context"
	"database/sql"
	"errors"

	"qms/ticket-queue/internal/models"
	"qms/ticket-queue/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	var category models.Category
	row := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name) VALUES ($1)
		RETURNING id, name
	`, name)
	if err := row.Scan(&category.ID, &category.Name); err != nil {
		if isPgError(err, uniqueViolation, "") {
			return models.Category{}, store.ErrCategoryExists
		}
		return models.Category{}, wrapErr(err)
	}
	return category, nil
}

func (s *Store) GetCategory(ctx context.Context, categoryID int64) (models.Category, error) {
	var category models.Category
	row := s.pool.QueryRow(ctx, `
		SELECT c.id, c.name,
			(SELECT COUNT(1) FROM tickets t WHERE t.category_id = c.id AND t.status = 'waiting')
		FROM categories c
		WHERE c.id = $1
	`, categoryID)
	if err := row.Scan(&category.ID, &category.Name, &category.Queue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Category{}, store.ErrCategoryNotFound
		}
		return models.Category{}, wrapErr(err)
	}
	return category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, COUNT(t.id)
		FROM categories c
		LEFT JOIN tickets t ON t.category_id = c.id AND t.status = 'waiting'
		GROUP BY c.id, c.name
		ORDER BY c.name ASC
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Queue); err != nil {
			return nil, wrapErr(err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return categories, nil
}

func (s *Store) RenameCategory(ctx context.Context, categoryID int64, name string) (models.Category, error) {
	var category models.Category
	row := s.pool.QueryRow(ctx, `
		UPDATE categories c SET name = $2
		WHERE c.id = $1
		RETURNING c.id, c.name,
			(SELECT COUNT(1) FROM tickets t WHERE t.category_id = c.id AND t.status = 'waiting')
	`, categoryID, name)
	if err := row.Scan(&category.ID, &category.Name, &category.Queue); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Category{}, store.ErrCategoryNotFound
		case isPgError(err, uniqueViolation, ""):
			return models.Category{}, store.ErrCategoryExists
		}
		return models.Category{}, wrapErr(err)
	}
	return category, nil
}

// DeleteCategory removes the category and its tickets. Workers assigned to
// it are kept and left without a category.
func (s *Store) DeleteCategory(ctx context.Context, categoryID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) AverageRating(ctx context.Context, categoryID int64) (float64, bool, error) {
	if err := ensureCategoryExists(ctx, s.pool, categoryID); err != nil {
		return 0, false, wrapErr(err)
	}
	var avg sql.NullFloat64
	row := s.pool.QueryRow(ctx, `
		SELECT AVG(rate)::float8
		FROM tickets
		WHERE category_id = $1 AND rate IS NOT NULL
	`, categoryID)
	if err := row.Scan(&avg); err != nil {
		return 0, false, wrapErr(err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}
