package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lysyi3m/news-comb/app/news"
)

type PostgresCategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{db: db}
}

func (r *PostgresCategoryRepository) UpsertCategory(ctx context.Context, category news.Category) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (slug, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = NOW()
		RETURNING id
	`, category.Slug, category.Name, category.Description).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert category: %w", err)
	}

	return id, nil
}

func (r *PostgresCategoryRepository) FindBySlug(ctx context.Context, slug string) (*news.Category, error) {
	var c news.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description FROM categories WHERE slug = $1
	`, slug).Scan(&c.ID, &c.Slug, &c.Name, &c.Description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by slug: %w", err)
	}

	return &c, nil
}

func (r *PostgresCategoryRepository) List(ctx context.Context) ([]news.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, description FROM categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []news.Category
	for rows.Next() {
		var c news.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}
