package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lysyi3m/news-comb/app/news"
)

// PostgresSourceRepository handles database operations for news sources
type PostgresSourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *DB) *PostgresSourceRepository {
	return &PostgresSourceRepository{db: db}
}

// UpsertSource inserts or updates a source by slug
func (r *PostgresSourceRepository) UpsertSource(ctx context.Context, source news.Source) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sources (slug, name, base_url, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, base_url = EXCLUDED.base_url,
		    is_active = EXCLUDED.is_active, updated_at = NOW()
		RETURNING id
	`, source.Slug, source.Name, source.BaseURL, source.IsActive).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert source: %w", err)
	}

	return id, nil
}

func (r *PostgresSourceRepository) FindBySlug(ctx context.Context, slug string) (*news.Source, error) {
	var s news.Source
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, base_url, is_active FROM sources WHERE slug = $1
	`, slug).Scan(&s.ID, &s.Slug, &s.Name, &s.BaseURL, &s.IsActive)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by slug: %w", err)
	}

	return &s, nil
}

func (r *PostgresSourceRepository) List(ctx context.Context) ([]news.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, base_url, is_active FROM sources ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []news.Source
	for rows.Next() {
		var s news.Source
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.BaseURL, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}
