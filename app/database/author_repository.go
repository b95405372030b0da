package database

import (
	"context"
	"fmt"

	"github.com/lysyi3m/news-comb/app/news"
)

type PostgresAuthorRepository struct {
	db *DB
}

func NewAuthorRepository(db *DB) *PostgresAuthorRepository {
	return &PostgresAuthorRepository{db: db}
}

// FirstOrCreate returns the ID of the author identified by (name, sourceID), inserting it if absent.
// The no-op update makes RETURNING yield the existing row on conflict.
func (r *PostgresAuthorRepository) FirstOrCreate(ctx context.Context, name string, sourceID *int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO authors (name, source_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT authors_name_source_unique DO UPDATE
		SET updated_at = authors.updated_at
		RETURNING id
	`, name, sourceID).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to resolve author: %w", err)
	}

	return id, nil
}

func (r *PostgresAuthorRepository) List(ctx context.Context, sourceID *int64) ([]news.Author, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, source_id FROM authors
		WHERE $1::BIGINT IS NULL OR source_id = $1
		ORDER BY name ASC, id ASC
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	var authors []news.Author
	for rows.Next() {
		var a news.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.SourceID); err != nil {
			return nil, fmt.Errorf("failed to scan author row: %w", err)
		}
		authors = append(authors, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating author rows: %w", err)
	}

	return authors, nil
}
