package database

import (
	"context"
	"fmt"

	"github.com/lysyi3m/news-comb/app/news"
)

type PostgresFetchLogRepository struct {
	db *DB
}

func NewFetchLogRepository(db *DB) *PostgresFetchLogRepository {
	return &PostgresFetchLogRepository{db: db}
}

func (r *PostgresFetchLogRepository) Create(ctx context.Context, log *news.FetchLog) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO api_fetch_logs (
			source, status, articles_fetched, articles_created, articles_updated,
			error_message, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, log.Source, string(log.Status), log.ArticlesFetched, log.ArticlesCreated, log.ArticlesUpdated,
		nullString(log.ErrorMessage), log.FetchedAt,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create fetch log: %w", err)
	}

	return nil
}

// List returns the newest fetch logs first. An empty source matches every source.
func (r *PostgresFetchLogRepository) List(ctx context.Context, source string, limit int) ([]news.FetchLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, status, articles_fetched, articles_created, articles_updated,
		       COALESCE(error_message, ''), fetched_at
		FROM api_fetch_logs
		WHERE $1::text = '' OR source = $1
		ORDER BY fetched_at DESC, id DESC
		LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch logs: %w", err)
	}
	defer rows.Close()

	var logs []news.FetchLog
	for rows.Next() {
		var (
			l      news.FetchLog
			status string
		)
		if err := rows.Scan(&l.ID, &l.Source, &status, &l.ArticlesFetched, &l.ArticlesCreated,
			&l.ArticlesUpdated, &l.ErrorMessage, &l.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log row: %w", err)
		}
		l.Status = news.FetchStatus(status)
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch log rows: %w", err)
	}

	return logs, nil
}
