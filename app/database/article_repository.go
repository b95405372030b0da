package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/lysyi3m/news-comb/app/news"
)

var _ ArticleRepository = (*PostgresArticleRepository)(nil)

const articleColumns = `id, title, COALESCE(content, ''), COALESCE(summary, ''), url, COALESCE(image_url, ''),
	source_id, category_id, author_id, published_at, metadata, deleted_at, created_at, updated_at`

type PostgresArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *PostgresArticleRepository {
	return &PostgresArticleRepository{db: db}
}

// Create inserts a new article. A concurrent insert of the same URL yields ErrDuplicateURL.
func (r *PostgresArticleRepository) Create(ctx context.Context, a *news.StoredArticle) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			title, content, summary, url, image_url,
			source_id, category_id, author_id, published_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, a.Title, nullString(a.Content), nullString(a.Summary), a.URL, nullString(a.ImageURL),
		a.SourceID, a.CategoryID, a.AuthorID, a.PublishedAt, metadata,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicateURL
	}
	if err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}

	return nil
}

// Update overwrites every mutable column of the article identified by a.ID.
func (r *PostgresArticleRepository) Update(ctx context.Context, a *news.StoredArticle) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
		UPDATE articles
		SET title = $2, content = $3, summary = $4, image_url = $5,
		    source_id = $6, category_id = $7, author_id = $8,
		    published_at = $9, metadata = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.Title, nullString(a.Content), nullString(a.Summary), nullString(a.ImageURL),
		a.SourceID, a.CategoryID, a.AuthorID, a.PublishedAt, metadata,
	).Scan(&a.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}

	return nil
}

func (r *PostgresArticleRepository) FindByID(ctx context.Context, id int64) (*news.StoredArticle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}

	return article, nil
}

func (r *PostgresArticleRepository) FindByURL(ctx context.Context, url string) (*news.StoredArticle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = $1`, url)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by URL: %w", err)
	}

	return article, nil
}

// FindByIDs returns the live articles among ids, in no particular order.
func (r *PostgresArticleRepository) FindByIDs(ctx context.Context, ids []int64) ([]news.StoredArticle, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE id = ANY($1) AND deleted_at IS NULL
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get articles by IDs: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *PostgresArticleRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "soft delete article", `
		UPDATE articles SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

func (r *PostgresArticleRepository) Restore(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "restore article", `
		UPDATE articles SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
	`, id)
}

func (r *PostgresArticleRepository) ForceDelete(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "force delete article", `DELETE FROM articles WHERE id = $1`, id)
}

// ListIDs pages through live article IDs in ascending order, starting after afterID.
func (r *PostgresArticleRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM articles
		WHERE id > $1 AND deleted_at IS NULL
		ORDER BY id ASC
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list article IDs: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func (r *PostgresArticleRepository) ListTrashedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM articles WHERE deleted_at IS NOT NULL ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed article IDs: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// Search runs the relational full-text fallback query.
func (r *PostgresArticleRepository) Search(ctx context.Context, c Criteria) ([]news.StoredArticle, int, error) {
	where, args := c.Where()

	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		articleColumns, where, c.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, c.Limit, c.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}

	return articles, total, nil
}

func (r *PostgresArticleRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE deleted_at IS NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *PostgresArticleRepository) execAffecting(ctx context.Context, operation, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*news.StoredArticle, error) {
	var (
		a                              news.StoredArticle
		sourceID, categoryID, authorID sql.NullInt64
		publishedAt, deletedAt         sql.NullTime
		metadata                       []byte
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.Content, &a.Summary, &a.URL, &a.ImageURL,
		&sourceID, &categoryID, &authorID, &publishedAt, &metadata, &deletedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.SourceID = nullInt64Ptr(sourceID)
	a.CategoryID = nullInt64Ptr(categoryID)
	a.AuthorID = nullInt64Ptr(authorID)
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal article metadata: %w", err)
		}
	}

	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]news.StoredArticle, error) {
	var articles []news.StoredArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ID rows: %w", err)
	}

	return ids, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal article metadata: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
