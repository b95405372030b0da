package database

// Store bundles the repositories backing one relational database.
type Store struct {
	Articles   ArticleRepository
	Sources    SourceRepository
	Categories CategoryRepository
	Authors    AuthorRepository
	FetchLogs  FetchLogRepository
}

// NewPostgresStore builds a Store over an open Postgres connection.
func NewPostgresStore(db *DB) *Store {
	return &Store{
		Articles:   NewArticleRepository(db),
		Sources:    NewSourceRepository(db),
		Categories: NewCategoryRepository(db),
		Authors:    NewAuthorRepository(db),
		FetchLogs:  NewFetchLogRepository(db),
	}
}
