// Package searchtest provides an in-memory search engine for tests.
// It evaluates queries with exact substring matching, so its result sets
// line up with the relational fallback for non-fuzzy keywords.
package searchtest

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/lysyi3m/news-comb/app/search"
)

var _ search.Engine = (*Engine)(nil)

type Engine struct {
	mu        sync.Mutex
	docs      map[int64]search.Document
	down      bool
	failNext  int
	bulkFails bool
	puts      int
	deletes   int
}

func NewEngine() *Engine {
	return &Engine{docs: make(map[int64]search.Document)}
}

// SetDown makes every call fail and Ping report false until called with false.
func (e *Engine) SetDown(down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = down
}

// FailNext makes the next n write or query calls fail. Ping is unaffected.
func (e *Engine) FailNext(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = n
}

// FailBulk makes BulkPut reject whole batches.
func (e *Engine) FailBulk(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bulkFails = fail
}

func (e *Engine) Doc(id int64) (search.Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.docs[id]
	return doc, ok
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.docs)
}

// Calls returns the number of successful puts and deletes.
func (e *Engine) Calls() (puts, deletes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.puts, e.deletes
}

func (e *Engine) Put(_ context.Context, doc search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.failure(); err != nil {
		return err
	}
	e.docs[doc.ID] = doc
	e.puts++
	return nil
}

func (e *Engine) Delete(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.failure(); err != nil {
		return err
	}
	delete(e.docs, id)
	e.deletes++
	return nil
}

func (e *Engine) BulkPut(_ context.Context, docs []search.Document) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.failure(); err != nil {
		return 0, err
	}
	if e.bulkFails {
		return 0, search.ErrEngineUnavailable
	}
	for _, doc := range docs {
		e.docs[doc.ID] = doc
	}
	e.puts += len(docs)
	return len(docs), nil
}

func (e *Engine) Query(_ context.Context, q search.Query) (search.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.failure(); err != nil {
		return search.Result{}, err
	}

	var matched []search.Document
	for _, doc := range e.docs {
		if matches(q, doc) {
			matched = append(matched, doc)
		}
	}

	slices.SortFunc(matched, func(a, b search.Document) int {
		return compare(q.Sort, a, b)
	})

	result := search.Result{Total: len(matched), IDs: []int64{}}
	for i := q.From; i < len(matched) && i < q.From+q.Size; i++ {
		result.IDs = append(result.IDs, matched[i].ID)
	}
	return result, nil
}

func (e *Engine) Ping(_ context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.down
}

func (e *Engine) EnsureIndex(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.down {
		return search.ErrEngineUnavailable
	}
	return nil
}

func (e *Engine) failure() error {
	if e.down {
		return search.ErrEngineUnavailable
	}
	if e.failNext > 0 {
		e.failNext--
		return search.ErrEngineUnavailable
	}
	return nil
}

func matches(q search.Query, doc search.Document) bool {
	if q.Keyword != nil {
		keyword := strings.ToLower(q.Keyword.Query)
		if !strings.Contains(strings.ToLower(doc.Title), keyword) &&
			!strings.Contains(strings.ToLower(doc.Summary), keyword) &&
			!strings.Contains(strings.ToLower(doc.Content), keyword) {
			return false
		}
	}

	for _, t := range q.Terms {
		var value *int64
		switch t.Field {
		case "source_id":
			value = doc.SourceID
		case "category_id":
			value = doc.CategoryID
		case "author_id":
			value = doc.AuthorID
		}
		if value == nil || !slices.Contains(t.Values, *value) {
			return false
		}
	}

	if r := q.Range; r != nil {
		if doc.PublishedAt == nil {
			return false
		}
		if r.GTE != nil && doc.PublishedAt.Before(*r.GTE) {
			return false
		}
		if r.LT != nil && !doc.PublishedAt.Before(*r.LT) {
			return false
		}
	}

	return true
}

func compare(s search.Sort, a, b search.Document) int {
	desc := s.Order == search.SortDesc

	var result int
	switch s.Field {
	case "title.keyword":
		result = strings.Compare(a.Title, b.Title)
	case "created_at":
		result = a.CreatedAt.Compare(b.CreatedAt)
	default:
		switch {
		case a.PublishedAt == nil && b.PublishedAt == nil:
		case a.PublishedAt == nil:
			return 1
		case b.PublishedAt == nil:
			return -1
		default:
			result = a.PublishedAt.Compare(*b.PublishedAt)
		}
	}
	if result == 0 {
		result = cmp.Compare(a.ID, b.ID)
	}
	if desc {
		return -result
	}
	return result
}
