package database

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/lysyi3m/news-comb/app/news"
)

const DefaultSortField = "published_at"

var sortColumns = map[string]string{
	"published_at": "published_at",
	"created_at":   "created_at",
	"title":        "title",
}

// Criteria is the relational form of an article filter.
// Predicates are ANDed across fields and ORed within an ID set.
type Criteria struct {
	Keyword       string
	PublishedFrom *time.Time // inclusive
	PublishedTo   *time.Time // exclusive
	SourceIDs     []int64
	CategoryIDs   []int64
	AuthorIDs     []int64
	SortField     string
	Descending    bool
	Limit         int
	Offset        int
}

// Where renders the predicates as a SQL condition with positional arguments.
func (c Criteria) Where() (string, []any) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}

	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if c.Keyword != "" {
		p := next("%" + escapeLike(c.Keyword) + "%")
		conditions = append(conditions,
			fmt.Sprintf("(title ILIKE %[1]s OR content ILIKE %[1]s OR summary ILIKE %[1]s)", p))
	}
	if c.PublishedFrom != nil {
		conditions = append(conditions, "published_at >= "+next(*c.PublishedFrom))
	}
	if c.PublishedTo != nil {
		conditions = append(conditions, "published_at < "+next(*c.PublishedTo))
	}
	if len(c.SourceIDs) > 0 {
		conditions = append(conditions, "source_id = ANY("+next(pq.Array(c.SourceIDs))+")")
	}
	if len(c.CategoryIDs) > 0 {
		conditions = append(conditions, "category_id = ANY("+next(pq.Array(c.CategoryIDs))+")")
	}
	if len(c.AuthorIDs) > 0 {
		conditions = append(conditions, "author_id = ANY("+next(pq.Array(c.AuthorIDs))+")")
	}

	return strings.Join(conditions, " AND "), args
}

// OrderBy renders the sort clause. Missing values sort last regardless of direction.
func (c Criteria) OrderBy() string {
	column := c.sortColumn()
	direction := "ASC"
	if c.Descending {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, id %s", column, direction, direction)
}

func (c Criteria) sortColumn() string {
	if column, ok := sortColumns[c.SortField]; ok {
		return column
	}
	return sortColumns[DefaultSortField]
}

// Matches evaluates the predicates against a single article in memory.
func (c Criteria) Matches(a *news.StoredArticle) bool {
	if a.IsTrashed() {
		return false
	}
	if c.Keyword != "" {
		keyword := strings.ToLower(c.Keyword)
		if !strings.Contains(strings.ToLower(a.Title), keyword) &&
			!strings.Contains(strings.ToLower(a.Content), keyword) &&
			!strings.Contains(strings.ToLower(a.Summary), keyword) {
			return false
		}
	}
	if c.PublishedFrom != nil && (a.PublishedAt == nil || a.PublishedAt.Before(*c.PublishedFrom)) {
		return false
	}
	if c.PublishedTo != nil && (a.PublishedAt == nil || !a.PublishedAt.Before(*c.PublishedTo)) {
		return false
	}
	return matchesSet(c.SourceIDs, a.SourceID) &&
		matchesSet(c.CategoryIDs, a.CategoryID) &&
		matchesSet(c.AuthorIDs, a.AuthorID)
}

// Compare orders two articles the way OrderBy does.
func (c Criteria) Compare(a, b *news.StoredArticle) int {
	var result int
	switch c.sortColumn() {
	case "title":
		result = strings.Compare(a.Title, b.Title)
	case "created_at":
		result = a.CreatedAt.Compare(b.CreatedAt)
	default:
		switch {
		case a.PublishedAt == nil && b.PublishedAt == nil:
			result = 0
		case a.PublishedAt == nil:
			return 1
		case b.PublishedAt == nil:
			return -1
		default:
			result = a.PublishedAt.Compare(*b.PublishedAt)
		}
	}
	if result == 0 {
		result = cmpInt64(a.ID, b.ID)
	}
	if c.Descending {
		return -result
	}
	return result
}

func matchesSet(set []int64, value *int64) bool {
	if len(set) == 0 {
		return true
	}
	return value != nil && slices.Contains(set, *value)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
