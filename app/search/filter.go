package search

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100

	DefaultSortField = "published_at"
	SortAsc          = "asc"
	SortDesc         = "desc"
)

// SortableFields is the allow-list shared by both query builders.
var SortableFields = []string{"published_at", "created_at", "title"}

// Filter is the backend-agnostic description of one read query.
// From and To are calendar days and both bounds are inclusive.
type Filter struct {
	Keyword     string
	From        *time.Time
	To          *time.Time
	SourceIDs   []int64
	CategoryIDs []int64
	AuthorIDs   []int64
	SortBy      string
	SortDir     string
	PerPage     int
	Page        int
}

// Normalize applies defaults and clamps every field to its allowed range.
func (f Filter) Normalize() Filter {
	f.Keyword = strings.TrimSpace(f.Keyword)

	if !slices.Contains(SortableFields, f.SortBy) {
		f.SortBy = DefaultSortField
	}

	f.SortDir = strings.ToLower(f.SortDir)
	if f.SortDir != SortAsc {
		f.SortDir = SortDesc
	}

	switch {
	case f.PerPage <= 0:
		f.PerPage = DefaultPerPage
	case f.PerPage > MaxPerPage:
		f.PerPage = MaxPerPage
	}

	if f.Page < 1 {
		f.Page = 1
	}

	f.SourceIDs = normalizeIDs(f.SourceIDs)
	f.CategoryIDs = normalizeIDs(f.CategoryIDs)
	f.AuthorIDs = normalizeIDs(f.AuthorIDs)

	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

func (f Filter) Descending() bool {
	return f.SortDir != SortAsc
}

// DateBounds returns the half-open UTC interval [from, to) covering the inclusive day range.
func (f Filter) DateBounds() (from, to *time.Time) {
	if f.From != nil {
		start := startOfDay(*f.From)
		from = &start
	}
	if f.To != nil {
		end := startOfDay(*f.To).AddDate(0, 0, 1)
		to = &end
	}
	return from, to
}

// Key identifies the normalized filter, for caching.
func (f Filter) Key() string {
	f = f.Normalize()

	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|sort=%s:%s|page=%d:%d", f.Keyword, f.SortBy, f.SortDir, f.Page, f.PerPage)
	if from, to := f.DateBounds(); from != nil || to != nil {
		fmt.Fprintf(&b, "|from=%s|to=%s", formatDay(from), formatDay(to))
	}
	fmt.Fprintf(&b, "|src=%v|cat=%v|auth=%v", f.SourceIDs, f.CategoryIDs, f.AuthorIDs)

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash[:12])
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// normalizeIDs sorts and deduplicates an ID set; nil stays nil.
func normalizeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
