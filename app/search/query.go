package search

import (
	"encoding/json"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
)

// Field weights for keyword relevance in the primary engine.
var keywordFields = []string{"title^3", "summary^2", "content"}

// sortFields maps allow-listed sort fields to their sortable index fields.
var sortFields = map[string]string{
	"published_at": "published_at",
	"created_at":   "created_at",
	"title":        "title.keyword",
}

// Query is the structured primary-engine query built from a Filter.
type Query struct {
	Keyword *MultiMatch
	Terms   []Terms
	Range   *Range
	Sort    Sort
	From    int
	Size    int
}

type MultiMatch struct {
	Query     string
	Fields    []string
	Type      string
	Fuzziness string
}

// Terms is an exact-value membership filter; values within one field are ORed.
type Terms struct {
	Field  string
	Values []int64
}

// Range is a half-open [GTE, LT) time filter.
type Range struct {
	Field string
	GTE   *time.Time
	LT    *time.Time
}

type Sort struct {
	Field string
	Order string
}

// BuildQuery translates a filter into the primary engine's query.
func BuildQuery(f Filter) Query {
	f = f.Normalize()

	q := Query{
		Sort: Sort{Field: sortFields[f.SortBy], Order: f.SortDir},
		From: f.Offset(),
		Size: f.PerPage,
	}

	if f.Keyword != "" {
		q.Keyword = &MultiMatch{
			Query:     f.Keyword,
			Fields:    keywordFields,
			Type:      "best_fields",
			Fuzziness: "AUTO",
		}
	}

	for _, t := range []Terms{
		{Field: "source_id", Values: f.SourceIDs},
		{Field: "category_id", Values: f.CategoryIDs},
		{Field: "author_id", Values: f.AuthorIDs},
	} {
		if len(t.Values) > 0 {
			q.Terms = append(q.Terms, t)
		}
	}

	if from, to := f.DateBounds(); from != nil || to != nil {
		q.Range = &Range{Field: "published_at", GTE: from, LT: to}
	}

	return q
}

// BuildCriteria translates a filter into the relational fallback query.
func BuildCriteria(f Filter) database.Criteria {
	f = f.Normalize()
	from, to := f.DateBounds()

	return database.Criteria{
		Keyword:       f.Keyword,
		PublishedFrom: from,
		PublishedTo:   to,
		SourceIDs:     f.SourceIDs,
		CategoryIDs:   f.CategoryIDs,
		AuthorIDs:     f.AuthorIDs,
		SortField:     f.SortBy,
		Descending:    f.Descending(),
		Limit:         f.PerPage,
		Offset:        f.Offset(),
	}
}

// MarshalJSON renders the Elasticsearch search request body.
func (q Query) MarshalJSON() ([]byte, error) {
	must := []any{map[string]any{"match_all": map[string]any{}}}
	if q.Keyword != nil {
		must = []any{map[string]any{
			"multi_match": map[string]any{
				"query":     q.Keyword.Query,
				"fields":    q.Keyword.Fields,
				"type":      q.Keyword.Type,
				"fuzziness": q.Keyword.Fuzziness,
			},
		}}
	}

	filter := []any{}
	for _, t := range q.Terms {
		filter = append(filter, map[string]any{"terms": map[string]any{t.Field: t.Values}})
	}
	if q.Range != nil {
		bounds := map[string]any{}
		if q.Range.GTE != nil {
			bounds["gte"] = q.Range.GTE.Format(time.RFC3339)
		}
		if q.Range.LT != nil {
			bounds["lt"] = q.Range.LT.Format(time.RFC3339)
		}
		filter = append(filter, map[string]any{"range": map[string]any{q.Range.Field: bounds}})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []any{
			map[string]any{q.Sort.Field: map[string]any{"order": q.Sort.Order, "missing": "_last"}},
			map[string]any{"id": map[string]any{"order": q.Sort.Order}},
		},
		"from":             q.From,
		"size":             q.Size,
		"track_total_hits": true,
		"_source":          false,
	}

	return json.Marshal(body)
}
