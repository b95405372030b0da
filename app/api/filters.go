package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/news-comb/app/search"
)

type filterQuery struct {
	Keyword     string `form:"keyword"`
	Q           string `form:"q"`
	From        string `form:"from"`
	To          string `form:"to"`
	SourceIDs   string `form:"source_ids"`
	CategoryIDs string `form:"category_ids"`
	AuthorIDs   string `form:"author_ids"`
	SortBy      string `form:"sort_by"`
	SortDir     string `form:"sort_dir"`
	PerPage     int    `form:"per_page"`
	Page        int    `form:"page"`
}

// parseFilter reads a search.Filter from the query string. Dates are YYYY-MM-DD and
// ID sets are comma separated.
func parseFilter(c *gin.Context) (search.Filter, error) {
	var q filterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return search.Filter{}, fmt.Errorf("invalid query parameters: %w", err)
	}

	f := search.Filter{
		Keyword: q.Keyword,
		SortBy:  q.SortBy,
		SortDir: q.SortDir,
		PerPage: q.PerPage,
		Page:    q.Page,
	}
	if f.Keyword == "" {
		f.Keyword = q.Q
	}

	var err error
	if f.From, err = parseDate("from", q.From); err != nil {
		return search.Filter{}, err
	}
	if f.To, err = parseDate("to", q.To); err != nil {
		return search.Filter{}, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return search.Filter{}, fmt.Errorf("to must not be before from")
	}

	if f.SourceIDs, err = parseIDs("source_ids", q.SourceIDs); err != nil {
		return search.Filter{}, err
	}
	if f.CategoryIDs, err = parseIDs("category_ids", q.CategoryIDs); err != nil {
		return search.Filter{}, err
	}
	if f.AuthorIDs, err = parseIDs("author_ids", q.AuthorIDs); err != nil {
		return search.Filter{}, err
	}

	return f.Normalize(), nil
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", name)
	}
	return &t, nil
}

func parseIDs(name, value string) ([]int64, error) {
	if value == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%s must be a comma separated list of positive integers", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"error": "Invalid article id"})
		return 0, false
	}
	return id, true
}
