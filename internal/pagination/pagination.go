// Package pagination slices aggregation pipelines into numbered pages.
package pagination

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/pipeline"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params selects one page of a result set.
type Params struct {
	Page  int64
	Limit int64
}

// ParseParams normalises raw query string values. Missing, non-numeric and
// non-positive values fall back to the defaults; limit is capped at MaxLimit.
func ParseParams(page, limit string) Params {
	return Params{
		Page:  parsePositive(page, DefaultPage),
		Limit: parsePositive(limit, DefaultLimit),
	}.normalize()
}

func parsePositive(raw string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (p Params) normalize() Params {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Skip is the number of documents preceding the page. It saturates at
// math.MaxInt64 for pages too far out to address, which reads as past the end.
func (p Params) Skip() int64 {
	p = p.normalize()
	if p.Page-1 > math.MaxInt64/p.Limit {
		return math.MaxInt64
	}
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a paginated query.
type Page[T any] struct {
	Results     []T   `json:"results"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int64 `json:"currentPage"`
	Limit       int64 `json:"limit"`
}

// TotalPages is ceil(totalItems / limit).
func TotalPages(totalItems, limit int64) int64 {
	if totalItems <= 0 || limit <= 0 {
		return 0
	}
	return (totalItems + limit - 1) / limit
}

type countResult struct {
	Total int64 `bson:"total"`
}

// Paginate runs base twice: once without its sort stages to count the
// matching documents, and once with skip and limit appended after the sort.
// The shape stages follow the slice and must not change the number of
// documents; joins and projections belong there so they run only on the
// page. The two reads share no snapshot, so a concurrent write may leave
// TotalItems out of step with Results. A page past the end yields empty
// Results.
func Paginate[T any](ctx context.Context, source db.Aggregator, base pipeline.Pipeline, params Params, shape ...pipeline.Stage) (Page[T], error) {
	params = params.normalize()

	total, err := Count(ctx, source, base)
	if err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{
		Results:     []T{},
		TotalItems:  total,
		TotalPages:  TotalPages(total, params.Limit),
		CurrentPage: params.Page,
		Limit:       params.Limit,
	}
	if params.Skip() >= total {
		return page, nil
	}

	slice := base.Then(pipeline.Skip(params.Skip()), pipeline.Limit(params.Limit)).Then(shape...)
	cursor, err := source.Aggregate(ctx, slice.Build())
	if err != nil {
		return Page[T]{}, fmt.Errorf("aggregate page: %w", err)
	}
	if err := cursor.All(ctx, &page.Results); err != nil {
		return Page[T]{}, fmt.Errorf("decode page: %w", err)
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page, nil
}

// Count returns the number of documents base produces, ignoring its sort.
func Count(ctx context.Context, source db.Aggregator, base pipeline.Pipeline) (int64, error) {
	counting := base.Without(pipeline.IsSort).Then(pipeline.Count("total"))
	cursor, err := source.Aggregate(ctx, counting.Build())
	if err != nil {
		return 0, fmt.Errorf("aggregate count: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return 0, fmt.Errorf("read count: %w", err)
		}
		return 0, nil
	}
	var result countResult
	if err := cursor.Decode(&result); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return result.Total, nil
}
