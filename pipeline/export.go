package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/arcane-translator/arcane-reader/models"
)

// ExportPageSize is the listing page size requested while exporting.
const ExportPageSize = 50

// FetchFunc returns one page of a listing.
type FetchFunc func(ctx context.Context, page, limit int) (*models.NovelPage, error)

// Export walks every page of fetch, feeding the novels into p. Requests are
// paced by limiter; a nil limiter does not wait. It returns the number of
// pages read.
func Export(ctx context.Context, fetch FetchFunc, p *Pipeline, limiter *rate.Limiter) (int, error) {
	pages := 0
	for page := 1; ; page++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return pages, err
			}
		}

		result, err := fetch(ctx, page, ExportPageSize)
		if err != nil {
			return pages, fmt.Errorf("fetch page %d: %w", page, err)
		}
		pages++

		slog.Debug("export page",
			slog.Int("page", page),
			slog.Int("total_pages", result.TotalPages),
			slog.Int("novels", len(result.Novels)),
		)

		if err := p.Process(result.Novels...); err != nil {
			return pages, err
		}
		if len(result.Novels) == 0 || page >= result.TotalPages {
			return pages, nil
		}
	}
}

// NewLimiter paces requests at perSecond with no burst.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
