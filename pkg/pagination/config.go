package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	navigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_page_navigations_total",
		Help: "Page navigations by result (ok, failed, superseded)",
	}, []string{"result"})

	walkPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_walk_pages_fetched_total",
		Help: "Pages fetched by sequential walks",
	})
)

// ErrSuperseded is returned by an operation whose result was discarded
// because a newer request of the same kind started while it was in flight.
var ErrSuperseded = errors.New("superseded by a newer request")

// PageFetcher fetches a single page. pageIndex is 1-based.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageIndex, pageSize int) (artwork.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, pageIndex, pageSize int) (artwork.Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, pageIndex, pageSize int) (artwork.Page, error) {
	return f(ctx, pageIndex, pageSize)
}

// Config holds pagination configuration.
type Config struct {
	// PageSize is the number of records per page for display and bulk walks.
	PageSize int

	// PageTimeout bounds a single page fetch.
	PageTimeout time.Duration
}

// DefaultConfig returns the table defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:    artwork.DefaultPageSize,
		PageTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = artwork.DefaultPageSize
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	return c
}

// fetchFailed classifies err as artwork.ErrFetchFailed.
func fetchFailed(pageIndex int, err error) error {
	if errors.Is(err, artwork.ErrFetchFailed) {
		return err
	}
	return fmt.Errorf("%w: page %d: %w", artwork.ErrFetchFailed, pageIndex, err)
}
