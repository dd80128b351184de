package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/rs/zerolog"
)

// maxPreallocPages bounds the up-front record capacity of a walk.
const maxPreallocPages = 16

// Walker fetches leading pages of the collection sequentially.
type Walker struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a walker.
func NewWalker(fetcher PageFetcher, config Config) *Walker {
	return &Walker{
		fetcher: fetcher,
		config:  config.withDefaults(),
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// PageSize returns the page size used for every request.
func (w *Walker) PageSize() int {
	return w.config.PageSize
}

// FetchFirst returns the first target records of the collection in dataset
// order, fetching pages 1..ceil(target/pageSize) one at a time and stopping
// as soon as enough records are in hand. A collection smaller than target
// yields all of its records without error. Any page failure aborts the walk
// and returns no records.
func (w *Walker) FetchFirst(ctx context.Context, target int) ([]artwork.Record, int, error) {
	if target < 0 {
		return nil, 0, fmt.Errorf("%w: target must be >= 0 (got %d)", artwork.ErrInvalidInput, target)
	}
	if target == 0 {
		return []artwork.Record{}, 0, nil
	}

	start := time.Now()
	size := w.config.PageSize
	pagesNeeded := target / size
	if target%size != 0 {
		pagesNeeded++
	}
	// target is user input; grow with the pages actually returned.
	records := make([]artwork.Record, 0, min(target, size*maxPreallocPages))
	fetched := 0

	for idx := 1; idx <= pagesNeeded; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, fetched, err
		}

		pageCtx, cancel := context.WithTimeout(ctx, w.config.PageTimeout)
		page, err := w.fetcher.FetchPage(pageCtx, idx, size)
		cancel()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fetched, ctxErr
			}
			w.logger.Warn().
				Err(err).
				Int("page", idx).
				Int("pages_needed", pagesNeeded).
				Msg("Walk aborted on page failure")
			return nil, fetched, fetchFailed(idx, err)
		}

		fetched++
		walkPagesTotal.Inc()
		records = append(records, page.Records...)

		if len(records) >= target {
			break
		}

		// Short or empty page, or the last page the upstream knows about.
		if len(page.Records) < size || (page.TotalPages > 0 && idx >= page.TotalPages) {
			w.logger.Debug().
				Int("page", idx).
				Int("collected", len(records)).
				Int("target", target).
				Msg("Collection exhausted before target")
			break
		}
	}

	if len(records) > target {
		records = records[:target]
	}

	w.logger.Debug().
		Int("target", target).
		Int("records", len(records)).
		Int("pages", fetched).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return records, fetched, nil
}
