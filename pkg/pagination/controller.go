package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/rs/zerolog"
)

// State is a snapshot of the controller.
type State struct {
	// Page is the last successfully fetched page.
	Page artwork.Page

	// CurrentPage is the 1-based index of Page, 0 before the first load.
	CurrentPage int

	// RequestedPage is the index of the latest navigation request.
	RequestedPage int

	PageSize     int
	TotalRecords int
	TotalPages   int
	Loading      bool

	// LastErr is the failure of the latest navigation, nil after a success.
	LastErr error
}

// FirstIndex returns the zero-based offset of the first displayed row.
func (s State) FirstIndex() int {
	if s.CurrentPage < 1 {
		return 0
	}
	return (s.CurrentPage - 1) * s.PageSize
}

// Controller tracks the displayed page. All methods are safe for
// concurrent use.
type Controller struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	onChange   func()
}

// NewController creates a controller. Nothing is fetched until the first
// GoToPage.
func NewController(fetcher PageFetcher, config Config) *Controller {
	config = config.withDefaults()
	return &Controller{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
		state:   State{PageSize: config.PageSize},
	}
}

// SetOnChange registers a hook called after every state transition. The
// hook runs without the controller lock held.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.config.PageSize
}

// OnNavigationEvent converts a zero-based first-row offset, as emitted by a
// paginator, into a page index and navigates to it.
func (c *Controller) OnNavigationEvent(ctx context.Context, firstRowOffset int) error {
	if firstRowOffset < 0 {
		return fmt.Errorf("%w: row offset must be >= 0 (got %d)", artwork.ErrInvalidInput, firstRowOffset)
	}
	return c.GoToPage(ctx, artwork.PageForOffset(firstRowOffset, c.config.PageSize))
}

// Reload fetches the current page again, or page 1 before the first load.
func (c *Controller) Reload(ctx context.Context) error {
	idx := c.State().CurrentPage
	if idx < 1 {
		idx = 1
	}
	return c.GoToPage(ctx, idx)
}

// GoToPage fetches page index and makes it the displayed page. A call that
// is overtaken by a newer GoToPage returns ErrSuperseded and changes
// nothing. On failure the previous page stays displayed and the error,
// matching artwork.ErrFetchFailed, is returned and kept in State.LastErr.
func (c *Controller) GoToPage(ctx context.Context, index int) error {
	if index < 1 {
		return fmt.Errorf("%w: page index must be >= 1 (got %d)", artwork.ErrInvalidInput, index)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.PageTimeout)
	c.cancel = cancel
	c.state.Loading = true
	c.state.RequestedPage = index
	c.mu.Unlock()
	c.notify()

	c.logger.Debug().Int("page", index).Uint64("generation", gen).Msg("Navigating")

	page, err := c.fetcher.FetchPage(fetchCtx, index, c.config.PageSize)
	cancel()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		navigationsTotal.WithLabelValues("superseded").Inc()
		c.logger.Debug().Int("page", index).Uint64("generation", gen).Msg("Discarding superseded page")
		return ErrSuperseded
	}
	c.cancel = nil
	c.state.Loading = false

	if err != nil {
		err = fetchFailed(index, err)
		c.state.LastErr = err
		c.mu.Unlock()

		navigationsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Int("page", index).Msg("Page fetch failed, keeping previous page")
		c.notify()
		return err
	}

	c.state.Page = page
	c.state.CurrentPage = index
	c.state.TotalRecords = page.TotalRecords
	c.state.TotalPages = page.TotalPages
	c.state.LastErr = nil
	c.mu.Unlock()

	navigationsTotal.WithLabelValues("ok").Inc()
	c.logger.Info().
		Int("page", index).
		Int("records", page.Len()).
		Int("total_pages", page.TotalPages).
		Msg("Page loaded")
	c.notify()
	return nil
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
