// Package bulkselect replaces the selection with the first K records of the
// whole collection, whatever page is on screen.
package bulkselect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/pagination"
	"github.com/Sternrassler/artic-table/pkg/selection"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrBusy is returned by TrySelectFirst while another run is in flight.
var ErrBusy = errors.New("bulk selection in progress")

var (
	bulkSelectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_bulk_select_total",
		Help: "Bulk select runs by result (ok, failed, superseded, cancelled)",
	}, []string{"result"})

	bulkSelectPages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artic_bulk_select_pages_fetched",
		Help:    "Pages fetched per successful bulk select",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
)

// Orchestrator runs bulk selections against one selection set.
type Orchestrator struct {
	walker    *pagination.Walker
	selection *selection.Set
	logger    zerolog.Logger

	mu         sync.Mutex
	busy       bool
	generation uint64
	cancel     context.CancelFunc
	onChange   func()
}

// New creates an orchestrator that walks pages with the given fetcher and
// the display page size from cfg.
func New(fetcher pagination.PageFetcher, set *selection.Set, cfg pagination.Config) *Orchestrator {
	return &Orchestrator{
		walker:    pagination.NewWalker(fetcher, cfg),
		selection: set,
		logger:    logging.NewLogger(logging.ComponentBulkSelect),
	}
}

// SetOnChange registers a hook called when Busy changes and after the
// selection is replaced.
func (o *Orchestrator) SetOnChange(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = fn
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// SelectFirst replaces the selection with the first target records of the
// collection, fetched from page 1 with the display page size. A collection
// smaller than target selects everything. On failure the selection is left
// exactly as it was and the error matches artwork.ErrFetchFailed. A run
// overtaken by a newer SelectFirst returns pagination.ErrSuperseded.
func (o *Orchestrator) SelectFirst(ctx context.Context, target int) error {
	return o.selectFirst(ctx, target, false)
}

// TrySelectFirst is SelectFirst that refuses to supersede a run in flight.
// The busy check and the claim happen under one lock, so of two concurrent
// callers exactly one runs and the other gets ErrBusy.
func (o *Orchestrator) TrySelectFirst(ctx context.Context, target int) error {
	return o.selectFirst(ctx, target, true)
}

func (o *Orchestrator) selectFirst(ctx context.Context, target int, exclusive bool) error {
	if target < 0 {
		return fmt.Errorf("%w: row count must be >= 0 (got %d)", artwork.ErrInvalidInput, target)
	}

	opID := uuid.NewString()
	logger := o.logger.With().Str("op_id", opID).Int("target", target).Logger()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if exclusive && o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	o.generation++
	gen := o.generation
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = cancel
	o.busy = true
	o.mu.Unlock()
	o.notify()

	logger.Info().Int("page_size", o.walker.PageSize()).Msg("Bulk select started")
	start := time.Now()

	records, pages, err := o.walker.FetchFirst(runCtx, target)

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		bulkSelectTotal.WithLabelValues("superseded").Inc()
		logger.Debug().Msg("Bulk select superseded, result discarded")
		return pagination.ErrSuperseded
	}
	o.busy = false
	o.cancel = nil
	if err == nil {
		// Replace under the orchestrator lock so a newer run cannot
		// interleave between the generation check and the write.
		o.selection.ReplaceAll(records)
	}
	o.mu.Unlock()

	if err != nil {
		result := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result = "cancelled"
		}
		bulkSelectTotal.WithLabelValues(result).Inc()
		logger.Warn().Err(err).Int("pages_fetched", pages).Msg("Bulk select aborted, selection unchanged")
		o.notify()
		return err
	}

	bulkSelectTotal.WithLabelValues("ok").Inc()
	bulkSelectPages.Observe(float64(pages))
	logger.Info().
		Int("selected", len(records)).
		Int("pages_fetched", pages).
		Dur("duration", time.Since(start)).
		Msg("Bulk select complete")
	o.notify()
	return nil
}

// Cancel aborts the run in flight, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.onChange
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}
