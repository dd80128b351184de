// Package view coordinates the displayed page, the selection set and bulk
// selection behind one render state. Presentation layers subscribe to State
// changes instead of re-deriving anything from the rows they show.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/bulkselect"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/pagination"
	"github.com/Sternrassler/artic-table/pkg/selection"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownRecord is returned when toggling an id that is not on the
	// displayed page.
	ErrUnknownRecord = errors.New("record not on displayed page")

	// ErrBusy is returned when a bulk selection is already running.
	ErrBusy = bulkselect.ErrBusy
)

// State is everything a renderer needs.
type State struct {
	Rows              []artwork.Record
	TotalRecords      int
	CurrentFirstIndex int
	CurrentPage       int
	TotalPages        int
	PageSize          int
	Loading           bool
	LastErr           error

	SelectedIDs   map[int64]struct{}
	SelectedCount int

	BulkBusy   bool
	DialogOpen bool
	DialogErr  error
}

// IsSelected reports whether id is in SelectedIDs.
func (s State) IsSelected(id int64) bool {
	_, ok := s.SelectedIDs[id]
	return ok
}

// View is the table's state holder. It is safe for concurrent use.
type View struct {
	controller *pagination.Controller
	selection  *selection.Set
	bulk       *bulkselect.Orchestrator
	logger     zerolog.Logger

	mu          sync.Mutex
	dialogOpen  bool
	dialogErr   error
	nextSubID   int
	subscribers map[int]func(State)
}

// New wires a view around fetcher. Nothing is fetched until Load.
func New(fetcher pagination.PageFetcher, cfg pagination.Config) *View {
	set := selection.New()
	v := &View{
		controller:  pagination.NewController(fetcher, cfg),
		selection:   set,
		bulk:        bulkselect.New(fetcher, set, cfg),
		logger:      logging.NewLogger(logging.ComponentView),
		subscribers: make(map[int]func(State)),
	}
	v.controller.SetOnChange(v.notify)
	v.bulk.SetOnChange(v.notify)
	return v
}

// Subscribe registers fn to receive every new State. The returned func
// removes the subscription.
func (v *View) Subscribe(fn func(State)) (cancel func()) {
	v.mu.Lock()
	id := v.nextSubID
	v.nextSubID++
	v.subscribers[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subscribers, id)
		v.mu.Unlock()
	}
}

// State builds the current render state.
func (v *View) State() State {
	ps := v.controller.State()

	v.mu.Lock()
	dialogOpen, dialogErr := v.dialogOpen, v.dialogErr
	v.mu.Unlock()

	return State{
		Rows:              ps.Page.Records,
		TotalRecords:      ps.TotalRecords,
		CurrentFirstIndex: ps.FirstIndex(),
		CurrentPage:       ps.CurrentPage,
		TotalPages:        ps.TotalPages,
		PageSize:          ps.PageSize,
		Loading:           ps.Loading,
		LastErr:           ps.LastErr,
		SelectedIDs:       v.selection.IDs(),
		SelectedCount:     v.selection.Len(),
		BulkBusy:          v.bulk.Busy(),
		DialogOpen:        dialogOpen,
		DialogErr:         dialogErr,
	}
}

// Load fetches the first page.
func (v *View) Load(ctx context.Context) error {
	return v.ignoreSuperseded(v.controller.GoToPage(ctx, 1))
}

// OnPageChange handles a paginator event carrying the zero-based index of
// the first row to show.
func (v *View) OnPageChange(ctx context.Context, firstIndex int) error {
	return v.ignoreSuperseded(v.controller.OnNavigationEvent(ctx, firstIndex))
}

// GoToPage navigates to a 1-based page index.
func (v *View) GoToPage(ctx context.Context, index int) error {
	return v.ignoreSuperseded(v.controller.GoToPage(ctx, index))
}

// Reload fetches the displayed page again.
func (v *View) Reload(ctx context.Context) error {
	return v.ignoreSuperseded(v.controller.Reload(ctx))
}

// OnRowToggle toggles a record on the displayed page and returns its new
// membership.
func (v *View) OnRowToggle(id int64) (bool, error) {
	rec, ok := v.controller.State().Page.Find(id)
	if !ok {
		return false, fmt.Errorf("%w: id %d", ErrUnknownRecord, id)
	}
	selected := v.selection.Toggle(rec)
	v.notify()
	return selected, nil
}

// IsSelected reports whether id is selected.
func (v *View) IsSelected(id int64) bool {
	return v.selection.IsSelected(id)
}

// Selected returns the selected records ordered by id.
func (v *View) Selected() []artwork.Record {
	return v.selection.Snapshot()
}

// ClearSelection empties the selection.
func (v *View) ClearSelection() {
	v.selection.Clear()
	v.notify()
}

// OnHeaderAction opens the bulk selection dialog.
func (v *View) OnHeaderAction() {
	v.mu.Lock()
	v.dialogOpen = true
	v.dialogErr = nil
	v.mu.Unlock()
	v.notify()
}

// DismissDialog closes the bulk selection dialog and cancels a run in
// flight.
func (v *View) DismissDialog() {
	v.mu.Lock()
	v.dialogOpen = false
	v.dialogErr = nil
	v.mu.Unlock()
	v.bulk.Cancel()
	v.notify()
}

// ConfirmDialog validates the raw dialog input and runs the bulk selection.
// Invalid input and fetch failures keep the dialog open with the error so
// the user can retry; success closes it.
func (v *View) ConfirmDialog(ctx context.Context, raw string) error {
	count, err := artwork.ParseCount(raw)
	if err != nil {
		v.setDialog(true, err)
		return err
	}

	v.setDialog(true, nil)

	err = v.bulk.TrySelectFirst(ctx, count)
	if errors.Is(err, ErrBusy) || errors.Is(err, pagination.ErrSuperseded) {
		return err
	}

	v.mu.Lock()
	dismissed := !v.dialogOpen
	v.mu.Unlock()

	switch {
	case err != nil && dismissed:
		// DismissDialog cancelled the run.
		return err
	case err != nil:
		v.logger.Warn().Err(err).Int("count", count).Msg("Bulk select failed, dialog stays open")
		v.setDialog(true, err)
		return err
	}

	v.logger.Debug().Int("count", count).Msg("Bulk select confirmed")
	v.setDialog(false, nil)
	return nil
}

func (v *View) setDialog(open bool, err error) {
	v.mu.Lock()
	v.dialogOpen = open
	v.dialogErr = err
	v.mu.Unlock()
	v.notify()
}

// ignoreSuperseded hides ErrSuperseded: the newer request owns the state.
func (v *View) ignoreSuperseded(err error) error {
	if errors.Is(err, pagination.ErrSuperseded) {
		return nil
	}
	return err
}

func (v *View) notify() {
	v.mu.Lock()
	subs := make([]func(State), 0, len(v.subscribers))
	for _, fn := range v.subscribers {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	s := v.State()
	for _, fn := range subs {
		fn(s)
	}
}
