package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/artic-table/pkg/artwork"
)

var errUpstream = errors.New("upstream unavailable")

// fakeFetcher serves a generated dataset and lets tests fail or hold
// individual pages.
type fakeFetcher struct {
	mu      sync.Mutex
	records []artwork.Record
	fail    map[int]bool
	gates   map[int]chan struct{}
	// ignoreCtx makes held pages complete even after cancellation.
	ignoreCtx bool
	calls     []int
	started   chan int
}

func newFakeFetcher(total int) *fakeFetcher {
	records := make([]artwork.Record, total)
	for i := range records {
		records[i] = artwork.Record{ID: int64(i + 1), Title: fmt.Sprintf("Artwork %d", i+1)}
	}
	return &fakeFetcher{
		records: records,
		fail:    make(map[int]bool),
		gates:   make(map[int]chan struct{}),
		started: make(chan int, 64),
	}
}

func (f *fakeFetcher) failPage(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[page] = true
}

// hold blocks page until the returned release func is called.
func (f *fakeFetcher) hold(page int) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[page] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeFetcher) callLog() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageIndex, pageSize int) (artwork.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageIndex)
	gate := f.gates[pageIndex]
	fail := f.fail[pageIndex]
	records := f.records
	ignoreCtx := f.ignoreCtx
	f.mu.Unlock()

	f.started <- pageIndex

	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return artwork.Page{}, ctx.Err()
			}
		}
	}

	if fail {
		return artwork.Page{}, errUpstream
	}

	total := len(records)
	start := (pageIndex - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return artwork.Page{
		Index:        pageIndex,
		Size:         pageSize,
		Records:      append([]artwork.Record(nil), records[start:end]...),
		TotalRecords: total,
		TotalPages:   artwork.TotalPages(total, pageSize),
	}, nil
}
