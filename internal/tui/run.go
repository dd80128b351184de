package tui

import (
	"context"
	"sync"

	"github.com/Sternrassler/artic-table/pkg/view"
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the terminal UI on v and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, v *view.View, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, v), opts...)

	fwd := newForwarder(p.Send)
	unsubscribe := v.Subscribe(fwd.push)
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go fwd.loop(done)

	_, err := p.Run()
	return err
}

// forwarder hands view states to the program from its own goroutine.
// View notifications can fire inside Update, where a direct Send would
// block the event loop. Only the latest pending state is kept.
type forwarder struct {
	send func(tea.Msg)

	mu      sync.Mutex
	pending *view.State
	wake    chan struct{}
}

func newForwarder(send func(tea.Msg)) *forwarder {
	return &forwarder{send: send, wake: make(chan struct{}, 1)}
}

func (f *forwarder) push(s view.State) {
	f.mu.Lock()
	f.pending = &s
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *forwarder) loop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-f.wake:
		}

		f.mu.Lock()
		s := f.pending
		f.pending = nil
		f.mu.Unlock()

		if s != nil {
			f.send(StateMsg(*s))
		}
	}
}
