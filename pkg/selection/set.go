// Package selection holds the set of selected artworks. Membership is keyed
// by record id and is independent of which page is displayed: changing pages
// never prunes it.
package selection

import (
	"sort"
	"sync"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var selectionSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "artic_selection_size",
	Help: "Number of records currently selected",
})

// Set is a concurrency-safe set of records keyed by id.
type Set struct {
	mu      sync.RWMutex
	members map[int64]artwork.Record
}

// New returns an empty set.
func New() *Set {
	return &Set{members: make(map[int64]artwork.Record)}
}

// Toggle removes the record if present and inserts it otherwise. It returns
// the membership after the call.
func (s *Set) Toggle(r artwork.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.members[r.ID]
	if present {
		delete(s.members, r.ID)
	} else {
		s.members[r.ID] = r
	}
	selectionSize.Set(float64(len(s.members)))
	return !present
}

// ReplaceAll discards the current membership and installs records. Duplicate
// ids keep the last occurrence.
func (s *Set) ReplaceAll(records []artwork.Record) {
	members := make(map[int64]artwork.Record, len(records))
	for _, r := range records {
		members[r.ID] = r
	}

	s.mu.Lock()
	s.members = members
	s.mu.Unlock()
	selectionSize.Set(float64(len(members)))
}

// Clear empties the set.
func (s *Set) Clear() {
	s.ReplaceAll(nil)
}

// IsSelected reports whether id is a member.
func (s *Set) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[id]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Snapshot returns the members ordered by id.
func (s *Set) Snapshot() []artwork.Record {
	s.mu.RLock()
	out := make([]artwork.Record, 0, len(s.members))
	for _, r := range s.members {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns a copy of the member ids.
func (s *Set) IDs() map[int64]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int64]struct{}, len(s.members))
	for id := range s.members {
		ids[id] = struct{}{}
	}
	return ids
}
