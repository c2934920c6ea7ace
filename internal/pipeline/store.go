package pipeline

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
)

// ReconcileResult describes the store after one reconciliation.
type ReconcileResult struct {
	Snapshot []domain.Event // newest first
	New      []domain.Event // identities absent before this cycle, evicted or not
	Evicted  int
}

// Store holds the events of one feed window keyed by identity.
type Store struct {
	mu       sync.RWMutex
	events   map[string]domain.Event
	window   domain.FeedWindow
	horizons map[domain.FeedWindow]time.Duration
}

// NewStore creates an empty store for window. horizons gives the maximum age
// of an event per feed window.
func NewStore(window domain.FeedWindow, horizons map[domain.FeedWindow]time.Duration) *Store {
	return &Store{
		events:   make(map[string]domain.Event),
		window:   window,
		horizons: horizons,
	}
}

// Reconcile merges incoming into the store, evicts events older than the
// window horizon relative to now, and returns the ordered snapshot. On an
// initial reconciliation no event is reported as new.
func (s *Store) Reconcile(incoming []domain.Event, initial bool, now time.Time) ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newIDs []string
	for _, e := range incoming {
		_, ok := s.events[e.ID]
		s.events[e.ID] = e
		if !initial && !ok {
			newIDs = append(newIDs, e.ID)
		}
	}
	// Capture the merged versions before eviction: a first sighting is new
	// even when it is already past the horizon.
	var fresh []domain.Event
	for _, id := range newIDs {
		fresh = append(fresh, s.events[id])
	}

	evicted := s.evictLocked(now)

	return ReconcileResult{Snapshot: s.snapshotLocked(), New: fresh, Evicted: evicted}
}

func (s *Store) evictLocked(now time.Time) int {
	cutoff := now.UnixMilli() - s.horizons[s.window].Milliseconds()
	evicted := 0
	for id, e := range s.events {
		if e.Time < cutoff {
			delete(s.events, id)
			evicted++
		}
	}
	return evicted
}

// Reset clears every event and switches the eviction horizon to window.
func (s *Store) Reset(window domain.FeedWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	s.window = window
}

// Snapshot returns a copy of the current events, newest first.
func (s *Store) Snapshot() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []domain.Event {
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Event) int {
		if c := cmp.Compare(b.Time, a.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Window returns the feed window whose horizon is applied.
func (s *Store) Window() domain.FeedWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
