package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/monitor"
)

// Entry is a check result together with the time it was stored.
type Entry struct {
	Result    monitor.Result
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory cache of the latest result per check.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL, so removed checks disappear.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Record stores r as the latest result for r.Check. It implements monitor.Sink.
func (s *Store) Record(r monitor.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Check] = &Entry{Result: r, UpdatedAt: s.now()}
}

// Get returns the live entry for check, and false if there is none or it has
// outlived the TTL.
func (s *Store) Get(check string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[check]
	if !ok || s.stale(e, s.now()) {
		return nil, false
	}
	return e, true
}

// List returns all live entries sorted by check name.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if !s.stale(e, now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Result.Check < out[j].Result.Check })
	return out
}

// Count returns the number of stored entries, stale ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Evict removes all entries not updated within the TTL as of now and returns
// how many were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, e := range s.data {
		if s.stale(e, now) {
			delete(s.data, name)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop, ticking at half the TTL (minimum
// one second). It blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale results", "count", n)
			}
		}
	}
}

func (s *Store) stale(e *Entry, now time.Time) bool {
	return !e.UpdatedAt.After(now.Add(-s.ttl))
}
