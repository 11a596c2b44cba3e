package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/config"
	"github.com/obsidianstack/promedge/pkg/edge"
)

// Result is the outcome of evaluating one check once.
type Result struct {
	Check       string
	Query       string
	From        uint64
	To          uint64
	Direction   string // "rising" | "falling"
	Found       bool
	EdgeTime    uint64 // unix seconds; zero unless Found
	EvaluatedAt time.Time
	Duration    time.Duration // query + scan wall time
	Err         string        // non-empty when the evaluation failed
	ErrorKind   string        // edge.Kind of the failure
}

// State is the one-word summary of a Result used by the API and metrics.
func (r Result) State() string {
	switch {
	case r.Err != "":
		return StateError
	case r.Found:
		return StateEdge
	default:
		return StateNoEdge
	}
}

// Result states.
const (
	StateEdge   = "edge"
	StateNoEdge = "no_edge"
	StateError  = "error"
)

// EdgeFinder is the part of *edge.Detector the monitor needs.
type EdgeFinder interface {
	GetLastEdge(ctx context.Context, query string, from, to uint64, maxAge time.Duration) (uint64, bool, error)
}

// Sink receives every Result the monitor produces.
type Sink interface {
	Record(Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

func (f SinkFunc) Record(r Result) { f(r) }

// Monitor evaluates a set of checks against an EdgeFinder and fans the
// results out to its sinks. Evaluation is sequential: one range query in
// flight at a time.
//
// All exported methods are safe for concurrent use.
type Monitor struct {
	finder EdgeFinder
	sinks  []Sink

	mu     sync.Mutex
	checks []config.Check
	last   map[string]*checkState
}

// checkState remembers what the previous evaluation of a check reported.
type checkState struct {
	found    bool
	edgeTime uint64
}

// New returns a Monitor for checks.
func New(finder EdgeFinder, checks []config.Check, sinks ...Sink) *Monitor {
	return &Monitor{
		finder: finder,
		sinks:  sinks,
		checks: append([]config.Check(nil), checks...),
		last:   make(map[string]*checkState),
	}
}

// SetChecks replaces the check list, e.g. after a config reload. State for
// checks that are no longer configured is dropped.
func (m *Monitor) SetChecks(checks []config.Check) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks = append([]config.Check(nil), checks...)
	keep := make(map[string]bool, len(checks))
	for _, c := range checks {
		keep[c.Name] = true
	}
	for name := range m.last {
		if !keep[name] {
			delete(m.last, name)
		}
	}
}

// Checks returns a copy of the current check list.
func (m *Monitor) Checks() []config.Check {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]config.Check(nil), m.checks...)
}

// RunOnce evaluates every check once and returns the results in check order.
//
// now is recorded as EvaluatedAt; it does not drive the query window, which
// the EdgeFinder derives from its own clock.
func (m *Monitor) RunOnce(ctx context.Context, now time.Time) []Result {
	checks := m.Checks()
	out := make([]Result, 0, len(checks))
	for _, c := range checks {
		if ctx.Err() != nil {
			break
		}
		r := m.evaluate(ctx, c, now)
		m.observe(r)
		for _, s := range m.sinks {
			s.Record(r)
		}
		out = append(out, r)
	}
	return out
}

// Run evaluates all checks immediately and then every interval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.RunOnce(ctx, time.Now())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.RunOnce(ctx, now)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context, c config.Check, now time.Time) Result {
	r := Result{
		Check:       c.Name,
		Query:       c.Query,
		From:        c.From,
		To:          c.To,
		Direction:   edge.DirectionOf(c.From, c.To).String(),
		EvaluatedAt: now,
	}

	started := time.Now()
	t, found, err := m.finder.GetLastEdge(ctx, c.Query, c.From, c.To, c.MaxAge)
	r.Duration = time.Since(started)

	if err != nil {
		r.Err = err.Error()
		r.ErrorKind = edge.Kind(err)
		slog.Warn("monitor: check failed",
			"check", c.Name, "kind", r.ErrorKind, "err", err)
		return r
	}
	r.Found = found
	if found {
		r.EdgeTime = t
	}
	return r
}

// observe compares r with the previous result of the same check and logs
// transitions. Errors leave the remembered state untouched.
func (m *Monitor) observe(r Result) {
	if r.Err != "" {
		return
	}

	m.mu.Lock()
	prev, seen := m.last[r.Check]
	if !seen {
		prev = &checkState{}
		m.last[r.Check] = prev
	}
	changed := prev.found != r.Found || prev.edgeTime != r.EdgeTime
	wasFound := prev.found
	prev.found, prev.edgeTime = r.Found, r.EdgeTime
	m.mu.Unlock()

	switch {
	case r.Found && changed:
		slog.Info("monitor: new edge",
			"check", r.Check,
			"direction", r.Direction,
			"edge_time", r.EdgeTime,
			"edge_at", time.Unix(int64(r.EdgeTime), 0).UTC().Format(time.RFC3339),
		)
	case !r.Found && wasFound:
		slog.Info("monitor: edge cleared", "check", r.Check)
	default:
		slog.Debug("monitor: check evaluated",
			"check", r.Check, "found", r.Found, "duration", r.Duration)
	}
}
