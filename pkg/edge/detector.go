package edge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/obsidianstack/promedge/pkg/promapi"
)

// Querier executes one range query. *promapi.Client satisfies it.
type Querier interface {
	QueryRange(ctx context.Context, q promapi.RangeQuery) ([]promapi.Series, error)
}

// Detector answers edge queries against a backend.
//
// It holds no per-call state, so one Detector may serve any number of
// concurrent callers.
type Detector struct {
	q      Querier
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the wall clock used by GetLastEdge.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLogger sets the logger for debug output. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New returns a Detector that issues its queries through q.
func New(q Querier, opts ...Option) *Detector {
	d := &Detector{q: q, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// NewForURL returns a Detector for the Prometheus server at baseURL.
// A nil hc gets a default client with a 10s timeout.
func NewForURL(baseURL string, hc *http.Client, opts ...Option) *Detector {
	return New(promapi.New(baseURL, hc), opts...)
}

// GetLastEdge looks for an edge in the maxAge window ending now.
func (d *Detector) GetLastEdge(ctx context.Context, query string, from, to uint64, maxAge time.Duration) (uint64, bool, error) {
	start, end := WindowEndingAt(d.now(), maxAge)
	return d.GetEdgeBetween(ctx, query, from, to, start, end)
}

// GetEdgeBetween looks for an edge between start and end (unix seconds).
//
// It issues exactly one range query. The returned timestamp is only
// meaningful when the bool is true.
func (d *Detector) GetEdgeBetween(ctx context.Context, query string, from, to, start, end uint64) (uint64, bool, error) {
	rq := Plan(query, start, end)
	d.logger.Debug("edge: range query",
		"query", rq.Query,
		"start", rq.Start,
		"end", rq.End,
		"step", rq.Step,
		"direction", DirectionOf(from, to),
	)

	series, err := d.q.QueryRange(ctx, rq)
	if err != nil {
		return 0, false, fmt.Errorf("edge query %q: %w", query, err)
	}
	if len(series) > 1 {
		d.logger.Debug("edge: ignoring extra series", "query", query, "series", len(series))
	}

	t, found, err := ScanSeries(series, from, to)
	if err != nil {
		return 0, false, fmt.Errorf("edge query %q: %w", query, err)
	}
	return t, found, nil
}
