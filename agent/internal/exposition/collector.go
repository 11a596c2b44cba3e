package exposition

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/klauspost/compress/gzhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/promedge/agent/internal/monitor"
)

// Metric names exported on /metrics.
const (
	metricEdgeFound      = "promedge_edge_found"
	metricLastEdge       = "promedge_last_edge_timestamp_seconds"
	metricLastEvaluation = "promedge_last_evaluation_timestamp_seconds"
	metricEvaluations    = "promedge_check_evaluations_total"
	metricErrors         = "promedge_check_errors_total"
	metricQueryDuration  = "promedge_query_duration_seconds"
)

// Latency histogram range in microseconds: 1µs to 5 minutes, 3 significant digits.
const (
	latencyMinMicros = 1
	latencyMaxMicros = int64(5 * time.Minute / time.Microsecond)
	latencySigFigs   = 3
)

// summaryQuantiles are the quantiles reported for query latency.
var summaryQuantiles = []float64{0.5, 0.9, 0.99}

// Collector accumulates check results and renders them in the Prometheus
// exposition format. It implements monitor.Sink.
//
// Collector is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	checks map[string]*checkStats
}

type checkStats struct {
	found       bool
	edgeTime    uint64
	evaluatedAt time.Time
	evaluations uint64
	errors      map[string]uint64 // by error kind
	latency     *hdrhistogram.Histogram
	latencySum  time.Duration
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{checks: make(map[string]*checkStats)}
}

// Record folds r into the per-check statistics.
func (c *Collector) Record(r monitor.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.checks[r.Check]
	if !ok {
		st = &checkStats{
			errors:  make(map[string]uint64),
			latency: hdrhistogram.New(latencyMinMicros, latencyMaxMicros, latencySigFigs),
		}
		c.checks[r.Check] = st
	}

	st.evaluations++
	st.evaluatedAt = r.EvaluatedAt
	if r.Err != "" {
		st.errors[r.ErrorKind]++
	} else {
		st.found = r.Found
		st.edgeTime = r.EdgeTime
	}

	micros := r.Duration.Microseconds()
	if micros < latencyMinMicros {
		micros = latencyMinMicros
	}
	if micros > latencyMaxMicros {
		micros = latencyMaxMicros
	}
	if err := st.latency.RecordValue(micros); err != nil {
		slog.Debug("exposition: latency out of range", "check", r.Check, "err", err)
	}
	st.latencySum += r.Duration
}

// Forget drops all statistics for checks not in keep, e.g. after a config
// reload removed them.
func (c *Collector) Forget(keep []string) {
	set := make(map[string]bool, len(keep))
	for _, k := range keep {
		set[k] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.checks {
		if !set[name] {
			delete(c.checks, name)
		}
	}
}

// Gather returns the current metric families, sorted by name, with metrics
// inside each family sorted by check.
func (c *Collector) Gather() []*dto.MetricFamily {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	found := family(metricEdgeFound, "Whether the last successful evaluation found an edge (1) or not (0).", dto.MetricType_GAUGE)
	lastEdge := family(metricLastEdge, "Unix time of the last detected edge.", dto.MetricType_GAUGE)
	lastEval := family(metricLastEvaluation, "Unix time of the last evaluation.", dto.MetricType_GAUGE)
	evals := family(metricEvaluations, "Total check evaluations.", dto.MetricType_COUNTER)
	errs := family(metricErrors, "Total failed check evaluations by error kind.", dto.MetricType_COUNTER)
	dur := family(metricQueryDuration, "Wall time of one edge query, range query plus scan.", dto.MetricType_SUMMARY)

	for _, name := range names {
		st := c.checks[name]
		lbl := []*dto.LabelPair{label("check", name)}

		var foundVal float64
		if st.found {
			foundVal = 1
			lastEdge.Metric = append(lastEdge.Metric, gauge(lbl, float64(st.edgeTime)))
		}
		found.Metric = append(found.Metric, gauge(lbl, foundVal))
		lastEval.Metric = append(lastEval.Metric, gauge(lbl, float64(st.evaluatedAt.UnixNano())/1e9))
		evals.Metric = append(evals.Metric, counter(lbl, float64(st.evaluations)))

		kinds := make([]string, 0, len(st.errors))
		for k := range st.errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			errs.Metric = append(errs.Metric, counter(
				[]*dto.LabelPair{label("check", name), label("kind", k)},
				float64(st.errors[k]),
			))
		}

		dur.Metric = append(dur.Metric, summary(lbl, st))
	}

	out := []*dto.MetricFamily{}
	for _, mf := range []*dto.MetricFamily{errs, evals, found, lastEdge, lastEval, dur} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// ServeHTTP writes the metrics in the format negotiated from the Accept header.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range c.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("exposition: encode failed", "metric", mf.GetName(), "err", err)
			return
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("exposition: close encoder", "err", err)
		}
	}
}

// Handler returns c wrapped with gzip compression for clients that accept it.
func (c *Collector) Handler() http.Handler {
	return gzhttp.GzipHandler(c)
}

// --- dto helpers ------------------------------------------------------------

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func gauge(lbl []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{Label: lbl, Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func counter(lbl []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{Label: lbl, Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func summary(lbl []*dto.LabelPair, st *checkStats) *dto.Metric {
	s := &dto.Summary{
		SampleCount: proto.Uint64(uint64(st.latency.TotalCount())),
		SampleSum:   proto.Float64(st.latencySum.Seconds()),
	}
	for _, q := range summaryQuantiles {
		micros := st.latency.ValueAtQuantile(q * 100)
		s.Quantile = append(s.Quantile, &dto.Quantile{
			Quantile: proto.Float64(q),
			Value:    proto.Float64(float64(micros) / 1e6),
		})
	}
	return &dto.Metric{Label: lbl, Summary: s}
}
