package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/monitor"
	"github.com/obsidianstack/promedge/agent/internal/store"
	"github.com/obsidianstack/promedge/pkg/edge"
)

// EdgeQuerier runs ad-hoc edge queries. *edge.Detector satisfies it.
type EdgeQuerier interface {
	GetEdgeBetween(ctx context.Context, query string, from, to, start, end uint64) (uint64, bool, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store *store.Store
	det   EdgeQuerier
	now   func() time.Time
	mux   *http.ServeMux
}

// New creates a Handler reading check results from st and answering ad-hoc
// queries through det, and registers all routes.
func New(st *store.Store, det EdgeQuerier) *Handler {
	h := &Handler{store: st, det: det, now: time.Now, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/checks", h.listChecks)
	h.mux.HandleFunc("/api/v1/checks/", h.getCheck) // subtree: extracts {name}
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/edge", h.edge)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: check counts per state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{CheckCount: len(entries)}
	for _, e := range entries {
		switch e.Result.State() {
		case monitor.StateEdge:
			resp.EdgeCount++
		case monitor.StateNoEdge:
			resp.NoEdgeCount++
		default:
			resp.ErrorCount++
		}
	}

	switch {
	case len(entries) == 0:
		resp.State = "unknown"
	case resp.ErrorCount > 0:
		resp.State = "degraded"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listChecks returns GET /api/v1/checks: latest result of every live check.
func (h *Handler) listChecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store).Checks)
}

// getCheck returns GET /api/v1/checks/{name}.
func (h *Handler) getCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/checks/")
	if name == "" {
		h.listChecks(w, r)
		return
	}

	e, ok := h.store.Get(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "check not found")
		return
	}
	jsonResp(w, http.StatusOK, CheckFromResult(e.Result))
}

// snapshot returns GET /api/v1/snapshot: all live checks plus generated_at.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// edge returns GET /api/v1/edge: one ad-hoc edge query.
//
// Parameters: query, from, to, and either max_age (Go duration) or start and
// end (unix seconds).
func (h *Handler) edge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	p, err := h.parseEdgeParams(r.URL.Query())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	t, found, err := h.det.GetEdgeBetween(r.Context(), p.Query, p.From, p.To, p.Start, p.End)
	if err != nil {
		kind := edge.Kind(err)
		slog.Warn("api: edge query failed", "query", p.Query, "kind", kind, "err", err)
		jsonResp(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	p.Found = found
	if found {
		p.EdgeTime = t
		p.EdgeAt = formatUnix(t)
	}
	jsonResp(w, http.StatusOK, p)
}

func (h *Handler) parseEdgeParams(q url.Values) (EdgeResponse, error) {
	var p EdgeResponse
	p.Query = q.Get("query")
	if p.Query == "" {
		return p, fmt.Errorf("query is required")
	}

	var err error
	if p.From, err = parseUint(q, "from"); err != nil {
		return p, err
	}
	if p.To, err = parseUint(q, "to"); err != nil {
		return p, err
	}

	switch {
	case q.Get("max_age") != "" && (q.Get("start") != "" || q.Get("end") != ""):
		return p, fmt.Errorf("max_age cannot be combined with start/end")
	case q.Get("max_age") != "":
		maxAge, err := time.ParseDuration(q.Get("max_age"))
		if err != nil || maxAge <= 0 {
			return p, fmt.Errorf("max_age must be a positive duration")
		}
		p.Start, p.End = edge.WindowEndingAt(h.now(), maxAge)
	default:
		if p.Start, err = parseUint(q, "start"); err != nil {
			return p, err
		}
		if p.End, err = parseUint(q, "end"); err != nil {
			return p, err
		}
	}

	p.Direction = edge.DirectionOf(p.From, p.To).String()
	p.Step = edge.Step(p.Start, p.End)
	return p, nil
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot collects every live check in st into a SnapshotResponse.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	checks := make([]CheckResponse, 0, len(entries))
	for _, e := range entries {
		checks = append(checks, CheckFromResult(e.Result))
	}
	return SnapshotResponse{
		Checks:      checks,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// CheckFromResult converts a monitor result to its JSON form.
func CheckFromResult(r monitor.Result) CheckResponse {
	out := CheckResponse{
		Name:        r.Check,
		Query:       r.Query,
		From:        r.From,
		To:          r.To,
		Direction:   r.Direction,
		State:       r.State(),
		Found:       r.Found,
		DurationMs:  float64(r.Duration) / float64(time.Millisecond),
		Error:       r.Err,
		ErrorKind:   r.ErrorKind,
		EvaluatedAt: r.EvaluatedAt.UTC().Format(time.RFC3339),
	}
	if r.Found {
		out.EdgeTime = r.EdgeTime
		out.EdgeAt = formatUnix(r.EdgeTime)
	}
	return out
}

func parseUint(q url.Values, key string) (uint64, error) {
	s := q.Get(key)
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

func formatUnix(sec uint64) string {
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
