package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/obsidianstack/promedge/agent/internal/monitor"
	"github.com/obsidianstack/promedge/agent/internal/store"
	"github.com/obsidianstack/promedge/pkg/promapi"
)

// --- test helpers -----------------------------------------------------------

type edgeCall struct {
	query      string
	from, to   uint64
	start, end uint64
}

type fakeDetector struct {
	calls []edgeCall
	t     uint64
	found bool
	err   error
}

func (f *fakeDetector) GetEdgeBetween(_ context.Context, query string, from, to, start, end uint64) (uint64, bool, error) {
	f.calls = append(f.calls, edgeCall{query, from, to, start, end})
	return f.t, f.found, f.err
}

func newStore(results ...monitor.Result) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range results {
		st.Record(r)
	}
	return st
}

func edgeResult(name string, t uint64) monitor.Result {
	return monitor.Result{
		Check: name, Query: "up", From: 1, To: 0, Direction: "falling",
		Found: true, EdgeTime: t, EvaluatedAt: time.Unix(1700003600, 0), Duration: 25 * time.Millisecond,
	}
}

func noEdgeResult(name string) monitor.Result {
	return monitor.Result{Check: name, Query: "queue_depth", From: 0, To: 5, Direction: "rising", EvaluatedAt: time.Now()}
}

func errorResult(name string) monitor.Result {
	return monitor.Result{Check: name, Query: "up{", Err: "backend error bad_data: parse error", ErrorKind: "backend", EvaluatedAt: time.Now()}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, New(newStore(), &fakeDetector{}), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.State != "unknown" || resp.CheckCount != 0 {
		t.Errorf("health: got %+v", resp)
	}
}

func TestHealth_Counts(t *testing.T) {
	st := newStore(edgeResult("a", 100), noEdgeResult("b"), noEdgeResult("c"), errorResult("d"))
	rr := get(t, New(st, &fakeDetector{}), "/api/v1/health")

	var resp HealthResponse
	decode(t, rr, &resp)
	want := HealthResponse{State: "degraded", CheckCount: 4, EdgeCount: 1, NoEdgeCount: 2, ErrorCount: 1}
	if resp != want {
		t.Errorf("health: got %+v, want %+v", resp, want)
	}
}

func TestHealth_OK(t *testing.T) {
	rr := get(t, New(newStore(noEdgeResult("b")), &fakeDetector{}), "/api/v1/health")
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.State != "ok" {
		t.Errorf("state: got %q, want ok", resp.State)
	}
}

// --- /api/v1/checks ---------------------------------------------------------

func TestListChecks(t *testing.T) {
	st := newStore(noEdgeResult("zeta"), edgeResult("alpha", 1700000060))
	rr := get(t, New(st, &fakeDetector{}), "/api/v1/checks")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	var resp []CheckResponse
	decode(t, rr, &resp)
	if len(resp) != 2 {
		t.Fatalf("checks: got %d, want 2", len(resp))
	}
	a := resp[0]
	if a.Name != "alpha" || a.State != "edge" || a.EdgeTime != 1700000060 || a.EdgeAt != "2023-11-14T22:14:20Z" {
		t.Errorf("alpha: got %+v", a)
	}
	if a.DurationMs != 25 {
		t.Errorf("duration_ms: got %v, want 25", a.DurationMs)
	}
	if resp[1].Name != "zeta" || resp[1].State != "no_edge" || resp[1].EdgeAt != "" {
		t.Errorf("zeta: got %+v", resp[1])
	}
}

func TestListChecks_EmptyIsArray(t *testing.T) {
	rr := get(t, New(newStore(), &fakeDetector{}), "/api/v1/checks")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

func TestGetCheck(t *testing.T) {
	h := New(newStore(errorResult("broken")), &fakeDetector{})

	rr := get(t, h, "/api/v1/checks/broken")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp CheckResponse
	decode(t, rr, &resp)
	if resp.State != "error" || resp.ErrorKind != "backend" || resp.Error == "" {
		t.Errorf("broken: got %+v", resp)
	}

	if rr := get(t, h, "/api/v1/checks/missing"); rr.Code != http.StatusNotFound {
		t.Errorf("missing check: got %d, want 404", rr.Code)
	}
}

func TestSnapshot(t *testing.T) {
	rr := get(t, New(newStore(edgeResult("a", 100)), &fakeDetector{}), "/api/v1/snapshot")
	var resp SnapshotResponse
	decode(t, rr, &resp)
	if len(resp.Checks) != 1 || resp.GeneratedAt == "" {
		t.Errorf("snapshot: got %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(newStore(), &fakeDetector{})
	for _, path := range []string{"/api/v1/health", "/api/v1/checks", "/api/v1/checks/x", "/api/v1/snapshot", "/api/v1/edge"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

// --- /api/v1/edge -----------------------------------------------------------

func TestEdge_ExplicitWindow(t *testing.T) {
	det := &fakeDetector{t: 1700000060, found: true}
	rr := get(t, New(newStore(), det), "/api/v1/edge?query=up&from=1&to=0&start=1700000000&end=1700014400")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}

	var resp EdgeResponse
	decode(t, rr, &resp)
	want := EdgeResponse{
		Query: "up", From: 1, To: 0, Direction: "falling",
		Start: 1700000000, End: 1700014400, Step: 60,
		Found: true, EdgeTime: 1700000060, EdgeAt: "2023-11-14T22:14:20Z",
	}
	if resp != want {
		t.Errorf("edge: got %+v, want %+v", resp, want)
	}
	if len(det.calls) != 1 || det.calls[0] != (edgeCall{"up", 1, 0, 1700000000, 1700014400}) {
		t.Errorf("detector calls: got %+v", det.calls)
	}
}

func TestEdge_MaxAge(t *testing.T) {
	det := &fakeDetector{}
	h := New(newStore(), det)
	h.now = func() time.Time { return time.Unix(1700003600, 0) }

	rr := get(t, h, "/api/v1/edge?query=queue_depth&from=0&to=5&max_age=1h")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp EdgeResponse
	decode(t, rr, &resp)
	if resp.Found || resp.Start != 1700000000 || resp.End != 1700003600 || resp.Direction != "rising" || resp.Step != 15 {
		t.Errorf("edge: got %+v", resp)
	}
}

func TestEdge_BadParams(t *testing.T) {
	h := New(newStore(), &fakeDetector{})
	paths := []string{
		"/api/v1/edge?from=1&to=0&max_age=1h",
		"/api/v1/edge?query=up&to=0&max_age=1h",
		"/api/v1/edge?query=up&from=-1&to=0&max_age=1h",
		"/api/v1/edge?query=up&from=1&to=0",
		"/api/v1/edge?query=up&from=1&to=0&start=10",
		"/api/v1/edge?query=up&from=1&to=0&max_age=soon",
		"/api/v1/edge?query=up&from=1&to=0&max_age=-1h",
		"/api/v1/edge?query=up&from=1&to=0&max_age=1h&start=10&end=20",
	}
	for _, p := range paths {
		if rr := get(t, h, p); rr.Code != http.StatusBadRequest {
			t.Errorf("GET %s: got %d, want 400", p, rr.Code)
		}
	}
}

func TestEdge_DetectorError(t *testing.T) {
	det := &fakeDetector{err: fmt.Errorf("edge query: %w", &promapi.APIError{Type: "bad_data", Message: "parse error"})}
	rr := get(t, New(newStore(), det), "/api/v1/edge?query=up%7B&from=1&to=0&max_age=1h")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", rr.Code)
	}
	var resp errorResponse
	decode(t, rr, &resp)
	if resp.Kind != "backend" || resp.Error == "" {
		t.Errorf("error body: got %+v", resp)
	}
}
