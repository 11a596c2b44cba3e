package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/promedge/agent/internal/api"
	"github.com/obsidianstack/promedge/agent/internal/monitor"
	"github.com/obsidianstack/promedge/agent/internal/store"
	wsHub "github.com/obsidianstack/promedge/agent/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(results ...monitor.Result) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range results {
		st.Record(r)
	}
	return st
}

func result(name string, found bool) monitor.Result {
	r := monitor.Result{Check: name, Query: "up", From: 1, To: 0, Direction: "falling", EvaluatedAt: time.Now()}
	if found {
		r.Found = true
		r.EdgeTime = 1700000060
	}
	return r
}

func startHub(t *testing.T, st *store.Store, interval time.Duration) (string, *wsHub.Hub) {
	t.Helper()

	hub := wsHub.New(st, interval)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type snapshotMsg struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

type resultMsg struct {
	Event string            `json:"event"`
	Data  api.CheckResponse `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
}

// waitCount polls hub.Count until it equals want or the deadline passes.
func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_ImmediateSnapshot(t *testing.T) {
	wsURL, _ := startHub(t, newStore(result("a", true), result("b", false)), time.Hour)

	var m snapshotMsg
	read(t, dial(t, wsURL), &m)

	if m.Event != wsHub.EventSnapshot {
		t.Errorf("event: got %q, want snapshot", m.Event)
	}
	if len(m.Data.Checks) != 2 || m.Data.GeneratedAt == "" {
		t.Fatalf("data: got %+v", m.Data)
	}
	if m.Data.Checks[0].Name != "a" || m.Data.Checks[0].State != "edge" {
		t.Errorf("first check: got %+v", m.Data.Checks[0])
	}
}

func TestHub_EmptyStore_EmptyChecks(t *testing.T) {
	wsURL, _ := startHub(t, newStore(), time.Hour)

	var m snapshotMsg
	read(t, dial(t, wsURL), &m)
	if m.Data.Checks == nil || len(m.Data.Checks) != 0 {
		t.Errorf("checks: got %#v, want empty array", m.Data.Checks)
	}
}

func TestHub_BroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _ := startHub(t, st, testInterval)

	conn := dial(t, wsURL)
	var first snapshotMsg
	read(t, conn, &first)

	st.Record(result("late", true))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var m snapshotMsg
		read(t, conn, &m)
		if len(m.Data.Checks) == 1 && m.Data.Checks[0].Name == "late" {
			return
		}
	}
	t.Fatal("no snapshot containing the new check")
}

func TestHub_RecordPushesResult(t *testing.T) {
	wsURL, hub := startHub(t, newStore(), time.Hour)

	conn := dial(t, wsURL)
	var first snapshotMsg
	read(t, conn, &first)
	waitCount(t, hub, 1)

	hub.Record(result("node-down", true))

	var m resultMsg
	read(t, conn, &m)
	if m.Event != wsHub.EventResult {
		t.Fatalf("event: got %q, want result", m.Event)
	}
	if m.Data.Name != "node-down" || !m.Data.Found || m.Data.EdgeTime != 1700000060 {
		t.Errorf("data: got %+v", m.Data)
	}
}

func TestHub_RecordWithoutClients(t *testing.T) {
	hub := wsHub.New(newStore(), time.Hour)
	hub.Record(result("x", false)) // must not block or panic
}

func TestHub_Count(t *testing.T) {
	wsURL, hub := startHub(t, newStore(), time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		var m snapshotMsg
		read(t, conns[i], &m)
	}
	waitCount(t, hub, 3)

	conns[0].Close()
	waitCount(t, hub, 2)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := wsHub.New(newStore(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	var m snapshotMsg
	read(t, conn, &m)
	waitCount(t, hub, 1)

	cancel()
	<-done

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage after shutdown: got %v, want close frame", err)
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after shutdown: got %d, want 0", n)
	}
}
