package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State       string `json:"state"` // "ok" | "degraded" | "unknown"
	CheckCount  int    `json:"check_count"`
	EdgeCount   int    `json:"edge_count"`
	NoEdgeCount int    `json:"no_edge_count"`
	ErrorCount  int    `json:"error_count"`
}

// CheckResponse is one entry in GET /api/v1/checks or GET /api/v1/checks/{name}.
type CheckResponse struct {
	Name        string  `json:"name"`
	Query       string  `json:"query"`
	From        uint64  `json:"from"`
	To          uint64  `json:"to"`
	Direction   string  `json:"direction"`
	State       string  `json:"state"`
	Found       bool    `json:"found"`
	EdgeTime    uint64  `json:"edge_time,omitempty"`
	EdgeAt      string  `json:"edge_at,omitempty"` // RFC3339
	DurationMs  float64 `json:"duration_ms"`
	Error       string  `json:"error,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	EvaluatedAt string  `json:"evaluated_at"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket message.
type SnapshotResponse struct {
	Checks      []CheckResponse `json:"checks"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// EdgeResponse is the payload for GET /api/v1/edge.
type EdgeResponse struct {
	Query     string `json:"query"`
	From      uint64 `json:"from"`
	To        uint64 `json:"to"`
	Direction string `json:"direction"`
	Start     uint64 `json:"start"`
	End       uint64 `json:"end"`
	Step      uint64 `json:"step"`
	Found     bool   `json:"found"`
	EdgeTime  uint64 `json:"edge_time,omitempty"`
	EdgeAt    string `json:"edge_at,omitempty"` // RFC3339
}

// errorResponse is a generic JSON error body. Kind is set for detector failures.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
