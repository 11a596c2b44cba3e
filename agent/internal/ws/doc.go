// Package ws implements the WebSocket stream of the promedge agent.
//
// Hub keeps a set of connected clients and pushes check state to them:
//
//   - on connect, the current snapshot is sent immediately;
//   - every interval (Hub.Run), the snapshot is broadcast to all clients;
//   - every evaluated check (Hub.Record, a monitor.Sink) is pushed as a
//     "result" event without waiting for the next tick.
//
// Message format:
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot */ }}
//	{"event": "result",   "data": { /* GET /api/v1/checks/{name} */ }}
//
// Clients whose outgoing buffer fills up are disconnected. The upgrader
// accepts all origins; restrict them at the reverse proxy. The agent mounts
// the hub at /ws/stream.
package ws
