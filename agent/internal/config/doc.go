// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config: log_level, interval, result_ttl, http, prometheus, checks
//   - Prometheus: endpoint, timeout, auth, tls for the queried backend
//   - Check: name, query, from, to, max_age of one edge query
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none) plus the fields each
//     mode needs; Key(), Token() and Password() resolve secrets from
//     environment variables so they never live in the file
//
// Load(path) reads the YAML file, applies defaults (30s interval, 10m result
// TTL, 10s query timeout, 1h max_age, listen :9464), then validates required
// fields, enums and check name uniqueness.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory and calls
// onChange with each newly parsed Config. Invalid edits are logged and the
// previous config stays active.
package config
