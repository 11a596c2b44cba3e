// Package exposition publishes check results as Prometheus metrics.
//
// Collector implements monitor.Sink. Every Result updates per-check gauges
// (edge found, last edge time, last evaluation time), counters (evaluations,
// errors by kind) and an HDR histogram of query latency that is exported as a
// summary with 0.5/0.9/0.99 quantiles.
//
// Collector.Handler() serves /metrics with content negotiation (text or
// protobuf, via expfmt) and gzip compression.
package exposition
