// Package store keeps the latest monitor.Result per check in memory with TTL eviction.
package store
