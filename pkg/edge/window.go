package edge

import (
	"time"

	"github.com/obsidianstack/promedge/pkg/promapi"
)

// Step bounds. A window is sampled at roughly targetPoints resolution, never
// finer than minStep and never coarser than maxStep seconds.
const (
	targetPoints = 240
	minStep      = 2
	maxStep      = 60
)

// Step returns the query resolution in seconds for the window [start, end].
// An inverted window counts as empty and gets the finest step.
func Step(start, end uint64) uint64 {
	var span uint64
	if end > start {
		span = end - start
	}
	step := span / targetPoints
	switch {
	case step < minStep:
		return minStep
	case step > maxStep:
		return maxStep
	default:
		return step
	}
}

// WindowEndingAt returns the window of length maxAge ending at now, both
// bounds in unix seconds. A start before the epoch is clamped to 0.
func WindowEndingAt(now time.Time, maxAge time.Duration) (start, end uint64) {
	s := now.Add(-maxAge).Unix()
	if s < 0 {
		s = 0
	}
	e := now.Unix()
	if e < 0 {
		e = 0
	}
	return uint64(s), uint64(e)
}

// Plan builds the range query for expr over [start, end].
func Plan(expr string, start, end uint64) promapi.RangeQuery {
	return promapi.RangeQuery{
		Query: expr,
		Start: start,
		End:   end,
		Step:  Step(start, end),
	}
}
