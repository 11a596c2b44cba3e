// Package edge detects threshold crossings ("edges") in a Prometheus range
// vector.
//
// A query is described by a metric expression and two thresholds, from and
// to. from < to selects a rising edge; anything else (including equality) a
// falling one. Samples are classified against from only:
//
//	rising:  v <= from is from-side, otherwise to-side
//	falling: v >= from is from-side, otherwise to-side
//
// The reported edge is the timestamp of the last from-side sample, provided a
// to-side sample was seen strictly after it. That is the last observation
// before the series departed across the threshold, not the crossing itself.
//
// Scan is the pure algorithm. Step, WindowEndingAt and Plan compute the range
// query parameters. Detector ties them to a promapi.Client:
//
//	det := edge.NewForURL("http://prometheus:9090", nil)
//	t, found, err := det.GetLastEdge(ctx, `up{job="node"}`, 1, 0, time.Hour)
package edge
