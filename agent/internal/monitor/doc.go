// Package monitor evaluates the configured edge checks on a schedule.
//
// Monitor.RunOnce(ctx, now) runs every check through an EdgeFinder (an
// *edge.Detector in production), turns each outcome into a Result and hands
// it to every Sink (the result store, the metrics collector). Run(ctx,
// interval) repeats that on a ticker.
//
// The monitor remembers the last edge per check only to log transitions
// ("new edge", "edge cleared"); nothing is persisted. SetChecks swaps the
// check list on config reload.
package monitor
