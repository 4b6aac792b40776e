// Package metrics holds lightweight runtime counters shared across stages,
// built on sync/atomic rather than a full metrics library — the spec's
// budget has no component for a Prometheus-style exporter, and the queue's
// own drop/deliver counters (internal/queue.Queue.Stats) already cover the
// one metric spec.md calls out (DropEvent accounting, §7). This package
// exists for the handful of additional run-level counters the supervisor
// and pipeline want to expose without adding an external dependency that
// has no SPEC_FULL.md component to drive it.
package metrics

import "sync/atomic"

// Counters holds the run-level counters the supervisor logs at shutdown.
type Counters struct {
	framesCaptured atomic.Uint64
	ticksProcessed atomic.Uint64
	inferenceCalls atomic.Uint64
}

// IncFramesCaptured increments the captured-frame counter.
func (c *Counters) IncFramesCaptured() { c.framesCaptured.Add(1) }

// IncTicksProcessed increments the pipeline-tick counter.
func (c *Counters) IncTicksProcessed() { c.ticksProcessed.Add(1) }

// IncInferenceCalls increments the detector-invocation counter.
func (c *Counters) IncInferenceCalls() { c.inferenceCalls.Add(1) }

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() (framesCaptured, ticksProcessed, inferenceCalls uint64) {
	return c.framesCaptured.Load(), c.ticksProcessed.Load(), c.inferenceCalls.Load()
}
