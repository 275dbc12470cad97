package engine

import (
	"sync/atomic"
	"time"
)

// TaskCounter aggregates per-processor task metrics. All fields are
// plain atomics; a snapshot is only approximately consistent.
type TaskCounter struct {
	created        atomic.Uint64
	finished       atomic.Uint64
	completed      atomic.Uint64
	cancelled      atomic.Uint64
	cancelRequests atomic.Uint64
	overloads      atomic.Uint64
	csw            atomic.Uint64
	execTotalMicro atomic.Uint64
}

func (c *TaskCounter) accountCreate() { c.created.Add(1) }

func (c *TaskCounter) accountFinish(state TaskState) {
	c.finished.Add(1)
	if state == TaskCancelled {
		c.cancelled.Add(1)
	} else {
		c.completed.Add(1)
	}
}

func (c *TaskCounter) accountCancelRequest() { c.cancelRequests.Add(1) }

func (c *TaskCounter) accountOverload() { c.overloads.Add(1) }

func (c *TaskCounter) accountCSW() { c.csw.Add(1) }

func (c *TaskCounter) accountExecution(d time.Duration) {
	if d > 0 {
		c.execTotalMicro.Add(uint64(d.Microseconds()))
	}
}

// Alive returns the number of contexts that exist but have not finished.
func (c *TaskCounter) Alive() uint64 {
	created := c.created.Load()
	finished := c.finished.Load()
	if finished > created {
		return 0
	}
	return created - finished
}

// CounterSnapshot is a point-in-time copy of the task counters.
type CounterSnapshot struct {
	Created        uint64
	Finished       uint64
	Completed      uint64
	Cancelled      uint64
	CancelRequests uint64
	Overloads      uint64
	ContextSwitches uint64
	ExecTotal      time.Duration
	Alive          uint64
}

// Snapshot returns a copy of the current counter values.
func (c *TaskCounter) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Created:         c.created.Load(),
		Finished:        c.finished.Load(),
		Completed:       c.completed.Load(),
		Cancelled:       c.cancelled.Load(),
		CancelRequests:  c.cancelRequests.Load(),
		Overloads:       c.overloads.Load(),
		ContextSwitches: c.csw.Load(),
		ExecTotal:       time.Duration(c.execTotalMicro.Load()) * time.Microsecond,
		Alive:           c.Alive(),
	}
}
