package engine

import "sync/atomic"

// SingleConsumerEvent is a one-waiter signal with an explicit reset,
// the light-weight gate used where a side of a handoff queue is single:
// it avoids the heavy semaphore bookkeeping entirely.
type SingleConsumerEvent struct {
	signaled atomic.Bool
	waiter   WaitListLight
}

// Send signals the event and wakes the waiter, if any.
func (e *SingleConsumerEvent) Send() {
	e.signaled.Store(true)
	e.waiter.WakeupOne()
}

// Reset clears the signal.
func (e *SingleConsumerEvent) Reset() {
	e.signaled.Store(false)
}

// WaitForEventUntil parks the current task until the event is signaled,
// consuming the signal. Returns false on deadline expiry or when the
// task is cancelled.
func (e *SingleConsumerEvent) WaitForEventUntil(deadline Deadline) bool {
	ctx := currentTaskContext("SingleConsumerEvent.WaitForEventUntil")
	for {
		if e.signaled.CompareAndSwap(true, false) {
			return true
		}
		if ctx.shouldCancel() {
			return false
		}
		if deadline.IsReachable() && deadline.Passed() {
			return e.signaled.CompareAndSwap(true, false)
		}

		strategy := &eventWaitStrategy{event: e, ctx: ctx, deadline: deadline}
		ctx.Sleep(strategy)

		switch ctx.GetWakeupSource() {
		case WakeupSourceDeadlineTimer:
			return e.signaled.CompareAndSwap(true, false)
		case WakeupSourceCancelRequest:
			return false
		}
	}
}

type eventWaitStrategy struct {
	event    *SingleConsumerEvent
	ctx      *TaskContext
	deadline Deadline
}

func (w *eventWaitStrategy) Deadline() Deadline     { return w.deadline }
func (w *eventWaitStrategy) WaitList() WaitListBase { return &w.event.waiter }

func (w *eventWaitStrategy) AfterAsleep() {
	w.event.waiter.Append(w.ctx)
	if w.event.signaled.Load() {
		// The signal raced registration; wake ourselves or it is lost.
		w.event.waiter.WakeupOne()
	}
}

func (w *eventWaitStrategy) BeforeAwake() {}
