package engine

import "time"

// Current returns the task context of the calling task. It panics when
// called from a goroutine that is not running a task.
func Current() *TaskContext {
	return currentTaskContext("Current")
}

// InsideTask reports whether the caller runs within a task.
func InsideTask() bool {
	return currentTaskContextUnchecked() != nil
}

// Yield suspends the current task and requeues it at the back of the
// run-queue. A pending deliverable cancellation is surfaced instead.
func Yield() error {
	ctx := currentTaskContext("Yield")
	if err := checkDeliverCancel(ctx); err != nil {
		return err
	}
	ctx.Sleep(sleepWaitStrategy{deadline: DeadlinePassed()})
	return checkDeliverCancel(ctx)
}

// SleepUntil suspends the current task until the deadline. Waking at
// the deadline is the intended outcome and returns nil; a deliverable
// cancellation interrupts the sleep.
func SleepUntil(deadline Deadline) error {
	ctx := currentTaskContext("SleepUntil")
	if err := checkDeliverCancel(ctx); err != nil {
		return err
	}
	for {
		ctx.Sleep(sleepWaitStrategy{deadline: deadline})
		switch ctx.GetWakeupSource() {
		case WakeupSourceDeadlineTimer:
			return nil
		case WakeupSourceCancelRequest:
			return &WaitInterruptedError{Reason: ctx.CancellationReason()}
		default:
			// Spurious wakeup; unreachable deadlines only end on cancel.
			if !deadline.IsReachable() {
				continue
			}
			if deadline.Passed() {
				return nil
			}
		}
	}
}

// SleepFor suspends the current task for the given duration.
func SleepFor(d time.Duration) error {
	return SleepUntil(DeadlineFromDuration(d))
}

// ShouldCancel reports whether the current task has a deliverable
// cancellation pending.
func ShouldCancel() bool {
	return currentTaskContext("ShouldCancel").shouldCancel()
}

// CurrentCancellationReason returns the cancellation reason of the
// current task.
func CurrentCancellationReason() CancellationReason {
	return currentTaskContext("CurrentCancellationReason").CancellationReason()
}

func checkDeliverCancel(ctx *TaskContext) error {
	if ctx.shouldCancel() {
		return &WaitInterruptedError{Reason: ctx.CancellationReason()}
	}
	return nil
}

// NonCancellableGuard shields a scope of the current task from
// cancellation delivery. While held, a cancel request can neither wake
// the task nor surface at suspension points; on Release a pending
// request is delivered at the next suspension point.
type NonCancellableGuard struct {
	ctx  *TaskContext
	prev bool
}

// EnterNonCancellable starts a non-cancellable scope on the current
// task.
func EnterNonCancellable() *NonCancellableGuard {
	ctx := currentTaskContext("EnterNonCancellable")
	return &NonCancellableGuard{ctx: ctx, prev: ctx.setCancellable(false)}
}

// Release restores the previous cancellability.
func (g *NonCancellableGuard) Release() {
	if currentTaskContextUnchecked() != g.ctx {
		panic(useOutsideTaskMessage("NonCancellableGuard.Release"))
	}
	g.ctx.setCancellable(g.prev)
}
