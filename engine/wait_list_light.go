package engine

import "sync/atomic"

// WaitListLight holds at most one suspended task in a single atomic
// slot. It backs finish-waiters of a task and single-consumer events,
// where the one-waiter constraint makes the heavy mutex list redundant.
type WaitListLight struct {
	waiter atomic.Pointer[TaskContext]
}

// Append installs ctx as the waiter. At most one task may wait at a time.
func (wl *WaitListLight) Append(ctx *TaskContext) {
	if !wl.waiter.CompareAndSwap(nil, ctx) {
		panic(invalidStateMessage("second waiter on a single-slot wait list"))
	}
}

// Remove clears the slot if it still holds ctx.
func (wl *WaitListLight) Remove(ctx *TaskContext) {
	wl.waiter.CompareAndSwap(ctx, nil)
}

// WakeupOne pops the waiter, if any, and wakes it. The slot is cleared
// before the wakeup so a racing Remove cannot drop a second waiter.
func (wl *WaitListLight) WakeupOne() {
	if ctx := wl.waiter.Swap(nil); ctx != nil {
		ctx.Wakeup(WakeupSourceWaitList)
	}
}

// WakeupAll wakes the single waiter; it exists for symmetry with the
// heavy list so finish-notification code reads the same.
func (wl *WaitListLight) WakeupAll() {
	wl.WakeupOne()
}
