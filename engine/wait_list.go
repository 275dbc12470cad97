package engine

import "sync"

// WaitListBase is the part of a wait list visible to the generic sleep
// path: after a non-wait-list wakeup the task removes itself.
type WaitListBase interface {
	Remove(ctx *TaskContext)
}

// WaitList is an unbounded FIFO of suspended tasks guarded by a mutex.
// Semaphores and condition-style primitives park on it. Methods with the
// Locked suffix require the list to be locked by the caller so that the
// caller can combine list operations with its own state checks.
type WaitList struct {
	mu      sync.Mutex
	waiters []*TaskContext
}

// Lock acquires the list lock.
func (wl *WaitList) Lock() { wl.mu.Lock() }

// Unlock releases the list lock.
func (wl *WaitList) Unlock() { wl.mu.Unlock() }

// AppendLocked adds ctx to the tail of the list.
func (wl *WaitList) AppendLocked(ctx *TaskContext) {
	wl.waiters = append(wl.waiters, ctx)
}

// RemoveLocked removes ctx from the list if present.
func (wl *WaitList) RemoveLocked(ctx *TaskContext) {
	for i, waiter := range wl.waiters {
		if waiter == ctx {
			copy(wl.waiters[i:], wl.waiters[i+1:])
			wl.waiters[len(wl.waiters)-1] = nil
			wl.waiters = wl.waiters[:len(wl.waiters)-1]
			return
		}
	}
}

// Remove removes ctx from the list if present, taking the lock.
func (wl *WaitList) Remove(ctx *TaskContext) {
	wl.Lock()
	defer wl.Unlock()
	wl.RemoveLocked(ctx)
}

// WakeupOneLocked wakes the oldest waiter, if any.
func (wl *WaitList) WakeupOneLocked() {
	if len(wl.waiters) == 0 {
		return
	}
	ctx := wl.waiters[0]
	copy(wl.waiters, wl.waiters[1:])
	wl.waiters[len(wl.waiters)-1] = nil
	wl.waiters = wl.waiters[:len(wl.waiters)-1]
	ctx.Wakeup(WakeupSourceWaitList)
}

// WakeupAllLocked wakes every waiter in FIFO order.
func (wl *WaitList) WakeupAllLocked() {
	waiters := wl.waiters
	wl.waiters = nil
	for _, ctx := range waiters {
		ctx.Wakeup(WakeupSourceWaitList)
	}
}

// SizeLocked returns the number of parked tasks.
func (wl *WaitList) SizeLocked() int {
	return len(wl.waiters)
}
