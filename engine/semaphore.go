package engine

import (
	"math"
	"sync/atomic"
)

// semaphoreUnlockValue is large enough to outnumber any realistic token
// count: adding it makes every acquire succeed until it is revoked. It
// stays internal to the semaphore; callers express "unlock everything"
// through UnlockAll/RevokeUnlockAll.
const semaphoreUnlockValue = math.MaxInt64 / 2

// Semaphore is a counting semaphore with deadline-bounded and bulk
// shared acquisition, integrated with the task sleep protocol. The
// invariant held + available == capacity is maintained by the public
// acquire/release pairs; forced operations (capacity shrink, unlock-all)
// may drive the available count negative, which simply blocks acquirers
// until releases catch up.
type Semaphore struct {
	count   atomic.Int64
	floods  atomic.Int64 // active UnlockAll floods
	waiters WaitList
}

// NewSemaphore builds a semaphore holding capacity tokens.
func NewSemaphore(capacity int64) *Semaphore {
	s := &Semaphore{}
	s.count.Store(capacity)
	return s
}

// RemainingApprox returns the approximate number of available tokens,
// not counting an active UnlockAll flood.
func (s *Semaphore) RemainingApprox() int64 {
	if n := s.count.Load() - s.floods.Load()*semaphoreUnlockValue; n > 0 {
		return n
	}
	return 0
}

func (s *Semaphore) tryAcquireCount(n int64) bool {
	for {
		current := s.count.Load()
		if current < n {
			return false
		}
		if s.count.CompareAndSwap(current, current-n) {
			return true
		}
	}
}

// TryLockShared acquires one token without blocking.
func (s *Semaphore) TryLockShared() bool {
	return s.tryAcquireCount(1)
}

// LockShared acquires one token, parking the current task until one is
// available, the deadline expires or the task is cancelled. Returns
// true iff the token was acquired.
func (s *Semaphore) LockShared(deadline Deadline) bool {
	return s.LockSharedCount(deadline, 1)
}

// LockSharedCount atomically acquires n tokens under the same rules as
// LockShared.
func (s *Semaphore) LockSharedCount(deadline Deadline, n int64) bool {
	if n <= 0 {
		return true
	}
	if s.tryAcquireCount(n) {
		return true
	}

	ctx := currentTaskContext("Semaphore.LockShared")
	for {
		if ctx.shouldCancel() {
			return false
		}
		if deadline.IsReachable() && deadline.Passed() {
			return s.tryAcquireCount(n)
		}

		strategy := &semaphoreWaitStrategy{sem: s, ctx: ctx, deadline: deadline, count: n}
		ctx.Sleep(strategy)

		switch ctx.GetWakeupSource() {
		case WakeupSourceDeadlineTimer:
			// Last chance: a release may have raced the timer.
			return s.tryAcquireCount(n)
		case WakeupSourceCancelRequest:
			return false
		default:
			if s.tryAcquireCount(n) {
				return true
			}
		}
	}
}

// UnlockShared releases one token.
func (s *Semaphore) UnlockShared() {
	s.UnlockSharedCount(1)
}

// UnlockSharedCount releases n tokens and wakes parked acquirers.
func (s *Semaphore) UnlockSharedCount(n int64) {
	if n <= 0 {
		return
	}
	s.count.Add(n)

	// Wake everyone: a bulk waiter at the head must not starve behind a
	// single released token, and the woken tasks re-check anyway.
	s.waiters.Lock()
	s.waiters.WakeupAllLocked()
	s.waiters.Unlock()
}

// AcquireForced takes n tokens out of circulation without blocking; the
// count may go negative. Used by capacity shrink, where pushes must
// stall until the queue drains below the new bound.
func (s *Semaphore) AcquireForced(n int64) {
	if n <= 0 {
		return
	}
	s.count.Add(-n)
}

// UnlockAll floods the semaphore so every pending and future acquire
// succeeds immediately, until RevokeUnlockAll.
func (s *Semaphore) UnlockAll() {
	s.floods.Add(1)
	s.UnlockSharedCount(semaphoreUnlockValue)
}

// RevokeUnlockAll undoes a previous UnlockAll.
func (s *Semaphore) RevokeUnlockAll() {
	s.AcquireForced(semaphoreUnlockValue)
	s.floods.Add(-1)
}

type semaphoreWaitStrategy struct {
	sem      *Semaphore
	ctx      *TaskContext
	deadline Deadline
	count    int64
}

func (w *semaphoreWaitStrategy) Deadline() Deadline     { return w.deadline }
func (w *semaphoreWaitStrategy) WaitList() WaitListBase { return &w.sem.waiters }

func (w *semaphoreWaitStrategy) AfterAsleep() {
	w.sem.waiters.Lock()
	w.sem.waiters.AppendLocked(w.ctx)
	available := w.sem.count.Load() >= w.count
	w.sem.waiters.Unlock()
	if available {
		// Tokens appeared between the failed acquire and registration;
		// without this self-wake the release that added them may have
		// already run and the wakeup would be lost.
		w.ctx.Wakeup(WakeupSourceWaitList)
	}
}

func (w *semaphoreWaitStrategy) BeforeAwake() {}
