package concurrent

import (
	"sync/atomic"

	"riptide/engine"
)

// singleProducerSide gates pushes with a plain counter and a
// single-consumer event: with one producer there is nothing to contend
// on, so the heavy semaphore bookkeeping is skipped.
type singleProducerSide[T any] struct {
	q         *Queue[T]
	remaining atomic.Int64
	nonfull   engine.SingleConsumerEvent
}

func (s *singleProducerSide[T]) push(value T, deadline engine.Deadline) bool {
	for {
		if s.doPush(value) {
			return true
		}
		if s.q.noMoreConsumers() {
			return false
		}
		if !s.nonfull.WaitForEventUntil(deadline) {
			return false
		}
	}
}

func (s *singleProducerSide[T]) pushNoblock(value T) bool {
	return s.doPush(value)
}

func (s *singleProducerSide[T]) doPush(value T) bool {
	if s.q.noMoreConsumers() || !s.tryAcquire() {
		return false
	}
	s.q.doPush(value)
	s.nonfull.Reset()
	return true
}

func (s *singleProducerSide[T]) tryAcquire() bool {
	for {
		current := s.remaining.Load()
		if current <= 0 {
			return false
		}
		if s.remaining.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

func (s *singleProducerSide[T]) onElementPopped() {
	s.remaining.Add(1)
	s.nonfull.Send()
}

func (s *singleProducerSide[T]) increaseCapacity(n int64) {
	s.remaining.Add(n)
	s.nonfull.Send()
}

func (s *singleProducerSide[T]) decreaseCapacity(n int64) {
	s.remaining.Add(-n)
}

// unlockAll only signals the event: push re-checks consumer liveness
// before touching the capacity counter, so flooding the counter with a
// sentinel (and polluting it) is unnecessary on the single side.
func (s *singleProducerSide[T]) unlockAll() {
	s.nonfull.Send()
}

func (s *singleProducerSide[T]) revokeUnlockAll() {}

// multiProducerSide gates pushes with a counting semaphore carrying the
// remaining capacity.
type multiProducerSide[T any] struct {
	q         *Queue[T]
	remaining *engine.Semaphore
}

func (s *multiProducerSide[T]) push(value T, deadline engine.Deadline) bool {
	if engine.InsideTask() && engine.ShouldCancel() {
		return false
	}
	if !s.remaining.LockShared(deadline) {
		return false
	}
	return s.doPush(value)
}

func (s *multiProducerSide[T]) pushNoblock(value T) bool {
	return s.remaining.TryLockShared() && s.doPush(value)
}

func (s *multiProducerSide[T]) doPush(value T) bool {
	if s.q.noMoreConsumers() {
		s.remaining.UnlockShared()
		return false
	}
	s.q.doPush(value)
	return true
}

func (s *multiProducerSide[T]) onElementPopped() {
	s.remaining.UnlockShared()
}

func (s *multiProducerSide[T]) increaseCapacity(n int64) {
	s.remaining.UnlockSharedCount(n)
}

func (s *multiProducerSide[T]) decreaseCapacity(n int64) {
	s.remaining.AcquireForced(n)
}

func (s *multiProducerSide[T]) unlockAll() {
	s.remaining.UnlockAll()
}

func (s *multiProducerSide[T]) revokeUnlockAll() {
	s.remaining.RevokeUnlockAll()
}

// singleConsumerSide tracks the queue size with a plain counter and
// blocks on a single-consumer event while the queue is empty.
type singleConsumerSide[T any] struct {
	q        *Queue[T]
	size     atomic.Int64
	nonempty engine.SingleConsumerEvent
}

func (s *singleConsumerSide[T]) pop(dst *T, deadline engine.Deadline) bool {
	for {
		if s.doPop(dst) {
			return true
		}
		if s.q.noMoreProducers() {
			// Producers are gone; drain what is left, fail otherwise.
			return s.doPop(dst)
		}
		if !s.nonempty.WaitForEventUntil(deadline) {
			return false
		}
	}
}

func (s *singleConsumerSide[T]) popNoblock(dst *T) bool {
	return s.doPop(dst)
}

func (s *singleConsumerSide[T]) doPop(dst *T) bool {
	if !s.q.inner.tryDequeue(dst) {
		return false
	}
	s.size.Add(-1)
	s.nonempty.Reset()
	s.q.producerSide.onElementPopped()
	return true
}

func (s *singleConsumerSide[T]) onElementPushed() {
	s.size.Add(1)
	s.nonempty.Send()
}

func (s *singleConsumerSide[T]) unlockAll() {
	s.nonempty.Send()
}

func (s *singleConsumerSide[T]) revokeUnlockAll() {}

func (s *singleConsumerSide[T]) sizeApprox() int64 {
	if n := s.size.Load(); n > 0 {
		return n
	}
	return 0
}

// multiConsumerSide gates pops with a counting semaphore carrying the
// number of queued elements.
type multiConsumerSide[T any] struct {
	q    *Queue[T]
	size *engine.Semaphore
}

func (s *multiConsumerSide[T]) pop(dst *T, deadline engine.Deadline) bool {
	if !s.size.LockShared(deadline) {
		return false
	}
	return s.doPop(dst)
}

func (s *multiConsumerSide[T]) popNoblock(dst *T) bool {
	return s.size.TryLockShared() && s.doPop(dst)
}

func (s *multiConsumerSide[T]) doPop(dst *T) bool {
	if !s.q.inner.tryDequeue(dst) {
		s.size.UnlockShared()
		return false
	}
	s.q.producerSide.onElementPopped()
	return true
}

func (s *multiConsumerSide[T]) onElementPushed() {
	s.size.UnlockShared()
}

func (s *multiConsumerSide[T]) unlockAll() {
	s.size.UnlockAll()
}

func (s *multiConsumerSide[T]) revokeUnlockAll() {
	s.size.RevokeUnlockAll()
}

func (s *multiConsumerSide[T]) sizeApprox() int64 {
	return s.size.RemainingApprox()
}
