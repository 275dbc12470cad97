// Package concurrent provides the bounded multi-role handoff queue of
// the task runtime: an SPSC/SPMC/MPSC/MPMC queue whose capacity and
// producer/consumer liveness are expressed as gates integrated with the
// task sleep facility.
package concurrent

import (
	"errors"
	"math"
	"sync/atomic"

	"riptide/engine"
)

// Unbounded is the explicit "no capacity limit" value for queue
// construction and resizing.
const Unbounded int64 = math.MaxInt64 / 2

// ErrQueueClosed distinguishes a push/pop failure caused by the
// opposite side having dropped all of its handles. Push and Pop report
// failure as a bare false; callers that need the cause check
// HasConsumers/HasProducers and map the combination onto this error.
var ErrQueueClosed = errors.New("handoff queue closed: opposite side is gone")

// createdAndDead marks a side whose handles have all existed and died.
const createdAndDead int64 = -1

// Queue is a bounded handoff queue. Producers block (or fail) when the
// queue is full, consumers when it is empty; a side whose handles have
// all been dropped unblocks the opposite side so pending operations
// fail out in bounded time.
//
// MPSC and SPSC preserve FIFO from the single producer. MPMC and SPMC
// give no cross-producer ordering guarantee: they are the non-FIFO
// variants.
type Queue[T any] struct {
	inner *lockFreeQueue[T]

	producers atomic.Int64
	consumers atomic.Int64
	capacity  atomic.Int64

	multiProducer bool
	multiConsumer bool

	producerSide producerSide[T]
	consumerSide consumerSide[T]
}

// producerSide gates admission of new elements.
type producerSide[T any] interface {
	push(value T, deadline engine.Deadline) bool
	pushNoblock(value T) bool
	onElementPopped()
	increaseCapacity(n int64)
	decreaseCapacity(n int64)
	unlockAll()
	revokeUnlockAll()
}

// consumerSide gates removal of elements and tracks the queue size.
type consumerSide[T any] interface {
	pop(dst *T, deadline engine.Deadline) bool
	popNoblock(dst *T) bool
	onElementPushed()
	unlockAll()
	revokeUnlockAll()
	sizeApprox() int64
}

// NewMPMC creates a multi-producer multi-consumer queue.
func NewMPMC[T any](maxSize int64) *Queue[T] {
	return newQueue[T](maxSize, true, true)
}

// NewMPSC creates a multi-producer single-consumer queue.
func NewMPSC[T any](maxSize int64) *Queue[T] {
	return newQueue[T](maxSize, true, false)
}

// NewSPMC creates a single-producer multi-consumer queue.
func NewSPMC[T any](maxSize int64) *Queue[T] {
	return newQueue[T](maxSize, false, true)
}

// NewSPSC creates a single-producer single-consumer queue.
func NewSPSC[T any](maxSize int64) *Queue[T] {
	return newQueue[T](maxSize, false, false)
}

func newQueue[T any](maxSize int64, multiProducer, multiConsumer bool) *Queue[T] {
	if maxSize <= 0 {
		panic("concurrent: queue max size must be positive (use Unbounded for no limit)")
	}
	if maxSize > Unbounded {
		maxSize = Unbounded
	}

	q := &Queue[T]{
		inner:         newLockFreeQueue[T](),
		multiProducer: multiProducer,
		multiConsumer: multiConsumer,
	}
	q.capacity.Store(maxSize)

	if multiProducer {
		q.producerSide = &multiProducerSide[T]{q: q, remaining: engine.NewSemaphore(maxSize)}
	} else {
		side := &singleProducerSide[T]{q: q}
		side.remaining.Store(maxSize)
		q.producerSide = side
	}
	if multiConsumer {
		q.consumerSide = &multiConsumerSide[T]{q: q, size: engine.NewSemaphore(0)}
	} else {
		q.consumerSide = &singleConsumerSide[T]{q: q}
	}
	return q
}

// GetProducer returns a new producer handle. Re-acquiring a handle
// after the side died re-arms the consumer gate. Single-producer queues
// permit one live handle at a time.
func (q *Queue[T]) GetProducer() *Producer[T] {
	old := atomicUpdate(&q.producers, func(v int64) int64 {
		if v == createdAndDead {
			return 1
		}
		if !q.multiProducer && v > 0 {
			panic("concurrent: second live producer on a single-producer queue")
		}
		return v + 1
	})
	if old == createdAndDead {
		q.consumerSide.revokeUnlockAll()
	}
	return &Producer[T]{q: q}
}

// GetConsumer returns a new consumer handle. Re-acquiring a handle
// after the side died re-arms the producer gate. Single-consumer queues
// permit one live handle at a time.
func (q *Queue[T]) GetConsumer() *Consumer[T] {
	old := atomicUpdate(&q.consumers, func(v int64) int64 {
		if v == createdAndDead {
			return 1
		}
		if !q.multiConsumer && v > 0 {
			panic("concurrent: second live consumer on a single-consumer queue")
		}
		return v + 1
	})
	if old == createdAndDead {
		q.producerSide.revokeUnlockAll()
	}
	return &Consumer[T]{q: q}
}

// SetSoftMaxSize changes the capacity limit. Growing releases the
// difference to blocked producers; shrinking stalls new pushes until the
// queue drains below the new bound. Elements already queued are never
// evicted, so the size may transiently exceed the new capacity.
func (q *Queue[T]) SetSoftMaxSize(maxSize int64) {
	if maxSize <= 0 {
		panic("concurrent: queue max size must be positive (use Unbounded for no limit)")
	}
	if maxSize > Unbounded {
		maxSize = Unbounded
	}
	old := q.capacity.Swap(maxSize)
	switch {
	case maxSize > old:
		q.producerSide.increaseCapacity(maxSize - old)
	case maxSize < old:
		q.producerSide.decreaseCapacity(old - maxSize)
	}
}

// GetSoftMaxSize returns the current capacity limit.
func (q *Queue[T]) GetSoftMaxSize() int64 {
	return q.capacity.Load()
}

// GetSizeApproximate returns the approximate number of queued elements.
func (q *Queue[T]) GetSizeApproximate() int64 {
	return q.consumerSide.sizeApprox()
}

// Close drops every remaining element. The queue offers no delivery
// guarantee once the receiving side is gone.
func (q *Queue[T]) Close() {
	var value T
	for q.inner.tryDequeue(&value) {
	}
}

// HasConsumers reports whether the consumer side is still usable: it is
// false only once every consumer handle has existed and died.
func (q *Queue[T]) HasConsumers() bool {
	return !q.noMoreConsumers()
}

// HasProducers reports whether the producer side is still usable.
func (q *Queue[T]) HasProducers() bool {
	return !q.noMoreProducers()
}

func (q *Queue[T]) noMoreConsumers() bool {
	return q.consumers.Load() == createdAndDead
}

func (q *Queue[T]) noMoreProducers() bool {
	return q.producers.Load() == createdAndDead
}

// doPush publishes a value whose capacity token is already held.
func (q *Queue[T]) doPush(value T) {
	q.inner.enqueue(value)
	q.consumerSide.onElementPushed()
}

func (q *Queue[T]) markProducerDead() {
	old := atomicUpdate(&q.producers, func(v int64) int64 {
		if v == 1 {
			return createdAndDead
		}
		return v - 1
	})
	if old == 1 {
		q.consumerSide.unlockAll()
	}
}

func (q *Queue[T]) markConsumerDead() {
	old := atomicUpdate(&q.consumers, func(v int64) int64 {
		if v == 1 {
			return createdAndDead
		}
		return v - 1
	})
	if old == 1 {
		q.producerSide.unlockAll()
	}
}

// atomicUpdate applies f atomically and returns the previous value.
func atomicUpdate(v *atomic.Int64, f func(int64) int64) int64 {
	for {
		old := v.Load()
		if v.CompareAndSwap(old, f(old)) {
			return old
		}
	}
}
