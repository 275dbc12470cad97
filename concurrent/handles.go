package concurrent

import (
	"sync/atomic"

	"riptide/engine"
)

// Producer is a handle granting push access. Handles may outlive the
// consumers and the queue; every handle must be Closed, and once the
// last one is, pending and future pops fail out in bounded time.
type Producer[T any] struct {
	q      *Queue[T]
	closed atomic.Bool
}

// Push blocks until the value is admitted, the deadline expires, the
// current task is cancelled while waiting or the consumer side is gone.
// Multi-producer queues also fail at once when the current task already
// has a pending cancellation. Returns true iff the value was enqueued.
func (p *Producer[T]) Push(value T, deadline engine.Deadline) bool {
	p.check()
	return p.q.producerSide.push(value, deadline)
}

// PushNoblock admits the value only if a capacity token is immediately
// available and consumers remain.
func (p *Producer[T]) PushNoblock(value T) bool {
	p.check()
	return p.q.producerSide.pushNoblock(value)
}

// Queue returns the underlying queue.
func (p *Producer[T]) Queue() *Queue[T] { return p.q }

// Close drops the handle. Closing the last producer unblocks every
// waiting consumer.
func (p *Producer[T]) Close() {
	if !p.closed.Swap(true) {
		p.q.markProducerDead()
	}
}

func (p *Producer[T]) check() {
	if p.closed.Load() {
		panic("concurrent: use of a closed producer handle")
	}
}

// Consumer is a handle granting pop access. Every handle must be
// Closed; once the last one is, pending and future pushes fail out in
// bounded time.
type Consumer[T any] struct {
	q      *Queue[T]
	closed atomic.Bool
}

// Pop blocks until an element arrives, the deadline expires, the
// current task is cancelled while waiting or the producer side is gone
// and the queue is drained. Returns true iff an element was stored into
// dst.
func (c *Consumer[T]) Pop(dst *T, deadline engine.Deadline) bool {
	c.check()
	return c.q.consumerSide.pop(dst, deadline)
}

// PopNoblock takes an element only if one is immediately available.
func (c *Consumer[T]) PopNoblock(dst *T) bool {
	c.check()
	return c.q.consumerSide.popNoblock(dst)
}

// Queue returns the underlying queue.
func (c *Consumer[T]) Queue() *Queue[T] { return c.q }

// Close drops the handle. Closing the last consumer unblocks every
// waiting producer.
func (c *Consumer[T]) Close() {
	if !c.closed.Swap(true) {
		c.q.markConsumerDead()
	}
}

func (c *Consumer[T]) check() {
	if c.closed.Load() {
		panic("concurrent: use of a closed consumer handle")
	}
}
