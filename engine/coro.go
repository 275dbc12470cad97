package engine

import (
	"sync"
)

// yieldReason tells the worker why the coroutine handed control back.
type yieldReason uint8

const (
	yieldReasonNone yieldReason = iota
	yieldReasonWaiting
	yieldReasonComplete
	yieldReasonCancelled
)

// coroutine is a pooled goroutine that lends its stack to one task at a
// time. The worker and the task goroutine ping-pong control over two
// unbuffered channels, which gives the same symmetric switch a stackful
// coroutine library would: exactly one of the two sides runs at any
// moment.
type coroutine struct {
	pipe chan *TaskContext // worker -> task: enter or resume
	back chan struct{}     // task -> worker: yield
}

func newCoroutine() *coroutine {
	c := &coroutine{
		pipe: make(chan *TaskContext),
		back: make(chan struct{}),
	}
	go c.run()
	return c
}

// enter resumes the coroutine with ctx and blocks the worker until the
// task yields. On return ctx.yieldReason is valid.
func (c *coroutine) enter(ctx *TaskContext) {
	c.pipe <- ctx
	<-c.back
}

// yieldWaiting suspends the task goroutine from inside Sleep: control
// returns to the worker blocked in enter, and the call completes when a
// worker resumes the task.
func (c *coroutine) yieldWaiting(ctx *TaskContext) {
	c.back <- struct{}{}
	next := <-c.pipe
	if next != ctx {
		panic(invalidStateMessage("coroutine resumed with a foreign task context"))
	}
}

// stop terminates the backing goroutine. Only valid while no task is
// bound.
func (c *coroutine) stop() {
	close(c.pipe)
}

func (c *coroutine) run() {
	gid := goroutineID()
	for ctx := range c.pipe {
		c.execute(gid, ctx)
		c.back <- struct{}{}
	}
}

// execute runs one full task on this coroutine, from first entry to the
// terminal yield. Resumptions after Sleep re-enter through the pipe
// inside yieldWaiting, not here.
func (c *coroutine) execute(gid uint64, ctx *TaskContext) {
	bindCurrentTask(gid, ctx)
	defer unbindCurrentTask(gid)

	ctx.yieldReason = yieldReasonNone

	// Tasks with a cancellation that arrived before the first step are
	// terminated without entering the payload, unless started critical.
	if ctx.IsCancelRequested() && !ctx.startedAsCritical {
		ctx.payload = nil
		ctx.yieldReason = yieldReasonCancelled
		return
	}

	ctx.localStorage = newLocalStorage()
	defer func() {
		ctx.localStorage = nil
		if r := recover(); r != nil {
			ctx.processor.logTaskPanic(ctx, r)
			ctx.yieldReason = yieldReasonCancelled
		}
	}()

	payload := ctx.payload
	ctx.payload = nil
	err := payload()
	switch {
	case err == nil:
		ctx.yieldReason = yieldReasonComplete
	case IsWaitInterrupted(err):
		ctx.yieldReason = yieldReasonCancelled
	default:
		ctx.processor.logTaskError(ctx, err)
		ctx.yieldReason = yieldReasonComplete
	}
}

// coroPool recycles coroutines between tasks so steady-state operation
// spawns no goroutines.
type coroPool struct {
	mu       sync.Mutex
	idle     []*coroutine
	capacity int
	closed   bool
}

func newCoroPool(capacity int) *coroPool {
	return &coroPool{capacity: capacity}
}

func (p *coroPool) get() *coroutine {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c
	}
	p.mu.Unlock()
	return newCoroutine()
}

func (p *coroPool) put(c *coroutine) {
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.capacity {
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	c.stop()
}

func (p *coroPool) close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()
	for _, c := range idle {
		c.stop()
	}
}

// currentTasks maps the goroutine ID of a coroutine to the task bound to
// it. It is the Go stand-in for a thread-local current-task pointer.
var currentTasks sync.Map

func bindCurrentTask(gid uint64, ctx *TaskContext) {
	currentTasks.Store(gid, ctx)
}

func unbindCurrentTask(gid uint64) {
	currentTasks.Delete(gid)
}

func currentTaskContextUnchecked() *TaskContext {
	if v, ok := currentTasks.Load(goroutineID()); ok {
		return v.(*TaskContext)
	}
	return nil
}

func currentTaskContext(api string) *TaskContext {
	ctx := currentTaskContextUnchecked()
	if ctx == nil {
		panic(useOutsideTaskMessage(api))
	}
	return ctx
}
