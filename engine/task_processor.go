package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"riptide/internal/logging"
	"riptide/internal/trace"
)

// ProcessorConfig configures a TaskProcessor.
type ProcessorConfig struct {
	// Name labels the processor in logs and metrics.
	Name string
	// WorkerThreads is the number of worker OS threads.
	WorkerThreads int
	// CoroPoolCapacity bounds the number of idle pooled coroutines.
	CoroPoolCapacity int
	// QueueCapacity is the run-queue buffer size.
	QueueCapacity int
	// OverloadQueueSize rejects non-critical submissions once the
	// run-queue backlog reaches it. 0 disables overload control.
	OverloadQueueSize int
	// ProfilerThreshold warns when a task runs longer than this without
	// a context switch. 0 disables the profiler.
	ProfilerThreshold time.Duration
	// TaskTraceMaxCSW is the per-task budget of traced state
	// transitions. 0 disables per-task tracing.
	TaskTraceMaxCSW int
	// HeartbeatInterval emits tracer liveness beats. 0 disables them.
	HeartbeatInterval time.Duration

	Logger logging.Logger
	Tracer trace.Tracer
}

func (cfg *ProcessorConfig) applyDefaults() {
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = runtime.NumCPU()
	}
	if cfg.CoroPoolCapacity <= 0 {
		cfg.CoroPoolCapacity = 256
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 4096
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
}

func (cfg *ProcessorConfig) validate() error {
	if cfg.OverloadQueueSize < 0 {
		return errors.New("engine: negative overload queue size")
	}
	if cfg.OverloadQueueSize > cfg.QueueCapacity {
		return fmt.Errorf("engine: overload queue size %d exceeds queue capacity %d",
			cfg.OverloadQueueSize, cfg.QueueCapacity)
	}
	return nil
}

// TaskProcessor schedules tasks over a fixed pool of worker threads. It
// owns the run-queue, the coroutine pool, the deadline-timer thread and
// the task counters.
type TaskProcessor struct {
	cfg      ProcessorConfig
	runQueue chan *TaskContext
	coroPool *coroPool
	timers   *timerThread
	counter  TaskCounter

	heartbeat *trace.Heartbeat
	stopping  atomic.Bool
	stopOnce  sync.Once
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewTaskProcessor validates the configuration and starts the worker
// threads and the timer thread.
func NewTaskProcessor(cfg ProcessorConfig) (*TaskProcessor, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &TaskProcessor{
		cfg:      cfg,
		runQueue: make(chan *TaskContext, cfg.QueueCapacity),
		coroPool: newCoroPool(cfg.CoroPoolCapacity),
		timers:   newTimerThread(),
		quit:     make(chan struct{}),
	}
	p.heartbeat = trace.StartHeartbeat(cfg.Tracer, cfg.HeartbeatInterval)

	for i := 0; i < cfg.WorkerThreads; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	p.traceProcessor(trace.KindSpanBegin, "processor-start")
	return p, nil
}

// Name returns the processor label.
func (p *TaskProcessor) Name() string { return p.cfg.Name }

// Counter returns the processor's task counters.
func (p *TaskProcessor) Counter() *TaskCounter { return &p.counter }

// RunQueueDepth returns the current run-queue backlog.
func (p *TaskProcessor) RunQueueDepth() int { return len(p.runQueue) }

// Stop shuts the processor down: queued tasks receive a shutdown
// cancellation and one final step, workers and the timer thread join.
// Callers are expected to join or cancel their tasks first; a task
// parked on an external event after Stop is never resumed.
func (p *TaskProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		close(p.quit)
		p.wg.Wait()
		p.timers.stop()
		p.coroPool.close()
		p.heartbeat.Stop()
		p.traceProcessor(trace.KindSpanEnd, "processor-stop")
		_ = p.cfg.Tracer.Flush()
	})
}

// WaitIdle blocks until no live tasks remain or the timeout expires.
func (p *TaskProcessor) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for p.counter.Alive() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Microsecond)
	}
	return true
}

func (p *TaskProcessor) overloaded() bool {
	over := p.cfg.OverloadQueueSize
	return over > 0 && len(p.runQueue) >= over
}

// schedule places ctx on the run-queue. Non-critical tasks are
// cancelled (not dropped) when the processor is overloaded or stopping:
// they still get a step so their waiters observe the terminal state.
func (p *TaskProcessor) schedule(ctx *TaskContext) {
	if !ctx.isCritical() {
		if p.stopping.Load() {
			ctx.RequestCancel(CancellationReasonShutdown)
		} else if p.overloaded() {
			p.counter.accountOverload()
			p.logOverload(ctx)
			ctx.RequestCancel(CancellationReasonOverload)
		}
	}

	select {
	case p.runQueue <- ctx:
	default:
		// The buffer is saturated; hand off without blocking the waker
		// (it may be the timer thread).
		go func() { p.runQueue <- ctx }()
	}
}

func (p *TaskProcessor) workerLoop() {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case ctx := <-p.runQueue:
			ctx.DoStep()
		case <-p.quit:
			p.drainOnQuit()
			return
		}
	}
}

// drainOnQuit cancels and steps every context still queued so waiters
// are released before the worker exits.
func (p *TaskProcessor) drainOnQuit() {
	for {
		select {
		case ctx := <-p.runQueue:
			ctx.RequestCancel(CancellationReasonShutdown)
			ctx.DoStep()
		default:
			return
		}
	}
}

func (p *TaskProcessor) logTaskCreate(ctx *TaskContext) {
	if p.cfg.Logger == nil {
		return
	}
	spawner := uint64(0)
	if cur := currentTaskContextUnchecked(); cur != nil {
		spawner = cur.id
	}
	p.cfg.Logger.Trace().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Uint64("spawner", spawner).
		Log("task created")
}

func (p *TaskProcessor) logTaskCancel(ctx *TaskContext, reason CancellationReason) {
	if p.cfg.Logger == nil {
		return
	}
	p.cfg.Logger.Trace().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Str("reason", reason.String()).
		Log("task cancellation requested")
}

func (p *TaskProcessor) logTaskError(ctx *TaskContext, err error) {
	if p.cfg.Logger == nil {
		return
	}
	p.cfg.Logger.Err().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Err(err).
		Log("task payload returned an error")
}

func (p *TaskProcessor) logTaskPanic(ctx *TaskContext, recovered any) {
	if p.cfg.Logger == nil {
		return
	}
	stack := make([]byte, 16<<10)
	stack = stack[:runtime.Stack(stack, false)]
	p.cfg.Logger.Err().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Str("panic", fmt.Sprint(recovered)).
		Str("stack", string(stack)).
		Log("task payload panicked")
}

func (p *TaskProcessor) logOverload(ctx *TaskContext) {
	if p.cfg.Logger == nil {
		return
	}
	p.cfg.Logger.Warning().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Int("backlog", len(p.runQueue)).
		Log("run queue overloaded, cancelling non-critical task")
}

func (p *TaskProcessor) logProfilerViolation(ctx *TaskContext, d, threshold time.Duration) {
	if p.cfg.Logger == nil {
		return
	}
	p.cfg.Logger.Warning().
		Str("processor", p.cfg.Name).
		Uint64("task", ctx.id).
		Int64("execution_us", d.Microseconds()).
		Int64("threshold_us", threshold.Microseconds()).
		Log("profiler threshold reached: task ran too long without a context switch")
}

func (p *TaskProcessor) traceProcessor(kind trace.Kind, name string) {
	p.cfg.Tracer.Emit(&trace.Event{
		Time:  time.Now(),
		Kind:  kind,
		Scope: trace.ScopeProcessor,
		Name:  name,
		Extra: map[string]string{"processor": p.cfg.Name},
	})
}

func (p *TaskProcessor) traceTaskState(ctx *TaskContext, state TaskState, delay time.Duration) {
	if !p.cfg.Tracer.Enabled() {
		return
	}
	p.cfg.Tracer.Emit(&trace.Event{
		Time:   time.Now(),
		Kind:   trace.KindPoint,
		Scope:  trace.ScopeSwitch,
		TaskID: ctx.id,
		Name:   state.String(),
		Detail: fmt.Sprintf("delay=%dus", delay.Microseconds()),
	})
}
