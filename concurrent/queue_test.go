package concurrent_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"riptide/concurrent"
	"riptide/engine"
)

func newTestProcessor(t *testing.T, workers int) *engine.TaskProcessor {
	t.Helper()
	proc, err := engine.NewTaskProcessor(engine.ProcessorConfig{
		Name:          "queue-test",
		WorkerThreads: workers,
	})
	require.NoError(t, err)
	t.Cleanup(proc.Stop)
	return proc
}

func TestSPSCRoundTrip(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewSPSC[int](4)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()

	state, err := engine.RunBlocking(proc, func() error {
		for i := 0; i < 10; i++ {
			if !producer.Push(i, engine.Deadline{}) {
				t.Errorf("push %d failed", i)
			}
			var got int
			if !consumer.Pop(&got, engine.Deadline{}) {
				t.Errorf("pop %d failed", i)
			} else if got != i {
				t.Errorf("pop = %d, want %d", got, i)
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
	require.Zero(t, queue.GetSizeApproximate())
	producer.Close()
	consumer.Close()
}

// Scenario: pop on an empty SPSC queue with a 100ms deadline fails
// after roughly the deadline.
func TestPopDeadlineOnEmptyQueue(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewSPSC[int](4)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()
	defer producer.Close()
	defer consumer.Close()

	state, err := engine.RunBlocking(proc, func() error {
		begin := time.Now()
		var got int
		ok := consumer.Pop(&got, engine.DeadlineFromDuration(100*time.Millisecond))
		elapsed := time.Since(begin)
		if ok {
			t.Error("pop on an empty queue must fail")
		}
		if elapsed < 80*time.Millisecond || elapsed > time.Second {
			t.Errorf("pop returned after %v, want ~100ms", elapsed)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

// Scenario: MPMC with capacity 2, four producers pushing one value
// each, two consumers popping two each. All operations complete and the
// queue drains.
func TestMPMCManyProducersConsumers(t *testing.T) {
	proc := newTestProcessor(t, 4)
	queue := concurrent.NewMPMC[int](2)

	var pushed, popped atomic.Int64
	handles := make([]*engine.Task, 0, 6)

	for i := 0; i < 4; i++ {
		producer := queue.GetProducer()
		value := i
		task, err := engine.SpawnCritical(proc, func() error {
			defer producer.Close()
			if producer.Push(value, engine.DeadlineFromDuration(5*time.Second)) {
				pushed.Add(1)
			}
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, task)
	}

	for i := 0; i < 2; i++ {
		consumer := queue.GetConsumer()
		task, err := engine.SpawnCritical(proc, func() error {
			defer consumer.Close()
			var got int
			for n := 0; n < 2; n++ {
				if consumer.Pop(&got, engine.DeadlineFromDuration(5*time.Second)) {
					popped.Add(1)
				}
			}
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, task)
	}

	for _, task := range handles {
		require.Equal(t, engine.TaskCompleted, task.WaitBlocking())
	}
	require.Equal(t, int64(4), pushed.Load())
	require.Equal(t, int64(4), popped.Load())
	require.Zero(t, queue.GetSizeApproximate())
}

// Scenario: the producer pushes one value and drops its handle. The
// consumer pops the value; the next pop fails immediately, not at the
// deadline.
func TestPopFailsFastAfterProducerDeath(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewSPSC[string](4)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()
	defer consumer.Close()

	state, err := engine.RunBlocking(proc, func() error {
		if !producer.Push("v", engine.Deadline{}) {
			t.Error("push failed")
			return nil
		}
		producer.Close()

		var got string
		if !consumer.Pop(&got, engine.DeadlineFromDuration(time.Second)) || got != "v" {
			t.Errorf("first pop = %q, want \"v\"", got)
		}

		begin := time.Now()
		if consumer.Pop(&got, engine.DeadlineFromDuration(5*time.Second)) {
			t.Error("pop after producer death must fail")
		}
		if elapsed := time.Since(begin); elapsed > time.Second {
			t.Errorf("pop took %v, want immediate failure", elapsed)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

// Handle-liveness reciprocity: once the consumer side is created and
// dead, pushes fail in bounded time.
func TestPushFailsFastAfterConsumerDeath(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewMPMC[int](2)
	producer := queue.GetProducer()
	defer producer.Close()

	queue.GetConsumer().Close()

	state, err := engine.RunBlocking(proc, func() error {
		begin := time.Now()
		if producer.Push(1, engine.DeadlineFromDuration(5*time.Second)) {
			t.Error("push after consumer death must fail")
		}
		if elapsed := time.Since(begin); elapsed > time.Second {
			t.Errorf("push took %v, want immediate failure", elapsed)
		}
		if producer.PushNoblock(2) {
			t.Error("noblock push after consumer death must fail")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

// PushNoblock on the single-producer side fails when the consumer is
// dead even if spare capacity remains.
func TestSingleProducerNoblockFailsWithoutConsumers(t *testing.T) {
	queue := concurrent.NewSPSC[int](8)
	producer := queue.GetProducer()
	defer producer.Close()

	queue.GetConsumer().Close()
	require.False(t, producer.PushNoblock(1))
}

// Under MPSC, values from one producer are observed in push order.
func TestMPSCSingleProducerFIFO(t *testing.T) {
	proc := newTestProcessor(t, 4)
	queue := concurrent.NewMPSC[[2]int](8)

	const producers = 3
	const perProducer = 100

	handles := make([]*engine.Task, 0, producers+1)
	for p := 0; p < producers; p++ {
		producer := queue.GetProducer()
		id := p
		task, err := engine.SpawnCritical(proc, func() error {
			defer producer.Close()
			for n := 0; n < perProducer; n++ {
				if !producer.Push([2]int{id, n}, engine.Deadline{}) {
					t.Errorf("producer %d push %d failed", id, n)
					return nil
				}
			}
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, task)
	}

	consumer := queue.GetConsumer()
	task, err := engine.SpawnCritical(proc, func() error {
		defer consumer.Close()
		last := [producers]int{}
		for i := range last {
			last[i] = -1
		}
		var got [2]int
		for n := 0; n < producers*perProducer; n++ {
			if !consumer.Pop(&got, engine.DeadlineFromDuration(5*time.Second)) {
				t.Errorf("pop %d failed", n)
				return nil
			}
			if got[1] <= last[got[0]] {
				t.Errorf("producer %d order violated: %d after %d", got[0], got[1], last[got[0]])
			}
			last[got[0]] = got[1]
		}
		return nil
	})
	require.NoError(t, err)
	handles = append(handles, task)

	for _, h := range handles {
		require.Equal(t, engine.TaskCompleted, h.WaitBlocking())
	}
}

func TestQueueResize(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewSPSC[int](1)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()
	defer producer.Close()
	defer consumer.Close()

	state, err := engine.RunBlocking(proc, func() error {
		if !producer.PushNoblock(1) {
			t.Error("first push failed")
		}
		if producer.PushNoblock(2) {
			t.Error("push past capacity must fail")
		}

		queue.SetSoftMaxSize(2)
		if queue.GetSoftMaxSize() != 2 {
			t.Errorf("soft max size = %d", queue.GetSoftMaxSize())
		}
		if !producer.PushNoblock(2) {
			t.Error("grown capacity must admit a push")
		}

		// Shrink below the current size: pushes stall until drained.
		queue.SetSoftMaxSize(1)
		if producer.PushNoblock(3) {
			t.Error("push during shrink must fail")
		}

		var got int
		if !consumer.PopNoblock(&got) {
			t.Error("pop failed")
		}
		if producer.PushNoblock(3) {
			t.Error("still at the new bound, push must fail")
		}
		if !consumer.PopNoblock(&got) {
			t.Error("pop failed")
		}
		if !producer.PushNoblock(3) {
			t.Error("drained below the new bound, push must succeed")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

func TestQueuePushWakesBlockedProducer(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewMPMC[int](1)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()
	defer producer.Close()
	defer consumer.Close()

	state, err := engine.RunBlocking(proc, func() error {
		if !producer.Push(1, engine.Deadline{}) {
			t.Error("first push failed")
			return nil
		}

		popper, err := engine.Spawn(proc, func() error {
			if err := engine.SleepFor(30 * time.Millisecond); err != nil {
				return err
			}
			var got int
			if !consumer.Pop(&got, engine.Deadline{}) {
				t.Error("pop failed")
			}
			return nil
		})
		if err != nil {
			return err
		}

		begin := time.Now()
		if !producer.Push(2, engine.DeadlineFromDuration(5*time.Second)) {
			t.Error("blocked push must complete once an element is popped")
		}
		if elapsed := time.Since(begin); elapsed < 20*time.Millisecond {
			t.Errorf("push completed after %v, before the pop", elapsed)
		}
		return popper.Wait()
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

func TestSecondLiveHandlePanicsOnSingleSides(t *testing.T) {
	queue := concurrent.NewSPSC[int](1)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()

	require.Panics(t, func() { queue.GetProducer() })
	require.Panics(t, func() { queue.GetConsumer() })

	// Dropping the handle re-opens the slot.
	producer.Close()
	consumer.Close()
	queue.GetProducer().Close()
	queue.GetConsumer().Close()
}

func TestCancelledTaskPushFails(t *testing.T) {
	proc := newTestProcessor(t, 2)
	queue := concurrent.NewMPMC[int](1)
	producer := queue.GetProducer()
	consumer := queue.GetConsumer()
	defer producer.Close()
	defer consumer.Close()

	started := make(chan struct{})
	var pushOK atomic.Bool
	pushOK.Store(true)
	task, err := engine.Spawn(proc, func() error {
		if !producer.Push(1, engine.Deadline{}) {
			t.Error("first push failed")
			close(started)
			return nil
		}
		close(started)
		// Queue is full; this push parks until the cancel arrives.
		pushOK.Store(producer.Push(2, engine.Deadline{}))
		return nil
	})
	require.NoError(t, err)

	<-started
	time.Sleep(10 * time.Millisecond)
	task.Cancel(engine.CancellationReasonUserRequest)
	task.WaitBlocking()
	require.False(t, pushOK.Load(), "push must fail on task cancellation")
}
