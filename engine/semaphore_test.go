package engine_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"riptide/engine"
)

func TestSemaphoreTryLockShared(t *testing.T) {
	sem := engine.NewSemaphore(2)
	require.True(t, sem.TryLockShared())
	require.True(t, sem.TryLockShared())
	require.False(t, sem.TryLockShared())
	sem.UnlockShared()
	require.True(t, sem.TryLockShared())
	require.Equal(t, int64(0), sem.RemainingApprox())
}

func TestSemaphoreLockSharedDeadline(t *testing.T) {
	proc := newTestProcessor(t, 2)
	sem := engine.NewSemaphore(1)

	state, err := engine.RunBlocking(proc, func() error {
		if !sem.LockShared(engine.Deadline{}) {
			t.Error("first acquire must succeed")
		}
		begin := time.Now()
		if sem.LockShared(engine.DeadlineFromDuration(50 * time.Millisecond)) {
			t.Error("second acquire must time out")
		}
		elapsed := time.Since(begin)
		if elapsed < 40*time.Millisecond || elapsed > time.Second {
			t.Errorf("deadline-bounded acquire took %v", elapsed)
		}
		sem.UnlockShared()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

func TestSemaphoreHandoffBetweenTasks(t *testing.T) {
	proc := newTestProcessor(t, 2)
	sem := engine.NewSemaphore(1)

	state, err := engine.RunBlocking(proc, func() error {
		if !sem.LockShared(engine.Deadline{}) {
			t.Error("initial acquire failed")
			return nil
		}

		holder, err := engine.Spawn(proc, func() error {
			// Blocks until the outer task releases.
			if !sem.LockShared(engine.DeadlineFromDuration(time.Second)) {
				t.Error("inner acquire must succeed after release")
				return nil
			}
			sem.UnlockShared()
			return nil
		})
		if err != nil {
			return err
		}

		if err := engine.SleepFor(20 * time.Millisecond); err != nil {
			return err
		}
		sem.UnlockShared()
		return holder.Wait()
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

func TestSemaphoreBulkAcquire(t *testing.T) {
	proc := newTestProcessor(t, 2)
	sem := engine.NewSemaphore(4)

	state, err := engine.RunBlocking(proc, func() error {
		if !sem.LockSharedCount(engine.Deadline{}, 3) {
			t.Error("bulk acquire of 3 must succeed")
		}
		if sem.LockSharedCount(engine.DeadlineFromDuration(20*time.Millisecond), 2) {
			t.Error("bulk acquire past capacity must time out")
		}
		sem.UnlockSharedCount(3)
		if !sem.LockSharedCount(engine.Deadline{}, 4) {
			t.Error("full-capacity bulk acquire must succeed")
		}
		sem.UnlockSharedCount(4)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, engine.TaskCompleted, state)
}

func TestSemaphoreCancelInterruptsAcquire(t *testing.T) {
	proc := newTestProcessor(t, 2)
	sem := engine.NewSemaphore(0)

	started := make(chan struct{})
	var acquired atomic.Bool
	task, err := engine.Spawn(proc, func() error {
		close(started)
		acquired.Store(sem.LockShared(engine.Deadline{}))
		return nil
	})
	require.NoError(t, err)

	<-started
	time.Sleep(10 * time.Millisecond)
	task.Cancel(engine.CancellationReasonUserRequest)

	require.Equal(t, engine.TaskCompleted, task.WaitBlocking())
	require.False(t, acquired.Load(), "cancelled acquire must fail")
}

// No lost wakeup: tokens ping-pong between many contenders and every
// acquire eventually succeeds.
func TestSemaphoreContention(t *testing.T) {
	proc := newTestProcessor(t, 4)
	sem := engine.NewSemaphore(2)

	const tasks = 16
	const rounds = 50
	var total atomic.Int64

	handles := make([]*engine.Task, 0, tasks)
	for i := 0; i < tasks; i++ {
		task, err := engine.SpawnCritical(proc, func() error {
			for r := 0; r < rounds; r++ {
				if !sem.LockShared(engine.Deadline{}) {
					t.Error("unbounded acquire failed")
					return nil
				}
				total.Add(1)
				sem.UnlockShared()
			}
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, task)
	}
	for _, task := range handles {
		require.Equal(t, engine.TaskCompleted, task.WaitBlocking())
	}
	require.Equal(t, int64(tasks*rounds), total.Load())
	require.Equal(t, int64(2), sem.RemainingApprox())
}
