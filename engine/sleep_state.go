package engine

// SleepFlag values make up the sleep-state word of a task context. The
// word is the linearisation point of the whole sleep/wake protocol: the
// parking FetchOr in DoStep and every waker's FetchOr in Wakeup are
// serialised through it.
type SleepFlag uint64

const (
	// SleepFlagSleeping is set by the worker when the task parks.
	SleepFlagSleeping SleepFlag = 1 << iota
	// SleepFlagNonCancellable shields the parked task from cancel wakeups.
	SleepFlagNonCancellable
	SleepFlagWakeupByWaitList
	SleepFlagWakeupByDeadlineTimer
	SleepFlagWakeupByCancelRequest
	SleepFlagWakeupByBootstrap
)

// WakeupSource identifies the party that woke a sleeping task.
type WakeupSource uint8

const (
	WakeupSourceNone WakeupSource = iota
	WakeupSourceWaitList
	WakeupSourceDeadlineTimer
	WakeupSourceCancelRequest
	WakeupSourceBootstrap
)

// String returns the string representation of WakeupSource.
func (s WakeupSource) String() string {
	switch s {
	case WakeupSourceNone:
		return "none"
	case WakeupSourceWaitList:
		return "wait-list"
	case WakeupSourceDeadlineTimer:
		return "deadline-timer"
	case WakeupSourceCancelRequest:
		return "cancel-request"
	case WakeupSourceBootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

func (s WakeupSource) flag() SleepFlag {
	switch s {
	case WakeupSourceWaitList:
		return SleepFlagWakeupByWaitList
	case WakeupSourceDeadlineTimer:
		return SleepFlagWakeupByDeadlineTimer
	case WakeupSourceCancelRequest:
		return SleepFlagWakeupByCancelRequest
	case WakeupSourceBootstrap:
		return SleepFlagWakeupByBootstrap
	default:
		return 0
	}
}

// shouldSchedule decides whether the waker that observed prev before its
// FetchOr is the one to reschedule the task. Exactly one concurrent waker
// gets a true result per suspension; the seq-cst FetchOr serialises them.
func shouldSchedule(prev SleepFlag, source WakeupSource) bool {
	if prev&SleepFlagSleeping == 0 {
		// The task is between the coroutine switch and the parking
		// FetchOr; the parker will observe our flag and reschedule.
		return false
	}

	switch source {
	case WakeupSourceCancelRequest:
		// Lose to any other pending wakeup and to non-cancellable sleeps.
		return prev == SleepFlagSleeping
	case WakeupSourceBootstrap:
		return true
	default:
		if prev&SleepFlagNonCancellable != 0 {
			// A blocked cancel request does not count as a wakeup.
			prev &^= SleepFlagNonCancellable | SleepFlagWakeupByCancelRequest
		}
		return prev == SleepFlagSleeping
	}
}

// primaryWakeupSource reduces a fully-populated sleep-state word to the
// single source reported to the awoken task, in priority order.
func primaryWakeupSource(state SleepFlag) WakeupSource {
	switch {
	case state&SleepFlagWakeupByWaitList != 0:
		return WakeupSourceWaitList
	case state&SleepFlagWakeupByDeadlineTimer != 0:
		return WakeupSourceDeadlineTimer
	case state&SleepFlagWakeupByBootstrap != 0:
		return WakeupSourceBootstrap
	case state&SleepFlagWakeupByCancelRequest != 0 && state&SleepFlagNonCancellable == 0:
		return WakeupSourceCancelRequest
	default:
		panic(invalidStateMessage("no valid wakeup source in sleep state"))
	}
}
