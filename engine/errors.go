package engine

import (
	"errors"
	"fmt"
)

// ErrTimedOut reports that a blocking call reached its deadline. It is a
// non-exceptional outcome: callers are expected to handle it inline.
var ErrTimedOut = errors.New("deadline expired")

// ErrOverloaded reports that a non-critical task submission was rejected
// by a saturated processor.
var ErrOverloaded = errors.New("task processor overloaded")

// ErrProcessorStopped reports a submission to a processor that is
// shutting down.
var ErrProcessorStopped = errors.New("task processor stopped")

// CancellationReason records why a task was asked to cancel. It
// transitions away from CancellationReasonNone exactly once.
type CancellationReason uint32

const (
	CancellationReasonNone CancellationReason = iota
	CancellationReasonUserRequest
	CancellationReasonDeadline
	CancellationReasonOverload
	CancellationReasonShutdown
)

// String returns the string representation of CancellationReason.
func (r CancellationReason) String() string {
	switch r {
	case CancellationReasonNone:
		return "none"
	case CancellationReasonUserRequest:
		return "user-request"
	case CancellationReasonDeadline:
		return "deadline"
	case CancellationReasonOverload:
		return "overload"
	case CancellationReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// WaitInterruptedError is returned from a suspension point when the
// current task has a pending cancellation.
type WaitInterruptedError struct {
	Reason CancellationReason
}

// Error implements the error interface.
func (e *WaitInterruptedError) Error() string {
	return fmt.Sprintf("wait interrupted: task cancelled (%s)", e.Reason)
}

// IsWaitInterrupted reports whether err is, or wraps, a
// WaitInterruptedError.
func IsWaitInterrupted(err error) bool {
	var target *WaitInterruptedError
	return errors.As(err, &target)
}

func invalidStateMessage(detail string) string {
	return "engine: invalid task state: " + detail
}

func useOutsideTaskMessage(api string) string {
	return "engine: " + api + " called outside of a task"
}
