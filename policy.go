package wpool

import (
	"fmt"
	"strings"
)

// RejectionPolicy decides what Submit does when the queue is full. A pool below
// its maximum starts a worker first. Submissions to a pool that is shutting down
// always fail with ErrWorkerPoolStopped.
type RejectionPolicy int

const (
	// BlockCaller makes the submitter wait for space.
	BlockCaller RejectionPolicy = iota
	// FailFast returns ErrQueueFull immediately.
	FailFast
	// DiscardOldest cancels the task at the head of the queue to make room once
	// the pool runs its maximum number of workers.
	DiscardOldest
)

func (p RejectionPolicy) String() string {
	switch p {
	case BlockCaller:
		return "block"
	case FailFast:
		return "fail_fast"
	case DiscardOldest:
		return "discard_oldest"
	default:
		return fmt.Sprintf("RejectionPolicy(%d)", int(p))
	}
}

// ParseRejectionPolicy is the inverse of RejectionPolicy.String.
func ParseRejectionPolicy(s string) (RejectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "":
		return BlockCaller, nil
	case "fail_fast":
		return FailFast, nil
	case "discard_oldest":
		return DiscardOldest, nil
	default:
		return 0, fmt.Errorf("%w: unknown rejection policy %q", ErrInvalidConfig, s)
	}
}

// ShutdownMode selects what Stop does with queued work.
type ShutdownMode int

const (
	// ShutdownModeDrain runs every queued task before the workers exit.
	ShutdownModeDrain ShutdownMode = iota
	// ShutdownModeImmediate cancels queued tasks and running task contexts.
	ShutdownModeImmediate
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownModeDrain:
		return "drain"
	case ShutdownModeImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("ShutdownMode(%d)", int(m))
	}
}

// ParseShutdownMode is the inverse of ShutdownMode.String.
func ParseShutdownMode(s string) (ShutdownMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drain", "":
		return ShutdownModeDrain, nil
	case "immediate":
		return ShutdownModeImmediate, nil
	default:
		return 0, fmt.Errorf("%w: unknown shutdown mode %q", ErrInvalidConfig, s)
	}
}

// Phase is the lifecycle phase of a pool.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseShuttingDownGraceful
	PhaseShuttingDownNow
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseShuttingDownGraceful:
		return "shutting_down_graceful"
	case PhaseShuttingDownNow:
		return "shutting_down_now"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
