package graphgate

import "errors"

var (
	// Queue errors.
	ErrQueueFull   = errors.New("graphgate: compute job queue is full")
	ErrQueueClosed = errors.New("graphgate: compute job queue is closed")

	// Scheduler errors.
	ErrSchedulerStopped = errors.New("graphgate: scheduler stopped")
	ErrNotStarted       = errors.New("graphgate: scheduler not started")

	// Planner errors.
	ErrPlanAbandoned = errors.New("graphgate: plan job abandoned")
)
