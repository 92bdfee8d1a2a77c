// Package scheduler exposes the compute-job submission API. It owns
// the ageing priority queue and the worker pool, and hands callers a
// Future per submitted job.
//
// The Scheduler is an explicitly constructed value with clear ownership
// of its queue and worker handles — there are no package-level
// singletons. Request-handling code and the warm-up orchestrator share
// one instance:
//
//	sched := scheduler.New(logger, scheduler.WithWorkers(8))
//	_ = sched.Start(ctx)
//
//	fut, err := sched.Submit(ctx, job.KindPlan, payload, tok)
//	if errors.Is(err, graphgate.ErrQueueFull) {
//	    // backpressure: fail fast, let the client retry
//	}
//	res := fut.Wait(ctx)
//
// Submission never blocks. When the queue is at capacity the caller
// gets graphgate.ErrQueueFull immediately; admitted jobs are never
// displaced by later submissions.
package scheduler
