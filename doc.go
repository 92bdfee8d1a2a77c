// Package graphgate implements the compute core of a federated GraphQL
// gateway: a bounded, priority-ordered scheduler that isolates CPU-bound
// work (parsing, validation, planning, introspection) from I/O goroutines,
// and a tiered query-plan cache (in-process LRU backed by an optional
// Redis tier) that the scheduler populates and consults.
//
// # Quick Start
//
//	sched := scheduler.New(logger,
//	    scheduler.WithWorkers(runtime.GOMAXPROCS(0)),
//	)
//	_ = sched.Start(ctx)
//
//	l1 := memory.New(memory.WithMaxEntries(512))
//	store := cache.NewTiered(l1, redisStore, logger)
//
//	p := planner.New(sched, store, planFn, state, cfg,
//	    planner.WithLogger(logger),
//	)
//	plan, err := p.Plan(ctx, op, tok)
//
// # Architecture
//
// An incoming operation first consults the tiered cache through a key
// derived from the operation text, the schema identity, and every
// planner-affecting configuration flag. On a miss, a compute job is
// submitted to a bounded ageing priority queue and executed by one of a
// fixed set of worker goroutines sized to the available CPU parallelism.
// Submission never blocks: when the queue is full, callers get an
// immediate backpressure error instead of piling up latency.
//
// Jobs carry cooperative cancellation tokens that payloads poll at
// checkpoints. After a schema or configuration reload, the warmup
// package re-plans historically popular operations at the lowest
// priority band, skipping any operation whose cache key survived the
// reload unchanged.
package graphgate
