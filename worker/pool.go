package worker

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphgate/graphgate/id"
	"github.com/graphgate/graphgate/job"
	"github.com/graphgate/graphgate/queue"
)

// Pool manages a fixed set of worker goroutines that dequeue and
// execute compute jobs. The pool is sized at construction (default one
// worker per available CPU) and never resized: the work is CPU-bound,
// so more workers than cores only adds context switching.
//
// The queue is the only synchronization point between workers; a job's
// payload is fully owned by the single worker executing it.
type Pool struct {
	queue    *queue.Queue[*job.Job]
	executor *Executor
	workers  int
	workerID id.WorkerID
	logger   *slog.Logger

	// promotionInterval drives the ticker goroutine that runs ageing
	// passes even when the queue is otherwise idle.
	promotionInterval time.Duration

	queueWait metric.Float64Histogram

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPromotionInterval sets how often the pool's ticker forces an
// ageing pass on the queue.
func WithPromotionInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.promotionInterval = d }
}

// NewPool creates a worker pool draining the given queue.
func NewPool(
	q *queue.Queue[*job.Job],
	executor *Executor,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		queue:             q,
		executor:          executor,
		workers:           runtime.GOMAXPROCS(0),
		workerID:          id.NewWorkerID(),
		logger:            logger,
		promotionInterval: time.Second,
		stopCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	meter := otel.Meter("github.com/graphgate/graphgate")
	var err error
	p.queueWait, err = meter.Float64Histogram(
		"graphgate.compute_jobs.queue_wait",
		metric.WithDescription("Time compute jobs spend queued before execution, in seconds"),
		metric.WithUnit("s"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("compute worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("workers", p.workers),
		slog.Int("queue_capacity", p.queue.Capacity()),
	)

	for range p.workers {
		p.wg.Add(1)
		go p.runLoop()
	}

	p.wg.Add(1)
	go p.promotionLoop()

	return nil
}

// Stop closes the queue and waits for workers to finish their current
// jobs. Jobs still queued at close time are delivered to their callers
// as abandoned without being executed. If the context expires first,
// Stop returns without waiting further; workers exit on their own once
// their current payload hits a cancellation checkpoint or returns.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("compute worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)
	remaining := p.queue.Close()
	for _, j := range remaining {
		j.Deliver(job.Result{Outcome: job.OutcomeAbandoned, Err: context.Canceled})
	}
	if len(remaining) > 0 {
		p.logger.Info("abandoned queued jobs on shutdown", slog.Int("count", len(remaining)))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("compute worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("compute worker pool shutdown timed out")
		return ctx.Err()
	}
}

// runLoop is run by each worker goroutine.
func (p *Pool) runLoop() {
	defer p.wg.Done()

	for {
		j, band, ok := p.queue.Recv()
		if !ok {
			return
		}

		wait := time.Since(j.EnqueuedAt)
		p.queueWait.Record(context.Background(), wait.Seconds(), metric.WithAttributes(
			attribute.String("job_kind", string(j.Kind)),
			attribute.String("effective_priority", band.String()),
		))

		res := p.executor.Execute(context.Background(), j)
		j.Deliver(res)
	}
}

// promotionLoop forces ageing passes while the pool runs, so queued
// low-priority jobs keep climbing even when no Send/Recv traffic
// triggers an opportunistic pass.
func (p *Pool) promotionLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.promotionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.queue.Promote()
		}
	}
}
