package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphgate/graphgate"
	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/job"
	"github.com/graphgate/graphgate/middleware"
	"github.com/graphgate/graphgate/queue"
	"github.com/graphgate/graphgate/worker"
)

// Scheduler accepts compute jobs, queues them by priority, and
// executes them on a fixed worker pool.
type Scheduler struct {
	queue  *queue.Queue[*job.Job]
	pool   *worker.Pool
	logger *slog.Logger

	rejected metric.Int64Counter
	queued   metric.Int64ObservableGauge
	reg      metric.Registration
}

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	workers           int
	capacityPerWorker int
	promotionInterval time.Duration
	promotionAge      time.Duration
	mws               []middleware.Middleware
}

// WithWorkers sets the worker count. Default is one per available CPU.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueCapacityPerWorker sets the per-worker queue bound. The
// queue's total capacity is workers * capacity. The default of 1000 is
// deliberately large: most compute jobs are short, so a deep queue
// absorbs a sizable backlog during spikes before backpressure kicks in.
func WithQueueCapacityPerWorker(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacityPerWorker = n
		}
	}
}

// WithPromotion sets the age-based promotion tuning.
func WithPromotion(interval, age time.Duration) Option {
	return func(c *config) {
		c.promotionInterval = interval
		c.promotionAge = age
	}
}

// WithMiddleware appends middleware to the execution chain. The default
// chain is Recover only; callers typically add Metrics and Tracing.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *config) {
		c.mws = append(c.mws, mws...)
	}
}

// New creates a Scheduler. Call Start before submitting jobs.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	cfg := config{
		workers:           runtime.GOMAXPROCS(0),
		capacityPerWorker: 1000,
		promotionInterval: time.Second,
		promotionAge:      2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := queue.New[*job.Job](cfg.workers*cfg.capacityPerWorker,
		queue.WithPromotionInterval(cfg.promotionInterval),
		queue.WithPromotionAge(cfg.promotionAge),
	)

	mws := append([]middleware.Middleware{middleware.Recover(logger)}, cfg.mws...)
	executor := worker.NewExecutor(logger, mws...)
	pool := worker.NewPool(q, executor, logger,
		worker.WithWorkers(cfg.workers),
		worker.WithPromotionInterval(cfg.promotionInterval),
	)

	s := &Scheduler{
		queue:  q,
		pool:   pool,
		logger: logger,
	}

	meter := otel.Meter("github.com/graphgate/graphgate")
	var err error
	s.rejected, err = meter.Int64Counter(
		"graphgate.compute_jobs.queue_is_full",
		metric.WithDescription("Number of submissions rejected because the compute job queue is full"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	s.queued, err = meter.Int64ObservableGauge(
		"graphgate.compute_jobs.queued",
		metric.WithDescription("Number of compute jobs waiting to be scheduled"),
		metric.WithUnit("{job}"),
	)
	if err == nil {
		s.reg, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(s.queued, int64(q.Len()))
			return nil
		}, s.queued)
	}

	return s
}

// Start launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Stop shuts the scheduler down. Queued jobs are abandoned; running
// jobs get until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.reg != nil {
		_ = s.reg.Unregister()
	}
	return s.pool.Stop(ctx)
}

// QueueLen returns the number of jobs currently queued.
func (s *Scheduler) QueueLen() int { return s.queue.Len() }

// Workers returns the worker pool size.
func (s *Scheduler) Workers() int { return s.pool.Workers() }

// Submit enqueues a compute job and returns a Future for its result.
// The priority is derived from the kind. Submission never blocks:
// graphgate.ErrQueueFull is returned immediately when the queue is at
// capacity, and the caller decides whether to fail the request or shed
// the work.
func (s *Scheduler) Submit(
	ctx context.Context,
	kind job.Kind,
	payload job.Payload,
	tok *cancellation.Token,
) (*Future, error) {
	j := job.New(kind, payload, tok)

	if err := s.queue.Send(j.Priority, j); err != nil {
		if errors.Is(err, graphgate.ErrQueueFull) {
			s.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("job_kind", string(kind)),
			))
			return nil, err
		}
		if errors.Is(err, graphgate.ErrQueueClosed) {
			return nil, graphgate.ErrSchedulerStopped
		}
		return nil, err
	}

	return &Future{j: j}, nil
}

// Future is the caller's handle to a submitted job's result.
type Future struct {
	j *job.Job
}

// Job returns the underlying job (read-only use: ID, kind, priority).
func (f *Future) Job() *job.Job { return f.j }

// Wait blocks until the job's result is delivered or ctx is done.
// When ctx wins, the result reports channel_error: the job itself may
// still execute, but nothing is listening for it anymore — its token
// will observe the cancellation at the next checkpoint.
func (f *Future) Wait(ctx context.Context) job.Result {
	select {
	case r := <-f.j.Done:
		return r
	case <-ctx.Done():
		return job.Result{Outcome: job.OutcomeChannelError, Err: ctx.Err()}
	}
}
