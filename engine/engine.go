package engine

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/graphgate/graphgate"
	"github.com/graphgate/graphgate/cache"
	"github.com/graphgate/graphgate/cache/memory"
	redisstore "github.com/graphgate/graphgate/cache/redis"
	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/middleware"
	"github.com/graphgate/graphgate/operation"
	"github.com/graphgate/graphgate/planner"
	"github.com/graphgate/graphgate/scheduler"
	"github.com/graphgate/graphgate/warmup"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger shared by all subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRedis enables the distributed L2 plan cache on the given client.
// Without it the engine runs on the in-process cache alone.
func WithRedis(client goredis.UniversalClient) Option {
	return func(e *Engine) { e.redisClient = client }
}

// WithAllowlist sets operations warmed on every reload regardless of
// traffic history.
func WithAllowlist(ops []operation.Operation) Option {
	return func(e *Engine) { e.allowlist = ops }
}

// WithMiddleware appends middleware to the job execution chain, after
// the default Metrics and Tracing.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.middleware = append(e.middleware, mws...) }
}

// Engine is the assembled compute core: scheduler, tiered plan cache,
// caching planner, and warm-up orchestrator, all built from one
// graphgate.Config.
type Engine struct {
	core    *graphgate.Core
	sched   *scheduler.Scheduler
	planner *planner.CachingPlanner
	warmup  *warmup.Orchestrator
	history *warmup.History
	store   *cache.Tiered
	l2      *redisstore.Store

	mode        cancellation.Mode
	planTimeout time.Duration

	logger      *slog.Logger
	redisClient goredis.UniversalClient
	allowlist   []operation.Operation
	middleware  []middleware.Middleware
}

// New builds an Engine from cfg. Every tunable in cfg is applied to
// the subsystem it belongs to; the zero-value Config is usable via
// graphgate.DefaultConfig().
func New(
	cfg graphgate.Config,
	planFn planner.PlanFunc,
	state *operation.SchemaState,
	plannerCfg operation.PlannerConfig,
	opts ...Option,
) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		mode:        cancellation.ParseMode(cfg.CancellationMode),
		planTimeout: cfg.PlanTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	mws := append([]middleware.Middleware{middleware.Metrics(), middleware.Tracing()}, e.middleware...)
	e.sched = scheduler.New(e.logger,
		scheduler.WithWorkers(cfg.Workers),
		scheduler.WithQueueCapacityPerWorker(cfg.QueueCapacityPerWorker),
		scheduler.WithPromotion(cfg.PromotionInterval, cfg.PromotionAge),
		scheduler.WithMiddleware(mws...),
	)

	l1 := memory.New(
		memory.WithMaxEntries(cfg.L1MaxEntries),
		memory.WithDefaultTTL(cfg.L1TTL),
	)
	var l2 cache.Store
	if e.redisClient != nil {
		e.l2 = redisstore.New(e.redisClient, redisstore.WithLogger(e.logger))
		l2 = e.l2
	}
	e.store = cache.NewTiered(l1, l2, e.logger,
		cache.WithL1TTL(cfg.L1TTL),
		cache.WithL2TTL(cfg.L2TTL),
	)

	e.history = warmup.NewHistory(0)
	e.planner = planner.New(e.sched, e.store, planFn, state, plannerCfg,
		planner.WithLogger(e.logger),
		planner.WithRecorder(e.history),
		planner.WithTTL(cfg.L1TTL),
	)
	e.warmup = warmup.NewOrchestrator(e.planner, e.history,
		warmup.WithLogger(e.logger),
		warmup.WithAllowlist(e.allowlist),
		warmup.WithCount(cfg.WarmupCount),
		warmup.WithRate(cfg.WarmupRate),
	)

	core, err := graphgate.New(
		graphgate.WithConfig(cfg),
		graphgate.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	core.SetScheduler(e.sched)
	core.SetWarmup(e.warmup)
	core.SetCache(e.store)
	e.core = core

	return e, nil
}

// Start launches the worker pool.
func (e *Engine) Start(ctx context.Context) error {
	return e.core.Start(ctx)
}

// Stop shuts the engine down: the scheduler drains within the
// configured shutdown timeout, then the cache tiers are closed.
func (e *Engine) Stop(ctx context.Context) error {
	err := e.core.Stop(ctx)
	if e.l2 != nil {
		if cerr := e.l2.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Reload re-keys the planner to a new schema state and drives the
// warm-up pass.
func (e *Engine) Reload(ctx context.Context, ev warmup.ReloadEvent) error {
	return e.warmup.Reload(ctx, ev)
}

// NewToken mints a cancellation token for one request, carrying the
// configured deadline mode and plan timeout.
func (e *Engine) NewToken(ctx context.Context) *cancellation.Token {
	return cancellation.NewToken(ctx, e.mode, cancellation.WithTimeout(e.planTimeout))
}

// Plan returns a query plan for op, from cache when possible. The
// planning job runs under a token from NewToken.
func (e *Engine) Plan(ctx context.Context, op operation.Operation) (*planner.Plan, error) {
	return e.planner.Plan(ctx, op, e.NewToken(ctx))
}

// Core returns the lifecycle core, for embedding gateways that manage
// start and stop themselves.
func (e *Engine) Core() *graphgate.Core { return e.core }

// Scheduler exposes the job scheduler for submitting parse and
// validate work directly.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Planner exposes the caching planner.
func (e *Engine) Planner() *planner.CachingPlanner { return e.planner }

// History exposes the traffic history feeding warm-up.
func (e *Engine) History() *warmup.History { return e.history }
