package graphgate

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Core.
type Option func(*Core) error

// schedulerRunner is an internal interface for scheduler lifecycle.
type schedulerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// reloadHandler is an internal interface for the warm-up orchestrator.
type reloadHandler interface {
	SchemaChanged(ctx context.Context) error
}

// storeCloser is an internal interface for cache tier shutdown.
type storeCloser interface {
	Close() error
}

// Core is the compute core of the gateway: it owns the lifecycle of the
// scheduler, the tiered cache, and the warm-up orchestrator.
//
// Create one with New() and functional options. Core holds references
// to the subsystems via internal interfaces to avoid import cycles;
// construction of the concrete pieces happens in the embedding gateway
// (see the package example in doc.go).
type Core struct {
	config    Config
	logger    *slog.Logger
	scheduler schedulerRunner
	warmup    reloadHandler
	cache     storeCloser

	started bool
}

// New creates a Core with the given options.
func New(opts ...Option) (*Core, error) {
	c := &Core{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Logger returns the core's logger.
func (c *Core) Logger() *slog.Logger { return c.logger }

// Config returns a copy of the core's configuration.
func (c *Core) Config() Config { return c.config }

// SetScheduler sets the compute scheduler (called during wiring).
func (c *Core) SetScheduler(s schedulerRunner) { c.scheduler = s }

// SetWarmup sets the warm-up orchestrator (called during wiring).
func (c *Core) SetWarmup(w reloadHandler) { c.warmup = w }

// SetCache sets the cache tier to close on shutdown (called during wiring).
func (c *Core) SetCache(s storeCloser) { c.cache = s }

// Start begins compute job processing.
func (c *Core) Start(ctx context.Context) error {
	if c.scheduler == nil {
		return ErrNotStarted
	}
	if err := c.scheduler.Start(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

// Reload notifies the warm-up orchestrator of a schema or
// configuration change.
func (c *Core) Reload(ctx context.Context) error {
	if c.warmup == nil {
		return nil
	}
	return c.warmup.SchemaChanged(ctx)
}

// Stop gracefully shuts down the core. In-flight jobs are given until
// the configured shutdown timeout before being cancelled.
func (c *Core) Stop(ctx context.Context) error {
	if c.scheduler != nil && c.started {
		stopCtx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
		defer cancel()
		if err := c.scheduler.Stop(stopCtx); err != nil {
			c.logger.Error("scheduler stop error", "error", err)
		}
	}
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// WithConfig replaces the whole configuration. Options applied after
// it still override individual fields.
func WithConfig(cfg Config) Option {
	return func(c *Core) error {
		c.config = cfg
		return nil
	}
}

// WithWorkers sets the number of compute worker goroutines.
func WithWorkers(n int) Option {
	return func(c *Core) error {
		c.config.Workers = n
		return nil
	}
}

// WithQueueCapacityPerWorker sets the per-worker job queue capacity.
func WithQueueCapacityPerWorker(n int) Option {
	return func(c *Core) error {
		c.config.QueueCapacityPerWorker = n
		return nil
	}
}

// WithPromotion sets the age-based promotion tuning: how often queued
// jobs are considered for promotion, and how long a job may wait in a
// band before moving up.
func WithPromotion(interval, age time.Duration) Option {
	return func(c *Core) error {
		c.config.PromotionInterval = interval
		c.config.PromotionAge = age
		return nil
	}
}

// WithCancellationMode selects "enforce" or "measure" deadline handling.
func WithCancellationMode(mode string) Option {
	return func(c *Core) error {
		c.config.CancellationMode = mode
		return nil
	}
}

// WithLogger sets the structured logger for the core.
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) error {
		c.logger = l
		return nil
	}
}
