package warmup

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/graphgate/graphgate/operation"
)

// Warmer is the slice of the planner the orchestrator needs: a way to
// pre-plan one operation at warm-up priority.
type Warmer interface {
	Warm(ctx context.Context, op operation.Operation) error
}

// StateSetter is implemented by warmers that re-key their cache when
// the schema changes. planner.CachingPlanner is one.
type StateSetter interface {
	SetSchemaState(state *operation.SchemaState)
}

// ReloadEvent describes what a reload changed.
type ReloadEvent struct {
	SchemaChanged bool
	ConfigChanged bool

	// State is the new schema state when SchemaChanged is set.
	State *operation.SchemaState
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithAllowlist sets operations warmed on every reload regardless of
// traffic history.
func WithAllowlist(ops []operation.Operation) Option {
	return func(o *Orchestrator) { o.allowlist = ops }
}

// WithCount sets how many operations from history are warmed per
// reload.
func WithCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.count = n
		}
	}
}

// WithRate caps warm-up planning jobs per second.
func WithRate(perSecond float64) Option {
	return func(o *Orchestrator) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithConcurrency sets how many warm-up plans may be in flight at
// once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Orchestrator drives cache warm-up after reloads.
type Orchestrator struct {
	warmer  Warmer
	history *History
	logger  *slog.Logger

	allowlist   []operation.Operation
	count       int
	concurrency int
	limiter     *rate.Limiter
}

// NewOrchestrator creates an Orchestrator warming from history and
// the configured allowlist.
func NewOrchestrator(warmer Warmer, history *History, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		warmer:      warmer,
		history:     history,
		logger:      slog.Default(),
		count:       100,
		concurrency: 4,
		limiter:     rate.NewLimiter(rate.Limit(50), 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Reload handles a schema or configuration reload: the warmer is
// re-keyed to the new schema state when one is carried, then the
// warm-up pass runs. Events that changed nothing are ignored.
func (o *Orchestrator) Reload(ctx context.Context, ev ReloadEvent) error {
	if !ev.SchemaChanged && !ev.ConfigChanged {
		return nil
	}
	if ev.SchemaChanged && ev.State != nil {
		if s, ok := o.warmer.(StateSetter); ok {
			s.SetSchemaState(ev.State)
		}
	}
	return o.SchemaChanged(ctx)
}

// SchemaChanged warms the plan cache for the schema the planner now
// holds. The caller swaps the planner's schema state first; this only
// drives the re-planning pass.
//
// The batch is the allowlist plus the top operations from history,
// deduplicated and shuffled so no fixed prefix of the list is favored
// when warm-up is cut short. Individual planning failures are logged
// and skipped; only ctx cancellation aborts the pass.
func (o *Orchestrator) SchemaChanged(ctx context.Context) error {
	ops := o.batch()
	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	o.logger.Info("cache warm-up started",
		slog.Int("operations", len(ops)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, op := range ops {
		if err := o.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			if err := o.warmer.Warm(gctx, op); err != nil {
				o.logger.Debug("warm-up plan failed",
					slog.String("operation_name", op.Name),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	err := g.Wait()
	o.logger.Info("cache warm-up finished",
		slog.Int("operations", len(ops)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return err
}

// batch builds the deduplicated, shuffled warm-up list.
func (o *Orchestrator) batch() []operation.Operation {
	seen := make(map[histKey]struct{})
	var ops []operation.Operation

	add := func(op operation.Operation) {
		k := histKey{query: op.Query, name: op.Name}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		ops = append(ops, op)
	}

	for _, op := range o.allowlist {
		add(op)
	}
	for _, op := range o.history.Top(o.count) {
		add(op)
	}

	rand.Shuffle(len(ops), func(i, j int) {
		ops[i], ops[j] = ops[j], ops[i]
	})
	return ops
}
