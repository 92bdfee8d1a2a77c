package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/graphgate/graphgate"
	"github.com/graphgate/graphgate/cache"
	"github.com/graphgate/graphgate/cachekey"
	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/job"
	"github.com/graphgate/graphgate/operation"
	"github.com/graphgate/graphgate/scheduler"
)

// Plan is a fully formed query plan, ready for execution. The Root
// document is opaque to the cache and scheduler; only the executor
// interprets it.
type Plan struct {
	SchemaID      string          `json:"schema_id"`
	OperationName string          `json:"operation_name,omitempty"`
	Root          json.RawMessage `json:"root"`
}

// PlanFunc performs the actual planning. It runs on a scheduler worker
// goroutine and must call tok.Check at its internal checkpoints so
// cancellation and deadlines are observed.
type PlanFunc func(
	ctx context.Context,
	tok *cancellation.Token,
	op operation.Operation,
	state *operation.SchemaState,
) (*Plan, error)

// Recorder observes every planned operation. The warm-up history
// implements this to learn which operations are worth pre-planning
// after a schema reload.
type Recorder interface {
	Record(op operation.Operation)
}

// entry is the cached form of a planning outcome. Exactly one of Plan
// and Error is set.
type entry struct {
	Plan  *Plan  `json:"plan,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrCachedPlanFailure wraps a planning error that was served from the
// cache rather than produced by a fresh planning run.
var ErrCachedPlanFailure = errors.New("graphgate/planner: operation previously failed planning")

// Option configures a CachingPlanner.
type Option func(*CachingPlanner)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *CachingPlanner) { p.logger = l }
}

// WithRecorder sets the operation recorder.
func WithRecorder(r Recorder) Option {
	return func(p *CachingPlanner) { p.recorder = r }
}

// WithTTL sets the cache TTL for stored plans.
func WithTTL(d time.Duration) Option {
	return func(p *CachingPlanner) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// CachingPlanner wraps a planning function with the scheduler and the
// plan cache.
type CachingPlanner struct {
	sched  *scheduler.Scheduler
	store  cache.Store
	planFn PlanFunc
	logger *slog.Logger

	recorder Recorder
	ttl      time.Duration

	mu     sync.RWMutex
	state  *operation.SchemaState
	cfg    operation.PlannerConfig
	hasher *cachekey.Hasher
}

// New creates a CachingPlanner for the given schema state and planner
// config.
func New(
	sched *scheduler.Scheduler,
	store cache.Store,
	planFn PlanFunc,
	state *operation.SchemaState,
	cfg operation.PlannerConfig,
	opts ...Option,
) *CachingPlanner {
	p := &CachingPlanner{
		sched:  sched,
		store:  store,
		planFn: planFn,
		logger: slog.Default(),
		ttl:    30 * time.Minute,
		state:  state,
		cfg:    cfg,
		hasher: cachekey.New(state.ID(), cfg.Hash()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the schema state plans are currently produced against.
func (p *CachingPlanner) State() *operation.SchemaState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetSchemaState swaps in a new schema state. Keys derived after the
// swap embed the new state's ID, so plans cached under the old schema
// are simply never looked up again and age out of both tiers.
func (p *CachingPlanner) SetSchemaState(state *operation.SchemaState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.hasher = cachekey.New(state.ID(), p.cfg.Hash())
}

// SetConfig swaps in a new planner config, re-keying the cache the
// same way a schema change does.
func (p *CachingPlanner) SetConfig(cfg operation.PlannerConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.hasher = cachekey.New(p.state.ID(), cfg.Hash())
}

// Key returns the cache key for op under the current schema and
// config.
func (p *CachingPlanner) Key(op operation.Operation) cachekey.Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasher.Key(op.Query, op.Name)
}

// Plan returns a query plan for op, from cache when possible. A miss
// submits a planning job at live-traffic priority and blocks on its
// result.
func (p *CachingPlanner) Plan(ctx context.Context, op operation.Operation, tok *cancellation.Token) (*Plan, error) {
	if p.recorder != nil {
		p.recorder.Record(op)
	}

	p.mu.RLock()
	state := p.state
	key := p.hasher.Key(op.Query, op.Name)
	p.mu.RUnlock()

	if plan, found, err := p.lookup(ctx, key); found {
		return plan, err
	}

	return p.planAndStore(ctx, op, state, key, job.KindPlan, tok)
}

// Warm pre-plans op at warm-up priority. Operations whose key is
// already cached are skipped; this is what makes warm-up after a
// reload cheap when most plans survived in L2.
func (p *CachingPlanner) Warm(ctx context.Context, op operation.Operation) error {
	p.mu.RLock()
	state := p.state
	key := p.hasher.Key(op.Query, op.Name)
	p.mu.RUnlock()

	if _, found, _ := p.lookup(ctx, key); found {
		return nil
	}

	_, err := p.planAndStore(ctx, op, state, key, job.KindPlanWarmup, cancellation.Background())
	return err
}

// lookup fetches and decodes a cached entry. found reports whether the
// key was present; a present entry may carry a cached failure.
func (p *CachingPlanner) lookup(ctx context.Context, key cachekey.Key) (*Plan, bool, error) {
	raw, found := p.store.Get(ctx, key.String())
	if !found {
		return nil, false, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry: drop it and replan.
		p.logger.Warn("dropping undecodable cache entry",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		_ = p.store.Delete(ctx, key.String())
		return nil, false, nil
	}

	if e.Error != "" {
		return nil, true, fmt.Errorf("%w: %s", ErrCachedPlanFailure, e.Error)
	}
	return e.Plan, true, nil
}

func (p *CachingPlanner) planAndStore(
	ctx context.Context,
	op operation.Operation,
	state *operation.SchemaState,
	key cachekey.Key,
	kind job.Kind,
	tok *cancellation.Token,
) (*Plan, error) {
	payload := func(ctx context.Context, tok *cancellation.Token) (any, error) {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		return p.planFn(ctx, tok, op, state)
	}

	fut, err := p.sched.Submit(ctx, kind, payload, tok)
	if err != nil {
		// Backpressure is transient: never cached.
		return nil, err
	}

	res := fut.Wait(ctx)
	switch res.Outcome {
	case job.OutcomeExecutedOK:
		plan, ok := res.Value.(*Plan)
		if !ok {
			return nil, fmt.Errorf("graphgate/planner: unexpected result type %T", res.Value)
		}
		p.put(ctx, key, entry{Plan: plan})
		return plan, nil

	case job.OutcomeExecutedError:
		// The operation itself is unplannable; cache the failure so
		// repeats are served without a worker.
		p.put(ctx, key, entry{Error: res.Err.Error()})
		return nil, res.Err

	case job.OutcomeAbandoned:
		return nil, fmt.Errorf("%w: %v", graphgate.ErrPlanAbandoned, res.Err)

	default:
		return nil, res.Err
	}
}

func (p *CachingPlanner) put(ctx context.Context, key cachekey.Key, e entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("plan not cached",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.store.Put(ctx, key.String(), raw, p.ttl); err != nil {
		p.logger.Warn("plan not cached",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	}
}
