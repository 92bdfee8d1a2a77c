package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tiered combines a synchronous in-process L1 with an optional
// distributed L2. Reads consult L1 first; an L2 hit back-fills L1.
// Writes hit L1 on the caller's path, while the L2 write is handed to
// a background writer so the request never waits on a network round
// trip. When the write-behind buffer is full the L2 write is dropped
// and counted — the entry is still served from L1, and another
// instance (or the next miss) will populate L2.
type Tiered struct {
	l1     Store
	l2     Store // nil when no distributed tier is configured
	logger *slog.Logger

	l1TTL time.Duration
	l2TTL time.Duration

	writeCh chan writeReq
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool

	hits    metric.Int64Counter
	misses  metric.Int64Counter
	dropped metric.Int64Counter
}

type writeReq struct {
	key   string
	value []byte
}

// TieredOption configures a Tiered store.
type TieredOption func(*Tiered)

// WithL1TTL sets the time-to-live for L1 entries.
func WithL1TTL(d time.Duration) TieredOption {
	return func(t *Tiered) { t.l1TTL = d }
}

// WithL2TTL sets the time-to-live for L2 entries. L2 outlives L1 by
// default: the distributed tier exists to survive instance restarts.
func WithL2TTL(d time.Duration) TieredOption {
	return func(t *Tiered) { t.l2TTL = d }
}

// WithWriteBuffer sets the write-behind buffer size.
func WithWriteBuffer(n int) TieredOption {
	return func(t *Tiered) {
		if n > 0 {
			t.writeCh = make(chan writeReq, n)
		}
	}
}

// NewTiered creates a tiered store. l2 may be nil for L1-only
// operation. Call Close to flush the write-behind worker on shutdown.
func NewTiered(l1, l2 Store, logger *slog.Logger, opts ...TieredOption) *Tiered {
	t := &Tiered{
		l1:      l1,
		l2:      l2,
		logger:  logger,
		l1TTL:   30 * time.Minute,
		l2TTL:   48 * time.Hour,
		writeCh: make(chan writeReq, 1024),
	}
	for _, opt := range opts {
		opt(t)
	}

	meter := otel.Meter("github.com/graphgate/graphgate")
	var err error
	t.hits, err = meter.Int64Counter("graphgate.cache.hits",
		metric.WithDescription("Plan cache hits by tier"))
	_ = err
	t.misses, err = meter.Int64Counter("graphgate.cache.misses",
		metric.WithDescription("Plan cache misses"))
	_ = err
	t.dropped, err = meter.Int64Counter("graphgate.cache.writes_dropped",
		metric.WithDescription("L2 write-behind requests dropped because the buffer was full"))
	_ = err

	if t.l2 != nil {
		t.wg.Add(1)
		go t.writeLoop()
	}

	return t
}

// Get implements Store.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.l1.Get(ctx, key); ok {
		t.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", "l1")))
		return v, true
	}

	if t.l2 != nil {
		if v, ok := t.l2.Get(ctx, key); ok {
			t.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", "l2")))
			// Back-fill L1 so the next lookup stays in process.
			if err := t.l1.Put(ctx, key, v, t.l1TTL); err != nil {
				t.logger.Warn("l1 back-fill failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
			return v, true
		}
	}

	t.misses.Add(ctx, 1)
	return nil, false
}

// Put implements Store. The L1 write is synchronous; the L2 write is
// queued to the background writer.
func (t *Tiered) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.l1TTL
	}
	if err := t.l1.Put(ctx, key, value, ttl); err != nil {
		return err
	}

	if t.l2 == nil {
		return nil
	}

	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	select {
	case t.writeCh <- writeReq{key: key, value: value}:
	default:
		t.dropped.Add(ctx, 1)
	}
	return nil
}

// Delete implements Store. Both tiers are deleted synchronously;
// invalidation is rare and correctness matters more than latency.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	err := t.l1.Delete(ctx, key)
	if t.l2 != nil {
		if l2err := t.l2.Delete(ctx, key); l2err != nil && err == nil {
			err = l2err
		}
	}
	return err
}

// Close stops the write-behind worker after draining queued writes.
func (t *Tiered) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	close(t.writeCh)
	t.wg.Wait()
	return nil
}

func (t *Tiered) writeLoop() {
	defer t.wg.Done()

	for req := range t.writeCh {
		// Detached context: the originating request is long gone and
		// must not cancel the shared write path.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.l2.Put(ctx, req.key, req.value, t.l2TTL); err != nil {
			t.logger.Warn("l2 write-behind failed",
				slog.String("key", req.key),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
