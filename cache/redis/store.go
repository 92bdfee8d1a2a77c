// Package redis implements the distributed L2 plan cache on Redis.
// Entries are plain string values with a TTL, keyed under a
// "graphgate:plan:" prefix so instances sharing a Redis deployment
// share plans without colliding with other tenants.
//
// The store degrades instead of failing: when Redis is unreachable,
// reads report misses, writes are dropped, and a background probe
// re-checks the connection with exponential backoff until it recovers.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	defer s.Close()
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphgate/graphgate/backoff"
	"github.com/graphgate/graphgate/cache"
)

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)

const keyPrefix = "graphgate:plan:"

// Health reports the connection state of the store.
type Health int32

const (
	// Healthy means commands are being issued normally.
	Healthy Health = iota
	// Reconnecting means a command failed and the background probe is
	// trying to re-establish the connection. Reads miss, writes drop.
	Reconnecting
	// Unresponsive means the probe has failed repeatedly. Same
	// degraded behavior as Reconnecting, surfaced separately so
	// operators can tell a blip from an outage.
	Unresponsive
)

// String implements fmt.Stringer.
func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Reconnecting:
		return "reconnecting"
	case Unresponsive:
		return "unresponsive"
	default:
		return "unknown"
	}
}

// unresponsiveAfter is the probe failure count at which the store
// transitions from Reconnecting to Unresponsive.
const unresponsiveAfter = 5

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix overrides the default key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithBackoff sets the probe backoff strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Store) { s.backoff = b }
}

// WithPinger overrides the connection probe. Intended for tests.
func WithPinger(ping func(ctx context.Context) error) Option {
	return func(s *Store) { s.ping = ping }
}

// Store implements cache.Store backed by Redis.
type Store struct {
	client  goredis.UniversalClient
	logger  *slog.Logger
	prefix  string
	backoff backoff.Strategy
	ping    func(ctx context.Context) error

	health  atomic.Int32
	probeMu sync.Mutex
	probing bool

	probeCtx    context.Context
	probeCancel context.CancelFunc
	probeWG     sync.WaitGroup

	errorCount metric.Int64Counter
}

// New creates a Redis-backed store. The caller owns the Redis client
// lifecycle; Close stops the health probe but does not close the
// client.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		client:      client,
		logger:      slog.Default(),
		prefix:      keyPrefix,
		backoff:     backoff.DefaultStrategy(),
		probeCtx:    ctx,
		probeCancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	if s.ping == nil {
		s.ping = func(ctx context.Context) error {
			return s.client.Ping(ctx).Err()
		}
	}

	meter := otel.Meter("github.com/graphgate/graphgate")
	var err error
	s.errorCount, err = meter.Int64Counter("graphgate.cache.redis.errors",
		metric.WithDescription("Redis command failures by operation"))
	_ = err

	return s
}

// Health returns the current connection state.
func (s *Store) Health() Health {
	return Health(s.health.Load())
}

// Get implements cache.Store. Any failure, including a down
// connection, is reported as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s.Health() != Healthy {
		return nil, false
	}

	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.commandFailed(ctx, "get", err)
		}
		return nil, false
	}
	return v, true
}

// Put implements cache.Store. Writes are dropped while the connection
// is down; the tier above treats L2 as best effort.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.Health() != Healthy {
		return nil
	}

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		s.commandFailed(ctx, "set", err)
		return fmt.Errorf("graphgate/redis: put %s: %w", key, err)
	}
	return nil
}

// Delete implements cache.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.Health() != Healthy {
		return nil
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.commandFailed(ctx, "del", err)
		return fmt.Errorf("graphgate/redis: delete %s: %w", key, err)
	}
	return nil
}

// Close stops the background health probe. The Redis client itself is
// owned by the caller.
func (s *Store) Close() error {
	s.probeCancel()
	s.probeWG.Wait()
	return nil
}

// commandFailed records the failure and moves the store into the
// degraded state, starting the recovery probe if one is not running.
// A cancelled caller context says nothing about the connection, so it
// is counted but never triggers the degraded transition.
func (s *Store) commandFailed(ctx context.Context, op string, err error) {
	s.errorCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))

	if errors.Is(err, context.Canceled) {
		return
	}

	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	if s.probing {
		return
	}
	s.probing = true
	s.health.Store(int32(Reconnecting))

	s.logger.Warn("redis connection lost, probing for recovery",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)

	s.probeWG.Add(1)
	go s.probeLoop()
}

// probeLoop pings Redis with backoff until it answers or the store is
// closed.
func (s *Store) probeLoop() {
	defer s.probeWG.Done()

	for attempt := 1; ; attempt++ {
		select {
		case <-s.probeCtx.Done():
			return
		case <-time.After(s.backoff.Delay(attempt)):
		}

		pingCtx, cancel := context.WithTimeout(s.probeCtx, 2*time.Second)
		err := s.ping(pingCtx)
		cancel()

		if err == nil {
			s.probeMu.Lock()
			s.probing = false
			s.health.Store(int32(Healthy))
			s.probeMu.Unlock()

			s.logger.Info("redis connection recovered",
				slog.Int("attempts", attempt),
			)
			return
		}

		if attempt == unresponsiveAfter {
			s.health.Store(int32(Unresponsive))
			s.logger.Warn("redis unresponsive",
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
		}
	}
}
