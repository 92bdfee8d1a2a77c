package queue

import (
	"sync"
	"time"

	"github.com/graphgate/graphgate"
)

// Priority is a scheduling band. Higher values are dequeued first.
type Priority int

// Priority bands, lowest to highest.
const (
	P1 Priority = iota + 1
	P2
	P3
	P4
	P5
	P6
	P7
	P8
)

// MinPriority and MaxPriority bound the valid band range.
const (
	MinPriority = P1
	MaxPriority = P8
)

const numBands = int(MaxPriority)

// String returns the band name ("P1".."P8") for metric attributes.
func (p Priority) String() string {
	switch p {
	case P1:
		return "P1"
	case P2:
		return "P2"
	case P3:
		return "P3"
	case P4:
		return "P4"
	case P5:
		return "P5"
	case P6:
		return "P6"
	case P7:
		return "P7"
	case P8:
		return "P8"
	default:
		return "unknown"
	}
}

// entry is a queued item plus the timestamps promotion needs.
type entry[T any] struct {
	value T
	// banded is when the entry entered its current band. Promotion
	// compares against this, not the original enqueue time, so each
	// band is climbed one promotion age at a time.
	banded time.Time
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	promotionInterval time.Duration
	promotionAge      time.Duration
}

// WithPromotionInterval sets how often queued items are considered for
// age-based promotion. The pass itself runs opportunistically inside
// Send/Recv under the queue lock.
func WithPromotionInterval(d time.Duration) Option {
	return func(o *options) { o.promotionInterval = d }
}

// WithPromotionAge sets how long an item may wait in its current band
// before moving up one band.
func WithPromotionAge(d time.Duration) Option {
	return func(o *options) { o.promotionAge = d }
}

// Queue is a bounded multi-band FIFO with age-based promotion.
// It is safe for concurrent use by any number of senders and receivers.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	bands    [numBands][]entry[T]
	size     int
	capacity int
	closed   bool

	promotionInterval time.Duration
	promotionAge      time.Duration
	lastPromotion     time.Time
}

// New creates a bounded queue. Capacity is the total number of queued
// items across all bands; it must be positive.
func New[T any](capacity int, opts ...Option) *Queue[T] {
	o := options{
		promotionInterval: 1 * time.Second,
		promotionAge:      2 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	q := &Queue[T]{
		capacity:          capacity,
		promotionInterval: o.promotionInterval,
		promotionAge:      o.promotionAge,
		lastPromotion:     time.Now(),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Send enqueues v at the given band. It never blocks: when the queue is
// at capacity it returns graphgate.ErrQueueFull immediately, and after
// Close it returns graphgate.ErrQueueClosed.
func (q *Queue[T]) Send(p Priority, v T) error {
	if p < MinPriority || p > MaxPriority {
		p = MinPriority
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return graphgate.ErrQueueClosed
	}
	if q.size >= q.capacity {
		return graphgate.ErrQueueFull
	}

	q.maybePromoteLocked(time.Now())

	band := int(p) - 1
	q.bands[band] = append(q.bands[band], entry[T]{value: v, banded: time.Now()})
	q.size++

	q.notEmpty.Signal()
	return nil
}

// Recv dequeues the highest effective-priority item, blocking until one
// is available. The returned Priority is the band the item was dequeued
// from, i.e. its effective priority after promotion. ok is false when
// the queue has been closed and drained.
func (q *Queue[T]) Recv() (v T, band Priority, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		// Closed and drained.
		return v, 0, false
	}

	q.maybePromoteLocked(time.Now())

	for i := numBands - 1; i >= 0; i-- {
		if len(q.bands[i]) == 0 {
			continue
		}
		e := q.bands[i][0]
		// Shift rather than re-slice forever so the backing array
		// does not pin dequeued items.
		copy(q.bands[i], q.bands[i][1:])
		q.bands[i] = q.bands[i][:len(q.bands[i])-1]
		q.size--
		return e.value, Priority(i + 1), true
	}

	// size said otherwise; unreachable unless internal accounting broke.
	return v, 0, false
}

// TryRecv is Recv without blocking. ok is false when the queue is empty.
func (q *Queue[T]) TryRecv() (v T, band Priority, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return v, 0, false
	}

	q.maybePromoteLocked(time.Now())

	for i := numBands - 1; i >= 0; i-- {
		if len(q.bands[i]) == 0 {
			continue
		}
		e := q.bands[i][0]
		copy(q.bands[i], q.bands[i][1:])
		q.bands[i] = q.bands[i][:len(q.bands[i])-1]
		q.size--
		return e.value, Priority(i + 1), true
	}
	return v, 0, false
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the configured bound.
func (q *Queue[T]) Capacity() int { return q.capacity }

// Close marks the queue closed, wakes all blocked receivers, and
// returns the items still queued so the caller can settle them
// (typically by reporting them abandoned). Subsequent Sends fail with
// graphgate.ErrQueueClosed.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	remaining := make([]T, 0, q.size)
	for i := numBands - 1; i >= 0; i-- {
		for _, e := range q.bands[i] {
			remaining = append(remaining, e.value)
		}
		q.bands[i] = nil
	}
	q.size = 0

	q.notEmpty.Broadcast()
	return remaining
}

// Promote runs a promotion pass immediately, regardless of the
// configured interval. Exposed for tests and for callers that drive
// promotion from their own ticker.
func (q *Queue[T]) Promote() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteLocked(time.Now())
}

// maybePromoteLocked runs a promotion pass if the interval has elapsed.
// Caller must hold q.mu.
func (q *Queue[T]) maybePromoteLocked(now time.Time) {
	if now.Sub(q.lastPromotion) < q.promotionInterval {
		return
	}
	q.promoteLocked(now)
}

// promoteLocked moves every item that has waited longer than the
// promotion age in its band up exactly one band. Bands are walked top
// down so an item moves at most once per pass; effective priority is
// therefore monotonically non-decreasing and bounded by P8.
// Caller must hold q.mu.
func (q *Queue[T]) promoteLocked(now time.Time) {
	q.lastPromotion = now

	for i := numBands - 2; i >= 0; i-- {
		band := q.bands[i]
		if len(band) == 0 {
			continue
		}

		// Entries are FIFO within a band, so aged entries form a
		// prefix: find where it ends.
		aged := 0
		for aged < len(band) && now.Sub(band[aged].banded) >= q.promotionAge {
			aged++
		}
		if aged == 0 {
			continue
		}

		for _, e := range band[:aged] {
			e.banded = now
			q.bands[i+1] = append(q.bands[i+1], e)
		}
		rest := band[aged:]
		copy(band, rest)
		q.bands[i] = band[:len(rest)]
	}
}
