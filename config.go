package graphgate

import (
	"runtime"
	"time"
)

// Config holds the configuration surface consumed by the compute core.
// It is owned by the embedding gateway; the core only reads it.
type Config struct {
	// Workers is the number of worker goroutines executing compute jobs.
	// Zero means one per available CPU.
	Workers int

	// QueueCapacityPerWorker bounds the job queue at
	// Workers * QueueCapacityPerWorker. Submissions beyond that are
	// rejected immediately rather than blocking the caller.
	QueueCapacityPerWorker int

	// PromotionInterval is how often queued jobs are considered for
	// age-based priority promotion.
	PromotionInterval time.Duration

	// PromotionAge is how long a job may wait in its current priority
	// band before being promoted one band up.
	PromotionAge time.Duration

	// L1MaxEntries bounds the in-process plan cache.
	L1MaxEntries int

	// L1TTL is the time-to-live for in-process cache entries.
	L1TTL time.Duration

	// L2TTL is the time-to-live for distributed cache entries.
	L2TTL time.Duration

	// WarmupCount is how many historical operations are re-planned
	// after a schema or configuration reload.
	WarmupCount int

	// WarmupRate limits warm-up job submissions per second.
	WarmupRate float64

	// CancellationMode selects how job deadlines are applied:
	// "enforce" aborts the job at the next checkpoint, "measure" only
	// records that the deadline was exceeded.
	CancellationMode string

	// PlanTimeout is the cancellation deadline applied to planning jobs.
	// Zero disables the deadline.
	PlanTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:                runtime.GOMAXPROCS(0),
		QueueCapacityPerWorker: 1000,
		PromotionInterval:      1 * time.Second,
		PromotionAge:           2 * time.Second,
		L1MaxEntries:           512,
		L1TTL:                  30 * time.Minute,
		L2TTL:                  48 * time.Hour,
		WarmupCount:            100,
		WarmupRate:             50,
		CancellationMode:       "measure",
		PlanTimeout:            0,
		ShutdownTimeout:        30 * time.Second,
	}
}
