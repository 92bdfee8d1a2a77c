// Package cancellation provides cooperative cancellation tokens for
// compute jobs. Cancellation is honored only at explicit checkpoints
// inside running work, never preemptively: long-running payloads call
// Token.Check at bounded intervals and stop when it returns an error.
//
// A token combines two signals: the originating request's context
// (client disconnect) and an optional deadline. Deadlines are applied
// in one of two modes. ModeEnforce aborts the job at the next
// checkpoint after the deadline passes. ModeMeasure lets the job run
// to completion and only records that the deadline was exceeded, which
// exists to evaluate the impact of enforcement before committing to it.
package cancellation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Mode selects how a token's deadline is applied.
type Mode string

const (
	// ModeEnforce aborts the job at the first checkpoint past the deadline.
	ModeEnforce Mode = "enforce"
	// ModeMeasure records deadline overruns without aborting execution.
	ModeMeasure Mode = "measure"
)

// ParseMode converts a configuration string into a Mode.
// Unknown values fall back to ModeMeasure, the non-destructive default.
func ParseMode(s string) Mode {
	if Mode(s) == ModeEnforce {
		return ModeEnforce
	}
	return ModeMeasure
}

var (
	// ErrCancelled is returned by Check when the originating request
	// no longer wants the result (disconnect or explicit cancel).
	ErrCancelled = errors.New("cancellation: job cancelled by originator")

	// ErrDeadlineExceeded is returned by Check in enforce mode when the
	// job's deadline has passed.
	ErrDeadlineExceeded = errors.New("cancellation: job deadline exceeded")
)

// Token is the cooperative cancellation handle carried by a job.
// It is shared read-mostly between the originating request and the
// worker executing the job; only the originator ever cancels it.
type Token struct {
	ctx         context.Context
	mode        Mode
	deadline    time.Time
	hasDeadline bool

	// exceeded flips once when a measure-mode checkpoint observes the
	// deadline in the past.
	exceeded atomic.Bool

	// onExceeded is invoked at most once, from the checkpoint that
	// first observes the overrun. Used to record metrics.
	onExceeded func()
}

// TokenOption configures a Token.
type TokenOption func(*Token)

// WithDeadline sets an absolute deadline on the token.
func WithDeadline(t time.Time) TokenOption {
	return func(tok *Token) {
		tok.deadline = t
		tok.hasDeadline = true
	}
}

// WithTimeout sets a deadline relative to token creation.
// A non-positive timeout leaves the token without a deadline.
func WithTimeout(d time.Duration) TokenOption {
	return func(tok *Token) {
		if d > 0 {
			tok.deadline = time.Now().Add(d)
			tok.hasDeadline = true
		}
	}
}

// WithExceededHook sets a callback fired once when a measure-mode
// checkpoint first observes the deadline in the past.
func WithExceededHook(fn func()) TokenOption {
	return func(tok *Token) { tok.onExceeded = fn }
}

// NewToken creates a token tied to the originating request's context.
func NewToken(ctx context.Context, mode Mode, opts ...TokenOption) *Token {
	tok := &Token{ctx: ctx, mode: mode}
	for _, opt := range opts {
		opt(tok)
	}
	return tok
}

// Background returns a token that is never cancelled and has no
// deadline. Used by warm-up jobs, which have no originating request.
func Background() *Token {
	return &Token{ctx: context.Background(), mode: ModeMeasure}
}

// Check is the cooperative checkpoint. It returns ErrCancelled when
// the originator has gone away, ErrDeadlineExceeded when the deadline
// passed under ModeEnforce, and nil otherwise. Under ModeMeasure a
// passed deadline is recorded (once) and execution continues.
func (t *Token) Check() error {
	select {
	case <-t.ctx.Done():
		return ErrCancelled
	default:
	}

	if t.hasDeadline && time.Now().After(t.deadline) {
		if t.mode == ModeEnforce {
			return ErrDeadlineExceeded
		}
		if t.exceeded.CompareAndSwap(false, true) && t.onExceeded != nil {
			t.onExceeded()
		}
	}

	return nil
}

// Cancelled reports whether the originator has already gone away.
// The worker pool consults this before starting execution so that
// jobs whose requester disconnected while queued are abandoned
// without wasting compute.
func (t *Token) Cancelled() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Exceeded reports whether a measure-mode checkpoint has observed the
// deadline in the past.
func (t *Token) Exceeded() bool { return t.exceeded.Load() }

// Mode returns the token's deadline mode.
func (t *Token) Mode() Mode { return t.mode }

// Deadline returns the token's deadline and whether one is set.
func (t *Token) Deadline() (time.Time, bool) { return t.deadline, t.hasDeadline }

// IsCancellation reports whether err is one of the token errors, i.e.
// the job was abandoned rather than having failed on its own.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrDeadlineExceeded)
}
