package job

import (
	"context"
	"time"

	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/id"
	"github.com/graphgate/graphgate/queue"
)

// Kind identifies the type of CPU-bound work a job performs.
// The set is closed: execution and metric sites switch over it
// exhaustively.
type Kind string

const (
	// KindParse parses an operation document.
	KindParse Kind = "parse"
	// KindValidate parses and validates an operation against the schema.
	KindValidate Kind = "validate"
	// KindPlan produces a query plan for an operation.
	KindPlan Kind = "plan"
	// KindIntrospect answers an introspection operation.
	KindIntrospect Kind = "introspect"
	// KindParseWarmup is KindParse submitted by the warm-up
	// orchestrator after a reload.
	KindParseWarmup Kind = "parse_warmup"
	// KindPlanWarmup is KindPlan submitted by the warm-up orchestrator
	// after a reload.
	KindPlanWarmup Kind = "plan_warmup"
)

// Kinds lists every job kind, for metric registration and tests.
func Kinds() []Kind {
	return []Kind{
		KindParse, KindValidate, KindPlan, KindIntrospect,
		KindParseWarmup, KindPlanWarmup,
	}
}

// Priority returns the scheduling band for this kind. Live-request
// work always outranks warm-up work, and planning (the most expensive
// job, with a caller blocked on it) outranks everything.
func (k Kind) Priority() queue.Priority {
	switch k {
	case KindPlan:
		return queue.P8
	case KindValidate:
		return queue.P5
	case KindParse:
		return queue.P4
	case KindIntrospect:
		return queue.P3
	case KindPlanWarmup:
		return queue.P2
	case KindParseWarmup:
		return queue.P1
	default:
		return queue.MinPriority
	}
}

// IsWarmup reports whether this kind was submitted by the warm-up
// orchestrator rather than a live request.
func (k Kind) IsWarmup() bool {
	return k == KindParseWarmup || k == KindPlanWarmup
}

// Outcome classifies how a job ended, for metrics and caller logic.
type Outcome string

const (
	// OutcomeExecutedOK means the payload ran and returned a value.
	OutcomeExecutedOK Outcome = "executed_ok"
	// OutcomeExecutedError means the payload ran and failed on its own
	// terms (e.g. a syntax error) — not a scheduler fault.
	OutcomeExecutedError Outcome = "executed_error"
	// OutcomeChannelError means internal result plumbing failed.
	OutcomeChannelError Outcome = "channel_error"
	// OutcomeRejectedQueueFull means admission-time backpressure.
	OutcomeRejectedQueueFull Outcome = "rejected_queue_full"
	// OutcomeAbandoned means the job was cancelled before or during
	// execution.
	OutcomeAbandoned Outcome = "abandoned"
)

// Payload is the unit of CPU-bound work. It must not perform blocking
// I/O. Long-running payloads poll tok at bounded intervals and stop
// when it returns an error.
type Payload func(ctx context.Context, tok *cancellation.Token) (any, error)

// Result is delivered exactly once on Job.Done.
type Result struct {
	Value   any
	Outcome Outcome
	Err     error
}

// Job is a unit of CPU-bound work with a declared kind and priority.
type Job struct {
	ID         id.JobID
	Kind       Kind
	Priority   queue.Priority
	EnqueuedAt time.Time
	Payload    Payload
	Token      *cancellation.Token

	// Done receives the single Result. Buffered so the worker never
	// blocks delivering it.
	Done chan Result
}

// New creates a job ready for submission. The token may not be nil;
// jobs without an originating request use cancellation.Background().
func New(kind Kind, payload Payload, tok *cancellation.Token) *Job {
	if tok == nil {
		tok = cancellation.Background()
	}
	return &Job{
		ID:         id.NewJobID(),
		Kind:       kind,
		Priority:   kind.Priority(),
		EnqueuedAt: time.Now(),
		Payload:    payload,
		Token:      tok,
		Done:       make(chan Result, 1),
	}
}

// Deliver sends the result, dropping it if one was already delivered.
// The Done channel is buffered with capacity 1, so the first delivery
// never blocks and later ones fall through to default.
func (j *Job) Deliver(r Result) {
	select {
	case j.Done <- r:
	default:
	}
}
