package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/graphgate/graphgate/cancellation"
	"github.com/graphgate/graphgate/job"
	"github.com/graphgate/graphgate/middleware"
	"github.com/graphgate/graphgate/queue"
	"github.com/graphgate/graphgate/worker"
)

func setupTestPool(t *testing.T, workers int) (*worker.Pool, *queue.Queue[*job.Job]) {
	t.Helper()
	logger := slog.Default()
	q := queue.New[*job.Job](workers * 100)
	executor := worker.NewExecutor(logger, middleware.Recover(logger))
	pool := worker.NewPool(q, executor, logger,
		worker.WithWorkers(workers),
		worker.WithPromotionInterval(10*time.Millisecond),
	)
	return pool, q
}

func submit(t *testing.T, q *queue.Queue[*job.Job], j *job.Job) {
	t.Helper()
	if err := q.Send(j.Priority, j); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
}

func waitResult(t *testing.T, j *job.Job) job.Result {
	t.Helper()
	select {
	case r := <-j.Done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
		return job.Result{}
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _ := setupTestPool(t, 2)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	// Double start should be no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	// Double stop should be no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ExecutesJob(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	j := job.New(job.KindParse, func(_ context.Context, _ *cancellation.Token) (any, error) {
		return "parsed", nil
	}, nil)
	submit(t, q, j)

	r := waitResult(t, j)
	if r.Outcome != job.OutcomeExecutedOK {
		t.Errorf("expected executed_ok, got %s (%v)", r.Outcome, r.Err)
	}
	if r.Value != "parsed" {
		t.Errorf("expected payload value, got %v", r.Value)
	}
}

func TestPool_PayloadErrorIsExecutedError(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	boom := errors.New("syntax error at line 3")
	j := job.New(job.KindParse, func(_ context.Context, _ *cancellation.Token) (any, error) {
		return nil, boom
	}, nil)
	submit(t, q, j)

	r := waitResult(t, j)
	if r.Outcome != job.OutcomeExecutedError {
		t.Errorf("expected executed_error, got %s", r.Outcome)
	}
	if !errors.Is(r.Err, boom) {
		t.Errorf("expected payload error, got %v", r.Err)
	}
}

func TestPool_SurvivesPanickingPayload(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	bad := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
		panic("bad plan")
	}, nil)
	submit(t, q, bad)

	r := waitResult(t, bad)
	if r.Outcome != job.OutcomeExecutedError {
		t.Errorf("expected executed_error for panic, got %s", r.Outcome)
	}

	// The single worker must still be alive to run the next job.
	good := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
		return "ok", nil
	}, nil)
	submit(t, q, good)

	if r := waitResult(t, good); r.Outcome != job.OutcomeExecutedOK {
		t.Errorf("worker did not survive the panic: %s", r.Outcome)
	}
}

func TestPool_AbandonsCancelledJobWithoutRunning(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // requester is already gone

	var ran atomic.Bool
	j := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
		ran.Store(true)
		return nil, nil
	}, cancellation.NewToken(ctx, cancellation.ModeEnforce))
	submit(t, q, j)

	r := waitResult(t, j)
	if r.Outcome != job.OutcomeAbandoned {
		t.Errorf("expected abandoned, got %s", r.Outcome)
	}
	if ran.Load() {
		t.Error("cancelled job should not have executed")
	}
}

func TestPool_EnforceDeadlineAbandons(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	tok := cancellation.NewToken(context.Background(), cancellation.ModeEnforce,
		cancellation.WithTimeout(5*time.Millisecond),
	)
	j := job.New(job.KindPlan, func(_ context.Context, tok *cancellation.Token) (any, error) {
		for {
			time.Sleep(2 * time.Millisecond)
			if err := tok.Check(); err != nil {
				return nil, err
			}
		}
	}, tok)
	submit(t, q, j)

	r := waitResult(t, j)
	if r.Outcome != job.OutcomeAbandoned {
		t.Errorf("expected abandoned under enforce mode, got %s", r.Outcome)
	}
}

func TestPool_MeasureDeadlineCompletes(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	startStop(t, pool)

	tok := cancellation.NewToken(context.Background(), cancellation.ModeMeasure,
		cancellation.WithTimeout(time.Millisecond),
	)
	j := job.New(job.KindPlan, func(_ context.Context, tok *cancellation.Token) (any, error) {
		// Run well past the deadline, checking as we go.
		for range 5 {
			time.Sleep(2 * time.Millisecond)
			if err := tok.Check(); err != nil {
				return nil, err
			}
		}
		return "late but done", nil
	}, tok)
	submit(t, q, j)

	r := waitResult(t, j)
	if r.Outcome != job.OutcomeExecutedOK {
		t.Errorf("expected executed_ok under measure mode, got %s (%v)", r.Outcome, r.Err)
	}
	if !tok.Exceeded() {
		t.Error("expected the deadline overrun to be recorded")
	}
}

func TestPool_StopAbandonsQueuedJobs(t *testing.T) {
	pool, q := setupTestPool(t, 1)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Occupy the single worker so further jobs stay queued.
	block := make(chan struct{})
	busy := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
		<-block
		return nil, nil
	}, nil)
	submit(t, q, busy)

	time.Sleep(20 * time.Millisecond)
	queued := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
		return nil, nil
	}, nil)
	submit(t, q, queued)

	stopDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopDone <- pool.Stop(ctx)
	}()

	r := waitResult(t, queued)
	if r.Outcome != job.OutcomeAbandoned {
		t.Errorf("expected queued job abandoned on shutdown, got %s", r.Outcome)
	}

	close(block)
	if err := <-stopDone; err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
}

func TestPool_ParallelExecution(t *testing.T) {
	pool, q := setupTestPool(t, 4)
	startStop(t, pool)

	const n = 4
	start := time.Now()
	jobs := make([]*job.Job, 0, n)
	for range n {
		j := job.New(job.KindPlan, func(_ context.Context, _ *cancellation.Token) (any, error) {
			time.Sleep(100 * time.Millisecond)
			return nil, nil
		}, nil)
		submit(t, q, j)
		jobs = append(jobs, j)
	}
	for _, j := range jobs {
		waitResult(t, j)
	}

	// Four 100ms jobs on four workers should take ~100ms, not ~400ms.
	if elapsed := time.Since(start); elapsed > 350*time.Millisecond {
		t.Errorf("jobs did not run in parallel: took %v", elapsed)
	}
}

func startStop(t *testing.T, pool *worker.Pool) {
	t.Helper()
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
}
