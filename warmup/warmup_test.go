package warmup_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/graphgate/graphgate/operation"
	"github.com/graphgate/graphgate/warmup"
)

func TestHistoryTopOrdersByFrequency(t *testing.T) {
	h := warmup.NewHistory(100)

	hot := operation.Operation{Query: `{ a }`}
	warm := operation.Operation{Query: `{ b }`}
	cold := operation.Operation{Query: `{ c }`}

	for i := 0; i < 5; i++ {
		h.Record(hot)
	}
	for i := 0; i < 3; i++ {
		h.Record(warm)
	}
	h.Record(cold)

	top := h.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d operations", len(top))
	}
	if top[0].Query != hot.Query {
		t.Errorf("Top(2)[0].Query = %q, want %q", top[0].Query, hot.Query)
	}
	if top[1].Query != warm.Query {
		t.Errorf("Top(2)[1].Query = %q, want %q", top[1].Query, warm.Query)
	}
}

func TestHistoryTopFewerThanRequested(t *testing.T) {
	h := warmup.NewHistory(100)
	h.Record(operation.Operation{Query: `{ a }`})

	if got := h.Top(10); len(got) != 1 {
		t.Errorf("Top(10) returned %d operations, want 1", len(got))
	}
}

func TestHistoryBounded(t *testing.T) {
	h := warmup.NewHistory(3)

	// A frequently seen operation must survive eviction pressure.
	hot := operation.Operation{Query: `{ hot }`}
	for i := 0; i < 10; i++ {
		h.Record(hot)
	}

	for i := 0; i < 20; i++ {
		h.Record(operation.Operation{Query: fmt.Sprintf(`{ q%d }`, i)})
	}

	if got := h.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	found := false
	for _, op := range h.Top(3) {
		if op.Query == hot.Query {
			found = true
		}
	}
	if !found {
		t.Error("hot operation evicted, want it retained")
	}
}

// fakeWarmer records warmed operations and can fail selected queries.
type fakeWarmer struct {
	mu     sync.Mutex
	warmed []operation.Operation
	fail   map[string]bool
}

func (f *fakeWarmer) Warm(_ context.Context, op operation.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = append(f.warmed, op)
	if f.fail[op.Query] {
		return errors.New("unplannable")
	}
	return nil
}

func (f *fakeWarmer) queries() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, op := range f.warmed {
		out[op.Query]++
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSchemaChangedWarmsHistoryAndAllowlist(t *testing.T) {
	h := warmup.NewHistory(100)
	h.Record(operation.Operation{Query: `{ traffic }`})

	fw := &fakeWarmer{}
	o := warmup.NewOrchestrator(fw, h,
		warmup.WithLogger(discardLogger()),
		warmup.WithAllowlist([]operation.Operation{{Query: `{ pinned }`}}),
		warmup.WithRate(10000),
	)

	if err := o.SchemaChanged(context.Background()); err != nil {
		t.Fatalf("SchemaChanged() error = %v", err)
	}

	got := fw.queries()
	for _, q := range []string{`{ traffic }`, `{ pinned }`} {
		if got[q] != 1 {
			t.Errorf("query %q warmed %d times, want 1", q, got[q])
		}
	}
}

func TestSchemaChangedDeduplicates(t *testing.T) {
	h := warmup.NewHistory(100)
	h.Record(operation.Operation{Query: `{ shared }`})

	fw := &fakeWarmer{}
	o := warmup.NewOrchestrator(fw, h,
		warmup.WithLogger(discardLogger()),
		warmup.WithAllowlist([]operation.Operation{{Query: `{ shared }`}}),
		warmup.WithRate(10000),
	)

	if err := o.SchemaChanged(context.Background()); err != nil {
		t.Fatalf("SchemaChanged() error = %v", err)
	}
	if got := fw.queries()[`{ shared }`]; got != 1 {
		t.Errorf("shared query warmed %d times, want 1", got)
	}
}

func TestSchemaChangedContinuesPastFailures(t *testing.T) {
	h := warmup.NewHistory(100)
	h.Record(operation.Operation{Query: `{ bad }`})
	h.Record(operation.Operation{Query: `{ good }`})

	fw := &fakeWarmer{fail: map[string]bool{`{ bad }`: true}}
	o := warmup.NewOrchestrator(fw, h,
		warmup.WithLogger(discardLogger()),
		warmup.WithRate(10000),
	)

	if err := o.SchemaChanged(context.Background()); err != nil {
		t.Fatalf("SchemaChanged() error = %v, want nil", err)
	}
	if got := fw.queries()[`{ good }`]; got != 1 {
		t.Errorf("good query warmed %d times, want 1", got)
	}
}

func TestSchemaChangedHonorsCount(t *testing.T) {
	h := warmup.NewHistory(100)
	for i := 0; i < 10; i++ {
		op := operation.Operation{Query: fmt.Sprintf(`{ q%d }`, i)}
		// Distinct frequencies make Top deterministic.
		for j := 0; j <= i; j++ {
			h.Record(op)
		}
	}

	fw := &fakeWarmer{}
	o := warmup.NewOrchestrator(fw, h,
		warmup.WithLogger(discardLogger()),
		warmup.WithCount(3),
		warmup.WithRate(10000),
	)

	if err := o.SchemaChanged(context.Background()); err != nil {
		t.Fatalf("SchemaChanged() error = %v", err)
	}

	fw.mu.Lock()
	warmed := len(fw.warmed)
	fw.mu.Unlock()
	if warmed != 3 {
		t.Errorf("warmed %d operations, want 3", warmed)
	}
}

func TestSchemaChangedEmptyBatch(t *testing.T) {
	fw := &fakeWarmer{}
	o := warmup.NewOrchestrator(fw, warmup.NewHistory(10),
		warmup.WithLogger(discardLogger()),
	)

	if err := o.SchemaChanged(context.Background()); err != nil {
		t.Fatalf("SchemaChanged() error = %v", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if len(fw.warmed) != 0 {
		t.Errorf("warmed %d operations from empty history, want 0", len(fw.warmed))
	}
}

// statefulWarmer also tracks schema state swaps.
type statefulWarmer struct {
	fakeWarmer
	mu2    sync.Mutex
	states []*operation.SchemaState
}

func (s *statefulWarmer) SetSchemaState(state *operation.SchemaState) {
	s.mu2.Lock()
	defer s.mu2.Unlock()
	s.states = append(s.states, state)
}

func TestReloadSwapsStateBeforeWarming(t *testing.T) {
	h := warmup.NewHistory(100)
	h.Record(operation.Operation{Query: `{ a }`})

	state, err := operation.NewSchemaState(`type Query { a: Int }`, "2.9")
	if err != nil {
		t.Fatalf("NewSchemaState() error = %v", err)
	}

	sw := &statefulWarmer{}
	o := warmup.NewOrchestrator(sw, h,
		warmup.WithLogger(discardLogger()),
		warmup.WithRate(10000),
	)

	ev := warmup.ReloadEvent{SchemaChanged: true, State: state}
	if err := o.Reload(context.Background(), ev); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	sw.mu2.Lock()
	states := len(sw.states)
	sw.mu2.Unlock()
	if states != 1 {
		t.Errorf("SetSchemaState called %d times, want 1", states)
	}
	if got := sw.queries()[`{ a }`]; got != 1 {
		t.Errorf("query warmed %d times, want 1", got)
	}
}

func TestReloadNoChangeIsNoop(t *testing.T) {
	fw := &fakeWarmer{}
	o := warmup.NewOrchestrator(fw, warmup.NewHistory(10),
		warmup.WithLogger(discardLogger()),
	)

	if err := o.Reload(context.Background(), warmup.ReloadEvent{}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if len(fw.warmed) != 0 {
		t.Errorf("warmed %d operations on no-change reload, want 0", len(fw.warmed))
	}
}
