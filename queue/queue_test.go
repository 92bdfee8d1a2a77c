package queue_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/graphgate/graphgate"
	"github.com/graphgate/graphgate/queue"
)

func TestPriorityOrdering(t *testing.T) {
	q := queue.New[string](16)

	mustSend(t, q, queue.P1, "low")
	mustSend(t, q, queue.P8, "high")
	mustSend(t, q, queue.P4, "mid")
	mustSend(t, q, queue.P8, "high2")

	want := []string{"high", "high2", "mid", "low"}
	for _, w := range want {
		v, _, ok := q.TryRecv()
		if !ok {
			t.Fatalf("expected item %q, queue empty", w)
		}
		if v != w {
			t.Errorf("expected %q, got %q", w, v)
		}
	}
}

func TestFIFOWithinBand(t *testing.T) {
	q := queue.New[int](16)

	for i := range 5 {
		mustSend(t, q, queue.P4, i)
	}
	for i := range 5 {
		v, band, ok := q.TryRecv()
		if !ok {
			t.Fatal("queue drained early")
		}
		if v != i {
			t.Errorf("expected %d, got %d", i, v)
		}
		if band != queue.P4 {
			t.Errorf("expected band P4, got %v", band)
		}
	}
}

func TestCapacityRejection(t *testing.T) {
	// 4 workers x 1000 per worker, per the default sizing.
	const capacity = 4 * 1000
	q := queue.New[int](capacity)

	accepted, rejected := 0, 0
	for i := range capacity + 2000 {
		err := q.Send(queue.P8, i)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, graphgate.ErrQueueFull):
			rejected++
		default:
			t.Fatalf("unexpected send error: %v", err)
		}
	}

	if accepted != capacity {
		t.Errorf("expected exactly %d accepted, got %d", capacity, accepted)
	}
	if rejected != 2000 {
		t.Errorf("expected 2000 rejected, got %d", rejected)
	}

	// Already-admitted items are all still there.
	if q.Len() != capacity {
		t.Errorf("expected %d queued, got %d", capacity, q.Len())
	}
}

func TestPromotionReachesTopBand(t *testing.T) {
	q := queue.New[string](16,
		queue.WithPromotionInterval(time.Millisecond),
		queue.WithPromotionAge(time.Millisecond),
	)

	mustSend(t, q, queue.P1, "aged")

	// One pass per band below P8.
	for range 7 {
		time.Sleep(2 * time.Millisecond)
		q.Promote()
	}

	v, band, ok := q.TryRecv()
	if !ok || v != "aged" {
		t.Fatalf("expected the aged item, got %q ok=%v", v, ok)
	}
	if band != queue.P8 {
		t.Errorf("expected effective priority P8, got %v", band)
	}
}

func TestPromotionOvertakesFreshLowPriority(t *testing.T) {
	q := queue.New[string](16,
		queue.WithPromotionInterval(time.Millisecond),
		queue.WithPromotionAge(time.Millisecond),
	)

	mustSend(t, q, queue.P2, "old")
	time.Sleep(3 * time.Millisecond)
	q.Promote()
	mustSend(t, q, queue.P2, "fresh")

	v, band, ok := q.TryRecv()
	if !ok {
		t.Fatal("queue empty")
	}
	if v != "old" {
		t.Errorf("expected promoted item first, got %q", v)
	}
	if band <= queue.P2 {
		t.Errorf("expected band above P2, got %v", band)
	}
}

func TestRecvBlocksUntilSend(t *testing.T) {
	q := queue.New[int](4)

	got := make(chan int, 1)
	go func() {
		v, _, ok := q.Recv()
		if ok {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	mustSend(t, q, queue.P4, 42)

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake after Send")
	}
}

func TestCloseWakesReceiversAndReturnsRemainder(t *testing.T) {
	q := queue.New[int](16)
	mustSend(t, q, queue.P3, 1)
	mustSend(t, q, queue.P6, 2)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, _, ok := q.Recv(); !ok {
					return
				}
			}
		}()
	}

	// Give the receivers a chance to drain and block.
	time.Sleep(20 * time.Millisecond)
	remaining := q.Close()
	wg.Wait()

	if q.Len() != 0 {
		t.Errorf("expected empty queue after close, got %d", q.Len())
	}
	// Receivers may have consumed the items before Close; whatever was
	// left must have been handed back.
	if len(remaining) > 2 {
		t.Errorf("close returned %d items, more than were queued", len(remaining))
	}

	if err := q.Send(queue.P4, 3); !errors.Is(err, graphgate.ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed after close, got %v", err)
	}
}

func TestConcurrentSendRecv(t *testing.T) {
	const n = 500
	q := queue.New[int](n)

	var recvWg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool, n)

	for range 4 {
		recvWg.Add(1)
		go func() {
			defer recvWg.Done()
			for {
				v, _, ok := q.Recv()
				if !ok {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	var sendWg sync.WaitGroup
	for g := range 4 {
		sendWg.Add(1)
		go func() {
			defer sendWg.Done()
			for i := g * (n / 4); i < (g+1)*(n/4); i++ {
				p := queue.Priority(i%8 + 1)
				for q.Send(p, i) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	sendWg.Wait()
	for q.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
	q.Close()
	recvWg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct items received, got %d", n, len(seen))
	}
}

func mustSend[T any](t *testing.T, q *queue.Queue[T], p queue.Priority, v T) {
	t.Helper()
	if err := q.Send(p, v); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
}
