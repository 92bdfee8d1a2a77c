// Package queue implements the bounded ageing priority queue that feeds
// the compute worker pool.
//
// Items are enqueued at one of eight priority bands (P1 lowest .. P8
// highest) and dequeued highest band first, FIFO within a band. To
// prevent starvation under continuous high-priority load, every item's
// effective priority is promoted one band at a time as it ages: an item
// that has waited longer than the promotion age in its current band is
// moved up during the next promotion pass. An item queued long enough
// always reaches P8.
//
// The queue is bounded. Send never blocks: when the queue is at
// capacity it returns [graphgate.ErrQueueFull] immediately so callers
// can fail fast instead of accumulating latency. Recv blocks until an
// item is available or the queue is closed.
//
// All synchronization is a single mutex with a condition variable.
// Hold times are microseconds (pointer moves between slices), so a
// lightweight lock outperforms channel-based or async-aware fairness
// machinery here.
//
//	q := queue.New[*job.Job](4000)
//	if err := q.Send(queue.P8, j); err != nil { ... } // queue full
//	item, band, ok := q.Recv()                        // blocks
package queue
