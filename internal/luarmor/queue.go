package luarmor

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// Priority orders queued requests. Higher drains first; within a tier the
// queue is FIFO by enqueue order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// requestQueue bounds how many requests are simultaneously active against
// the provider, smoothing bursts into an ordered queue instead of a
// thundering herd.
type requestQueue struct {
	mu     sync.Mutex
	items  queueHeap
	seq    uint64
	active int
	max    int
}

type queueItem struct {
	priority Priority
	seq      uint64
	run      func()
}

func newRequestQueue(maxConcurrent int) *requestQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &requestQueue{max: maxConcurrent}
}

// Do enqueues fn and blocks until it has run or ctx is done. Queued but not
// yet started work is not cancelled; an abandoned caller's result is simply
// dropped.
func (q *requestQueue) Do(ctx context.Context, priority Priority, fn func() error) error {
	done := make(chan error, 1)
	item := &queueItem{
		priority: priority,
		// fn runs on a dispatch goroutine, so a panic there would escape the
		// caller's recover. Convert it to an error instead.
		run: func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in queued request: %v", r)
				}
			}()
			done <- fn()
		},
	}

	q.mu.Lock()
	item.seq = q.seq
	q.seq++
	heap.Push(&q.items, item)
	q.mu.Unlock()

	q.pump()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump dispatches the highest-priority, oldest item whenever a slot is free.
func (q *requestQueue) pump() {
	q.mu.Lock()
	for q.active < q.max && q.items.Len() > 0 {
		item := heap.Pop(&q.items).(*queueItem)
		q.active++
		go func(item *queueItem) {
			item.run()
			q.mu.Lock()
			q.active--
			q.mu.Unlock()
			q.pump()
		}(item)
	}
	q.mu.Unlock()
}

// Depth returns the number of queued (not yet dispatched) items.
func (q *requestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// ActiveCount returns the number of currently dispatched items.
func (q *requestQueue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

type queueHeap []*queueItem

func (h queueHeap) Len() int { return len(h) }

func (h queueHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h queueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *queueHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }

func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
