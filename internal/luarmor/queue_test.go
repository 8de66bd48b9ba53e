package luarmor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueBoundsConcurrency(t *testing.T) {
	q := newRequestQueue(3)

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), PriorityNormal, func() error {
				cur := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestQueueDrainsByPriority(t *testing.T) {
	// One slot and a blocked head so the remaining items queue up before any
	// of them can be dispatched.
	q := newRequestQueue(1)

	release := make(chan struct{})
	headStarted := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), PriorityHigh, func() error {
			close(headStarted)
			<-release
			return nil
		})
	}()
	<-headStarted

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	enqueue := func(name string, p Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), p, func() error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			})
		}()
	}

	enqueue("low-1", PriorityLow)
	time.Sleep(10 * time.Millisecond)
	enqueue("normal", PriorityNormal)
	time.Sleep(10 * time.Millisecond)
	enqueue("high", PriorityHigh)
	time.Sleep(10 * time.Millisecond)
	enqueue("low-2", PriorityLow)
	time.Sleep(10 * time.Millisecond)

	if d := q.Depth(); d != 4 {
		t.Fatalf("Depth() = %d, want 4 queued behind the blocked head", d)
	}

	close(release)
	wg.Wait()

	want := []string{"high", "normal", "low-1", "low-2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestQueueAbandonedCaller(t *testing.T) {
	q := newRequestQueue(1)

	release := make(chan struct{})
	headStarted := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), PriorityNormal, func() error {
			close(headStarted)
			<-release
			return nil
		})
	}()
	<-headStarted

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Do(ctx, PriorityNormal, func() error { return nil })
	if err != context.Canceled {
		t.Errorf("Do with cancelled context = %v, want context.Canceled", err)
	}

	close(release)
}

func TestQueueRecoversPanic(t *testing.T) {
	q := newRequestQueue(1)
	err := q.Do(context.Background(), PriorityNormal, func() error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking request")
	}
}
