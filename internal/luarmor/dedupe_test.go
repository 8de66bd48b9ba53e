package luarmor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlightGroupCoalesces(t *testing.T) {
	g := newFlightGroup()

	var executions int64
	var shared int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err, wasShared := doFlight(g, context.Background(), "k", func() (string, error) {
				atomic.AddInt64(&executions, 1)
				time.Sleep(50 * time.Millisecond)
				return "value", nil
			})
			if err != nil || v != "value" {
				t.Errorf("doFlight = (%q, %v)", v, err)
			}
			if wasShared {
				atomic.AddInt64(&shared, 1)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&executions); n != 1 {
		t.Errorf("executions = %d, want 1", n)
	}
	if n := atomic.LoadInt64(&shared); n != 9 {
		t.Errorf("shared callers = %d, want 9", n)
	}
}

func TestFlightGroupClearsOnError(t *testing.T) {
	g := newFlightGroup()
	boom := errors.New("boom")

	_, err, _ := doFlight(g, context.Background(), "k", func() (string, error) {
		return "", boom
	})
	if err != boom {
		t.Fatalf("err = %v, want boom", err)
	}

	// The failed flight must not wedge the key.
	v, err, _ := doFlight(g, context.Background(), "k", func() (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Errorf("second flight = (%q, %v)", v, err)
	}
}

func TestFlightGroupClearsOnPanic(t *testing.T) {
	g := newFlightGroup()

	func() {
		defer func() { _ = recover() }()
		_, _, _ = doFlight(g, context.Background(), "k", func() (string, error) {
			panic("boom")
		})
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = doFlight(g, context.Background(), "k", func() (string, error) {
			return "ok", nil
		})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key wedged after a panicking flight")
	}
}

func TestFlightGroupWaiterHonorsContext(t *testing.T) {
	g := newFlightGroup()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _, _ = doFlight(g, context.Background(), "k", func() (string, error) {
			close(started)
			<-release
			return "slow", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err, wasShared := doFlight(g, ctx, "k", func() (string, error) {
		return "never", nil
	})
	if !wasShared {
		t.Error("waiter should have joined the in-flight call")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	close(release)
}
