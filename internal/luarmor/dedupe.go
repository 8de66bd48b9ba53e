package luarmor

import (
	"context"
	"sync"
)

// flightGroup collapses concurrent operations that share a logical key into
// one execution, fanning the single outcome out to every caller. Entries are
// cleared when the owning call settles, success or failure, so late arrivals
// start fresh.
type flightGroup struct {
	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	done chan struct{}
	val  any
	err  error
}

func newFlightGroup() *flightGroup {
	return &flightGroup{flights: make(map[string]*flight)}
}

// Do runs fn under key, or joins an identical in-flight call. The second
// return reports whether the result was shared from another caller's flight.
func (g *flightGroup) Do(ctx context.Context, key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err, true
		case <-ctx.Done():
			return nil, ctx.Err(), true
		}
	}

	f := &flight{done: make(chan struct{})}
	g.flights[key] = f
	g.mu.Unlock()

	// The entry must be cleared however fn ends, or one failure would wedge
	// the key forever.
	defer func() {
		close(f.done)
		g.mu.Lock()
		delete(g.flights, key)
		g.mu.Unlock()
	}()

	f.val, f.err = fn()
	return f.val, f.err, false
}

// doFlight is a typed wrapper over flightGroup.Do.
func doFlight[T any](g *flightGroup, ctx context.Context, key string, fn func() (T, error)) (T, error, bool) {
	v, err, shared := g.Do(ctx, key, func() (any, error) {
		return fn()
	})
	var zero T
	if v == nil {
		return zero, err, shared
	}
	typed, ok := v.(T)
	if !ok {
		return zero, err, shared
	}
	return typed, err, shared
}
