// Package luarmor implements a resilient client for the Luarmor licensing
// API (v3). It layers per-attempt timeouts, bounded retries with exponential
// backoff and jitter, a circuit breaker, per-key rate-limit cooldowns,
// bounded-concurrency admission with priorities, in-flight request
// de-duplication and a two-tier (memory + persistent) cache around the
// provider's REST surface, and exposes typed operations that return a uniform
// Result shape instead of raw errors.
//
// The client is safe for concurrent use. Construct it once with NewClient and
// share it; every piece of mutable state (breaker counters, cooldown map,
// caches, queue accounting) lives on the Client so tests can use fresh
// instances.
package luarmor
