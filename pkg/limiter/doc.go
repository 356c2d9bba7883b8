// Package limiter provides distributed token-bucket admission backed by a
// shared key-value store.
//
// The primary entry point is Engine.Evaluate:
//
//	dec, err := engine.Evaluate(ctx, "client-42", limiter.Policy{
//		Capacity:   100,
//		RefillRate: 10,
//		Requested:  1,
//	})
//
// The returned Decision reports whether the request is admitted, the bucket
// level after the decision (fractional), and a retry hint.
//
// # Overview
//
//   - Each client id owns one bucket holding up to Capacity tokens.
//   - The bucket refills continuously at RefillRate tokens per second.
//   - An evaluation consumes Requested tokens when that many are available.
//
// The policy is supplied by the caller on every call and never stored.
// Changing it between calls is allowed; a smaller capacity caps the bucket on
// the next evaluation.
//
// # Atomicity
//
// Read, refill, admission test and write-back happen in one atomic step inside
// the store. RedisStore ships the step as the embedded token_bucket.lua script,
// so any number of service instances sharing one Redis observe a single
// linearized counter per client. The engine never reads and then writes.
//
// # Backends
//
//   - RedisStore: production backend. Uses go-redis Script (EVALSHA with an
//     EVAL fallback), so a flushed script cache heals itself.
//   - MemoryStore: the same algorithm under a mutex, local to one process.
//     Useful for tests and single-instance deployments.
//
// # Failure Policy
//
// Store errors, including a call that outlives the engine timeout, fail open:
// the request is admitted with Remaining equal to Capacity and FailOpen set.
// Only the total counter is incremented, so allowed+denied < total reveals the
// degraded path. Invalid input is rejected with ErrInvalidPolicy before anything
// is counted.
//
// # Decision Semantics
//
//   - Allowed reports whether the tokens were consumed.
//   - Remaining is the post-decision level; on denial it is the refilled but
//     untouched level, so callers see fractional progress.
//   - RetryAfter is one token's refill interval, round(1000/RefillRate) ms,
//     while the bucket is not full, and 0 when it is full or when Requested
//     exceeds Capacity (waiting never helps). It is a hint: competing callers
//     may take the next token first.
//
// # Storage Details
//
// Each bucket is a Redis hash at "rate_limit:{client_id}" (prefix configurable
// with WithPrefix) holding:
//
//   - "tokens": current level (real number)
//   - "last_refill": time of the last evaluation, microseconds since the epoch
//
// Every evaluation resets the key TTL (one hour by default). Missing keys are
// full buckets. A clock that steps backward refills nothing, and last_refill
// never moves backward.
//
// # Configuration
//
//	engine := limiter.NewEngine(limiter.NewRedisStore(client, limiter.WithRecorder(rec)),
//		limiter.WithPrefix("rate_limit:"),
//		limiter.WithTimeout(250*time.Millisecond),
//		limiter.WithTTL(time.Hour),
//		limiter.WithLogger(logger),
//	)
package limiter
