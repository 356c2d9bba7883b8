package limiter

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPolicy is returned by Engine.Evaluate when the client id or the
// policy parameters are out of range. Nothing is counted or stored.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is chosen by the caller on every evaluation and is never persisted.
type Policy struct {
	Capacity   int64   // maximum tokens the bucket can hold
	RefillRate float64 // tokens added per second
	Requested  int64   // tokens consumed on admission; 0 only refills
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed    bool
	Remaining  float64 // bucket level after the decision, fractional
	RetryAfter time.Duration
	FailOpen   bool // the store was unreachable and the request was admitted unchecked
}

// RetryAfterMillis returns the retry hint in whole milliseconds.
func (d Decision) RetryAfterMillis() int64 {
	return d.RetryAfter.Milliseconds()
}

// Satisfiable reports whether the policy can ever admit its request.
func (p Policy) Satisfiable() bool {
	return p.Requested <= p.Capacity
}

func (p Policy) validate(clientID string) error {
	switch {
	case clientID == "":
		return fmt.Errorf("%w: client id must not be empty", ErrInvalidPolicy)
	case p.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidPolicy, p.Capacity)
	case math.IsNaN(p.RefillRate) || math.IsInf(p.RefillRate, 0) || p.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be a positive number, got %v", ErrInvalidPolicy, p.RefillRate)
	case p.Requested < 0:
		return fmt.Errorf("%w: requested tokens must not be negative, got %d", ErrInvalidPolicy, p.Requested)
	}
	return nil
}

// maxRetryAfter is the largest whole-millisecond hint a time.Duration holds.
const maxRetryAfter = math.MaxInt64 / time.Millisecond * time.Millisecond

// retryAfter is one token's refill interval while the bucket is below
// capacity. Unsatisfiable requests get 0: no amount of waiting admits them.
func (p Policy) retryAfter(remaining float64) time.Duration {
	if !p.Satisfiable() || remaining >= float64(p.Capacity) {
		return 0
	}
	ms := math.Round(1000 / p.RefillRate)
	if ms >= float64(maxRetryAfter/time.Millisecond) {
		return maxRetryAfter
	}
	return time.Duration(ms) * time.Millisecond
}
