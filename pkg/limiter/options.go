package limiter

import (
	"time"

	"github.com/manenim/ratelimitd/pkg/clock"
	"github.com/manenim/ratelimitd/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultPrefix  = "rate_limit:"
	DefaultTimeout = 250 * time.Millisecond
	DefaultTTL     = time.Hour
)

// Option configures an Engine.
type Option func(*Engine)

// WithPrefix sets the bucket key prefix (default "rate_limit:").
func WithPrefix(prefix string) Option {
	return func(e *Engine) {
		e.prefix = prefix
	}
}

// WithTimeout sets the deadline for a single store call. A call exceeding it
// fails open.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTTL sets the idle expiry applied to a bucket on every evaluation.
func WithTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d >= time.Second {
			e.ttl = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithCounters shares an existing set of decision counters.
func WithCounters(c *metrics.Counters) Option {
	return func(e *Engine) {
		if c != nil {
			e.counters = c
		}
	}
}
