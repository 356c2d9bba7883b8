package limiter

import (
	"context"
	"math"
	"time"

	"github.com/manenim/ratelimitd/pkg/clock"
	"github.com/manenim/ratelimitd/pkg/metrics"
	"github.com/rs/zerolog"
)

// Engine evaluates token-bucket admissions against a BucketStore. It holds no
// bucket state of its own and is safe for concurrent use.
type Engine struct {
	store    BucketStore
	counters *metrics.Counters
	clock    clock.Clock
	prefix   string
	timeout  time.Duration
	ttl      time.Duration
	log      zerolog.Logger
}

// NewEngine constructs an Engine over store.
func NewEngine(store BucketStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		counters: metrics.NewCounters(),
		clock:    clock.System{},
		prefix:   DefaultPrefix,
		timeout:  DefaultTimeout,
		ttl:      DefaultTTL,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Counters returns the decision counters updated by Evaluate.
func (e *Engine) Counters() *metrics.Counters {
	return e.counters
}

// Key returns the store key of a client's bucket.
func (e *Engine) Key(clientID string) string {
	return e.prefix + clientID
}

// Ping checks that the bucket store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.Ping(ctx)
}

// Evaluate decides whether clientID may consume p.Requested tokens.
//
// The only error is ErrInvalidPolicy. When the store fails or exceeds the
// engine timeout the request is admitted with a full residual and
// Decision.FailOpen set; only the total counter moves in that case.
//
// Cancellation of ctx is ignored so that a departing caller cannot turn a
// decision into a fail-open.
func (e *Engine) Evaluate(ctx context.Context, clientID string, p Policy) (Decision, error) {
	if err := p.validate(clientID); err != nil {
		return Decision{}, err
	}
	e.counters.IncTotal()

	key := e.Key(clientID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	res, err := e.store.Take(ctx, key, TakeRequest{
		Capacity:   p.Capacity,
		RefillRate: p.RefillRate,
		Requested:  p.Requested,
		NowMicros:  e.clock.NowMicros(),
		TTL:        e.ttl,
	})
	if err != nil {
		e.logger(ctx).Warn().Err(err).Str("key", key).Msg("bucket store failed, admitting request")
		return Decision{
			Allowed:   true,
			Remaining: float64(p.Capacity),
			FailOpen:  true,
		}, nil
	}

	if res.Allowed {
		e.counters.IncAllowed()
	} else {
		e.counters.IncDenied()
	}

	remaining := math.Max(0, math.Min(float64(p.Capacity), res.Tokens))
	return Decision{
		Allowed:    res.Allowed,
		Remaining:  remaining,
		RetryAfter: p.retryAfter(remaining),
	}, nil
}

// logger prefers the request-scoped logger installed by the HTTP layer.
func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.log
}
