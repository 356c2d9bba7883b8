package limiter

import (
	"context"
	"errors"
	"time"
)

// ErrBadReply is returned when the store answers with something other than
// the {allowed, tokens} pair.
var ErrBadReply = errors.New("invalid bucket store reply")

// TakeRequest carries the arguments of one atomic bucket evaluation.
type TakeRequest struct {
	Capacity   int64
	RefillRate float64
	Requested  int64
	NowMicros  int64
	TTL        time.Duration
}

// TakeResult is the outcome of the atomic step.
type TakeResult struct {
	Allowed bool
	Tokens  float64
}

// BucketStore performs the refill, admission test and write-back for one
// bucket key as a single atomic step. Errors are returned unchanged.
type BucketStore interface {
	Take(ctx context.Context, key string, req TakeRequest) (TakeResult, error)
	Ping(ctx context.Context) error
	Close() error
}

func ttlSeconds(ttl time.Duration) int64 {
	s := int64(ttl / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
