package limiter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketSource string

// tokenBucketScript runs via EVALSHA and falls back to EVAL when the server's
// script cache is empty (for example after a Redis restart).
var tokenBucketScript = redis.NewScript(tokenBucketSource)

var redisTags = map[string]string{"store": "redis"}

// RedisStore is a BucketStore backed by Redis. Each bucket is a hash and every
// evaluation is a single Lua script run, so all service instances sharing the
// Redis observe one linearized counter per key.
type RedisStore struct {
	client   redis.UniversalClient
	recorder MetricsRecorder
}

// StoreOption configures a RedisStore.
type StoreOption func(*RedisStore)

// WithRecorder injects a metrics backend for store calls.
func WithRecorder(rec MetricsRecorder) StoreOption {
	return func(r *RedisStore) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRedisStore wraps a go-redis client. The client owns pooling and
// reconnection and is shared by all callers.
func NewRedisStore(client redis.UniversalClient, opts ...StoreOption) *RedisStore {
	r := &RedisStore{
		client:   client,
		recorder: &NoOpMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks connectivity and preloads the script into the server cache.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return tokenBucketScript.Load(ctx, r.client).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Take(ctx context.Context, key string, req TakeRequest) (TakeResult, error) {
	start := time.Now()
	r.recorder.Add("ratelimit.call", 1, redisTags)

	result, err := tokenBucketScript.Run(ctx, r.client, []string{key},
		req.Capacity,        // ARGV[1]
		req.RefillRate,      // ARGV[2]
		req.Requested,       // ARGV[3]
		req.NowMicros,       // ARGV[4]
		ttlSeconds(req.TTL), // ARGV[5]
	).Result()

	r.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), redisTags)
	if err != nil {
		r.recorder.Add("ratelimit.error", 1, redisTags)
		return TakeResult{}, err
	}

	res, err := parseReply(result)
	if err != nil {
		r.recorder.Add("ratelimit.error", 1, redisTags)
	}
	return res, err
}

func parseReply(result interface{}) (TakeResult, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return TakeResult{}, fmt.Errorf("%w: %v", ErrBadReply, result)
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return TakeResult{}, fmt.Errorf("%w: allowed flag %v", ErrBadReply, values[0])
	}
	tokens, ok := convertToFloat(values[1])
	if !ok {
		return TakeResult{}, fmt.Errorf("%w: tokens %v", ErrBadReply, values[1])
	}

	return TakeResult{Allowed: allowed == 1, Tokens: tokens}, nil
}

func convertToFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
