package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) BucketStore
}

// stores lists every backend that must behave identically.
func stores() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) BucketStore { return NewMemoryStore() }},
		{"redis", func(t *testing.T) BucketStore {
			_, client := newMiniredis(t)
			return NewRedisStore(client)
		}},
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// failingStore always errors, like an unreachable Redis.
type failingStore struct{ err error }

func (f failingStore) Take(context.Context, string, TakeRequest) (TakeResult, error) {
	return TakeResult{}, f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }
func (f failingStore) Close() error               { return nil }

// blockingStore never answers before the context ends.
type blockingStore struct{}

func (blockingStore) Take(ctx context.Context, _ string, _ TakeRequest) (TakeResult, error) {
	<-ctx.Done()
	return TakeResult{}, ctx.Err()
}
func (blockingStore) Ping(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (blockingStore) Close() error                   { return nil }

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// newEngine gives store calls a generous deadline so slow CI machines do not
// turn ordinary decisions into fail-opens.
func newEngine(store BucketStore, opts ...Option) *Engine {
	return NewEngine(store, append([]Option{WithTimeout(5 * time.Second)}, opts...)...)
}
