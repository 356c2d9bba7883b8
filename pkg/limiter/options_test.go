package limiter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/manenim/ratelimitd/pkg/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Options(t *testing.T) {
	ctx := context.Background()
	p := Policy{Capacity: 1, RefillRate: 1, Requested: 1}

	t.Run("Defaults", func(t *testing.T) {
		e := NewEngine(NewMemoryStore())
		assert.Equal(t, DefaultPrefix, e.prefix)
		assert.Equal(t, DefaultTimeout, e.timeout)
		assert.Equal(t, DefaultTTL, e.ttl)
		assert.IsType(t, clock.System{}, e.clock)
		assert.NotNil(t, e.Counters())
	})

	t.Run("WithPrefix", func(t *testing.T) {
		mr, client := newMiniredis(t)
		e := newEngine(NewRedisStore(client), WithPrefix("custom_app:"))

		_, err := e.Evaluate(ctx, "user_1", p)
		require.NoError(t, err)

		assert.Equal(t, "custom_app:user_1", e.Key("user_1"))
		assert.True(t, mr.Exists("custom_app:user_1"))
		assert.False(t, mr.Exists("rate_limit:user_1"))
	})

	t.Run("WithTTL", func(t *testing.T) {
		mr, client := newMiniredis(t)
		e := newEngine(NewRedisStore(client), WithTTL(10*time.Minute))

		_, err := e.Evaluate(ctx, "user_1", p)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, mr.TTL("rate_limit:user_1"))
	})

	t.Run("IgnoresOutOfRangeValues", func(t *testing.T) {
		e := NewEngine(NewMemoryStore(),
			WithTimeout(0),
			WithTTL(time.Millisecond),
			WithClock(nil),
			WithCounters(nil),
		)
		assert.Equal(t, DefaultTimeout, e.timeout)
		assert.Equal(t, DefaultTTL, e.ttl)
		assert.NotNil(t, e.clock)
		assert.NotNil(t, e.counters)
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		e := NewEngine(failingStore{err: errConnRefused}, WithLogger(logger))

		_, err := e.Evaluate(ctx, "user_1", p)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"key":"rate_limit:user_1"`)
		assert.Contains(t, buf.String(), "connection refused")
	})
}
