package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	c := NewManual(0)
	assert.Equal(t, int64(0), c.NowMicros())

	c.Advance(2500 * time.Millisecond)
	assert.Equal(t, int64(2_500_000), c.NowMicros())

	c.Advance(-time.Second)
	assert.Equal(t, int64(1_500_000), c.NowMicros())

	c.Set(42)
	assert.Equal(t, int64(42), c.NowMicros())
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	c := NewManual(0)

	var wg sync.WaitGroup
	wg.Add(50)
	for range 50 {
		go func() {
			defer wg.Done()
			c.Advance(time.Microsecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.NowMicros())
}

func TestSystem_NowMicros(t *testing.T) {
	before := time.Now().UnixMicro()
	got := System{}.NowMicros()
	after := time.Now().UnixMicro()

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}
