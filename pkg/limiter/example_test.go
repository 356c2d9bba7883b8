package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/manenim/ratelimitd/pkg/clock"
)

func ExampleEngine_Evaluate() {
	clk := clock.NewManual(0)
	e := NewEngine(NewMemoryStore(), WithClock(clk))
	p := Policy{Capacity: 2, RefillRate: 4, Requested: 1}

	for i := 0; i < 3; i++ {
		dec, err := e.Evaluate(context.Background(), "user_123", p)
		if err != nil {
			panic(err)
		}
		fmt.Println(dec.Allowed, dec.Remaining, dec.RetryAfterMillis())
	}

	clk.Advance(125 * time.Millisecond)
	dec, _ := e.Evaluate(context.Background(), "user_123", Policy{Capacity: 2, RefillRate: 4, Requested: 0})
	fmt.Println(dec.Allowed, dec.Remaining)

	// Output:
	// true 1 250
	// true 0 250
	// false 0 250
	// true 0.5
}
