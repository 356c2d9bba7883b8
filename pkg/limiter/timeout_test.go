package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisStore_ContextCancellation(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewRedisStore(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := TakeRequest{Capacity: 100, RefillRate: 100, Requested: 1, TTL: time.Hour}
	_, err := store.Take(ctx, "rate_limit:user_cancel", req)

	if err == nil {
		t.Fatal("Expected an error due to cancelled context, but got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to be context.Canceled, but got: %v", err)
	}
}

func TestRedisStore_Deadline(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewRedisStore(client)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	req := TakeRequest{Capacity: 100, RefillRate: 100, Requested: 1, TTL: time.Hour}
	_, err := store.Take(ctx, "rate_limit:user_deadline", req)

	if err == nil {
		t.Fatal("Expected timeout error, but got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected error to be context.DeadlineExceeded, but got: %v", err)
	}
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Take(ctx, "k", TakeRequest{Capacity: 1, RefillRate: 1, Requested: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to be context.Canceled, but got: %v", err)
	}
}
