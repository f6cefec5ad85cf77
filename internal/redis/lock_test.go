package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T, ttl time.Duration) (Locker, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSlotLocker(client, ttl), client
}

func TestWithSlotLockRunsCriticalSection(t *testing.T) {
	locker, _ := newTestLocker(t, 5*time.Second)

	ran := false
	err := locker.WithSlotLock(context.Background(), SlotKey(1, "2025-06-01", "08:00 - 09:00"), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithSlotLock returned error: %v", err)
	}
	if !ran {
		t.Fatal("critical section did not run")
	}
}

func TestWithSlotLockContention(t *testing.T) {
	locker, _ := newTestLocker(t, 5*time.Second)
	key := SlotKey(1, "2025-06-01", "08:00 - 09:00")

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		// A second booking for the same slot must bounce while we hold it.
		inner := locker.WithSlotLock(ctx, key, func(ctx context.Context) error {
			t.Fatal("inner critical section should not run")
			return nil
		})
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer WithSlotLock returned error: %v", err)
	}
}

func TestWithSlotLockReleasesOnExit(t *testing.T) {
	locker, client := newTestLocker(t, 5*time.Second)
	key := SlotKey(2, "2025-06-02", "09:00 - 10:00")

	if err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("first acquisition failed: %v", err)
	}

	if n, err := client.Exists(context.Background(), "lock:slot:"+key).Result(); err != nil || n != 0 {
		t.Fatalf("lock key still present after release: n=%d err=%v", n, err)
	}

	// Re-acquisition succeeds once released.
	if err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("second acquisition failed: %v", err)
	}
}

func TestWithSlotLockPropagatesError(t *testing.T) {
	locker, _ := newTestLocker(t, 5*time.Second)

	sentinel := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), SlotKey(3, "2025-06-03", "10:00 - 11:00"), func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestDistinctKeysDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t, 5*time.Second)

	err := locker.WithSlotLock(context.Background(), SlotKey(1, "2025-06-01", "08:00 - 09:00"), func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, SlotKey(2, "2025-06-01", "08:00 - 09:00"), func(ctx context.Context) error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("locks on distinct keys should not contend: %v", err)
	}
}
