package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	return client, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestIdempotencyService_NewBooking(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	result, err := svc.CheckOrReserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for new booking, got: %+v", result)
	}
}

func TestIdempotencyService_ConcurrentSubmission(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "key-1"); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// Same key again while the first is still processing
	if _, err := svc.CheckOrReserve(ctx, "key-1"); err != ErrDuplicateBooking {
		t.Fatalf("expected ErrDuplicateBooking, got: %v", err)
	}
}

func TestIdempotencyService_ReplaysCompletedBooking(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	stored := &BookingResult{
		AppointmentID: "8b7c2a14-0000-0000-0000-000000000000",
		StatusCode:    201,
		CreatedAt:     time.Now().Unix(),
	}

	if err := svc.Store(ctx, "key-1", stored, BookingIdempotencyTTL); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	result, err := svc.Check(ctx, "key-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected cached booking")
	}
	if result.AppointmentID != stored.AppointmentID {
		t.Errorf("expected %s, got %s", stored.AppointmentID, result.AppointmentID)
	}
}

func TestIdempotencyService_KeysAreIndependent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "key-a"); err != nil {
		t.Fatalf("key-a failed: %v", err)
	}

	result, err := svc.CheckOrReserve(ctx, "key-b")
	if err != nil {
		t.Fatalf("key-b should succeed: %v", err)
	}
	if result != nil {
		t.Fatal("key-b should be treated as a new booking")
	}
}

func TestIdempotencyService_ReserveThenStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	reserved, err := svc.Reserve(ctx, "key-1")
	if err != nil || !reserved {
		t.Fatalf("reserve failed: %v, reserved: %v", err, reserved)
	}

	if err := svc.Store(ctx, "key-1", &BookingResult{
		AppointmentID: "appt-789",
		StatusCode:    201,
	}, BookingIdempotencyTTL); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	cached, err := svc.Check(ctx, "key-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if cached.AppointmentID != "appt-789" {
		t.Errorf("expected appt-789, got %s", cached.AppointmentID)
	}
}

func TestIdempotencyService_ReleaseFreesKey(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	svc := NewIdempotencyService(client, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CheckOrReserve(ctx, "key-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// Booking failed; the lock must not make the customer wait out the TTL
	if err := svc.Release(ctx, "key-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	result, err := svc.CheckOrReserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("retry after release failed: %v", err)
	}
	if result != nil {
		t.Fatal("retry should be treated as a new booking")
	}
}
