package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// BookingIdempotencyTTL is how long a completed booking response is
	// replayed for the same Idempotency-Key. Long enough that a customer
	// mashing the "Book" button after a slow response gets the original
	// appointment back, short enough to not block a genuine re-book.
	BookingIdempotencyTTL = 24 * time.Hour

	// processingTTL is the lock duration while a booking is in flight.
	processingTTL = 5 * time.Minute

	processingMarker = "processing"
)

// ErrDuplicateBooking indicates the same idempotency key is already
// being processed.
var ErrDuplicateBooking = errors.New("duplicate booking: idempotency key already in flight")

// BookingResult is the cached outcome of an idempotent booking request.
type BookingResult struct {
	AppointmentID string `json:"appointment_id"`
	StatusCode    int    `json:"status_code"`
	CreatedAt     int64  `json:"created_at"`
}

// IdempotencyService deduplicates booking submissions using Redis.
type IdempotencyService struct {
	client *Client
	logger *zap.Logger
}

// NewIdempotencyService creates a new idempotency service.
func NewIdempotencyService(client *Client, logger *zap.Logger) *IdempotencyService {
	return &IdempotencyService{
		client: client,
		logger: logger,
	}
}

func (s *IdempotencyService) buildKey(idempotencyKey string) string {
	return fmt.Sprintf("booking:idem:%s", idempotencyKey)
}

// Check retrieves a cached booking for an idempotency key.
// Returns (nil, nil) if the key is unknown, (result, nil) if a booking
// completed under it, or ErrDuplicateBooking if one is still in flight.
func (s *IdempotencyService) Check(ctx context.Context, idempotencyKey string) (*BookingResult, error) {
	key := s.buildKey(idempotencyKey)

	val, err := s.client.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	if val == processingMarker {
		return nil, ErrDuplicateBooking
	}

	var result BookingResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		s.logger.Error("failed to unmarshal cached booking", zap.Error(err))
		return nil, fmt.Errorf("invalid cached result: %w", err)
	}

	s.logger.Debug("booking idempotency hit",
		zap.String("appointment_id", result.AppointmentID),
	)

	return &result, nil
}

// Store saves the outcome of a completed booking under its key.
func (s *IdempotencyService) Store(ctx context.Context, idempotencyKey string, result *BookingResult, ttl time.Duration) error {
	key := s.buildKey(idempotencyKey)

	if result.CreatedAt == 0 {
		result.CreatedAt = time.Now().Unix()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := s.client.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Reserve acquires the booking lock with SET NX. Returns true if this
// request owns the key, false if another request got there first.
func (s *IdempotencyService) Reserve(ctx context.Context, idempotencyKey string) (bool, error) {
	key := s.buildKey(idempotencyKey)

	set, err := s.client.rdb.SetNX(ctx, key, processingMarker, processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}

	return set, nil
}

// CheckOrReserve returns the cached booking if one exists, reserves the
// key and returns nil if this is a new request, or fails with
// ErrDuplicateBooking when a concurrent submission holds the lock.
func (s *IdempotencyService) CheckOrReserve(ctx context.Context, idempotencyKey string) (*BookingResult, error) {
	result, err := s.Check(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	reserved, err := s.Reserve(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}

	if !reserved {
		return nil, ErrDuplicateBooking
	}

	return nil, nil
}

// Release drops the reservation so a failed booking can be retried
// immediately instead of waiting out the processing TTL.
func (s *IdempotencyService) Release(ctx context.Context, idempotencyKey string) error {
	return s.client.rdb.Del(ctx, s.buildKey(idempotencyKey)).Err()
}
