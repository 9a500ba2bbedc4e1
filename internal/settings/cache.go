// Package settings caches the salon's saved schedule so the hot
// availability endpoints do not hit the database on every request.
package settings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/availability"
)

// HoursSource loads the weekly schedule from durable storage.
type HoursSource interface {
	GetBusinessHours(ctx context.Context) (availability.BusinessHours, error)
}

// HoursCache is a TTL read-through cache over a HoursSource. A zero TTL
// disables caching. The cache is injected wherever hours are read, so
// tests can pin the clock and handlers can invalidate after an update.
type HoursCache struct {
	mu       sync.Mutex
	source   HoursSource
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	hours    availability.BusinessHours
	loadedAt time.Time
}

// NewHoursCache creates a cache over source with the given TTL.
func NewHoursCache(source HoursSource, ttl time.Duration, logger *zap.Logger) *HoursCache {
	return &HoursCache{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock pins the clock. Tests only.
func (c *HoursCache) WithClock(now func() time.Time) *HoursCache {
	c.now = now
	return c
}

// Get returns the cached schedule, refreshing it from the source when
// the TTL has lapsed. If the refresh fails and a previously loaded
// schedule exists, the stale copy is served rather than failing the
// request.
func (c *HoursCache) Get(ctx context.Context) (availability.BusinessHours, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hours != nil && c.ttl > 0 && c.now().Sub(c.loadedAt) < c.ttl {
		return c.hours, nil
	}

	hours, err := c.source.GetBusinessHours(ctx)
	if err != nil {
		if c.hours != nil {
			c.logger.Warn("business hours refresh failed, serving stale schedule", zap.Error(err))
			return c.hours, nil
		}
		return nil, err
	}

	c.hours = hours
	c.loadedAt = c.now()
	return hours, nil
}

// Invalidate drops the cached schedule. Called after the salon updates
// its hours so the change is visible immediately.
func (c *HoursCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hours = nil
	c.loadedAt = time.Time{}
}
