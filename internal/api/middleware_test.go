package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/redis"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareNilLimiterPassesThrough(t *testing.T) {
	mw := RateLimitMiddleware(nil, zap.NewNop(), IPKeyFunc)

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments?date=2026-03-05", nil)
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := redis.New(context.Background(), redis.Config{
		Host: mr.Host(),
		Port: port,
	}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	limiter := redis.NewRateLimiter(client, zap.NewNop(), redis.RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
	})

	mw := RateLimitMiddleware(limiter, zap.NewNop(), IPKeyFunc)
	handler := mw(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/appointments?date=2026-03-05", nil)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments?date=2026-03-05", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected
	req = httptest.NewRequest(http.MethodGet, "/v1/appointments?date=2026-03-05", nil)
	req.Header.Set("X-Real-IP", "203.0.113.8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4242"
	assert.Equal(t, "ip:192.0.2.1:4242", IPKeyFunc(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "ip:203.0.113.7", IPKeyFunc(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, "ip:198.51.100.9", IPKeyFunc(req))
}

func TestRouterRoutes(t *testing.T) {
	h := newTestHandler(newFakeStore())
	router := NewRouter(h, nil, nil, zap.NewNop())

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/availability/slots?date=2026-03-05", http.StatusOK},
		{http.MethodGet, "/v1/availability/next-date", http.StatusOK},
		{http.MethodGet, "/v1/appointments?date=2026-03-05", http.StatusOK},
		{http.MethodGet, "/v1/notifications", http.StatusOK},
		{http.MethodGet, "/v1/settings/hours", http.StatusOK},
		{http.MethodPost, "/v1/notifications/retries", http.StatusServiceUnavailable},
		{http.MethodGet, "/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
