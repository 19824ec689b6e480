package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_BurstThenBlocked(t *testing.T) {
	m := NewMemoryLimiter(1, 3)
	defer func() { _ = m.Close() }()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(context.Background(), "sync:owner-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst should pass", i)
	}

	ok, err := m.Allow(context.Background(), "sync:owner-a")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	defer func() { _ = m.Close() }()

	ok, _ := m.Allow(context.Background(), "sync:owner-a")
	assert.True(t, ok)
	ok, _ = m.Allow(context.Background(), "sync:owner-a")
	assert.False(t, ok)

	ok, _ = m.Allow(context.Background(), "sync:owner-b")
	assert.True(t, ok, "a different owner has its own bucket")
}

func TestMemoryLimiter_Refills(t *testing.T) {
	m := NewMemoryLimiter(100, 1)
	defer func() { _ = m.Close() }()

	ok, _ := m.Allow(context.Background(), "k")
	require.True(t, ok)
	ok, _ = m.Allow(context.Background(), "k")
	require.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	ok, _ = m.Allow(context.Background(), "k")
	assert.True(t, ok, "bucket refills over time")
}

func TestMemoryLimiter_EvictStale(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	defer func() { _ = m.Close() }()

	_, _ = m.Allow(context.Background(), "old")
	m.mu.Lock()
	m.buckets["old"].lastAccess = time.Now().Add(-staleThreshold - time.Minute)
	m.mu.Unlock()

	m.evictStale()

	m.mu.Lock()
	_, present := m.buckets["old"]
	m.mu.Unlock()
	assert.False(t, present)
}

func TestNoopLimiter(t *testing.T) {
	var l NoopLimiter
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(context.Background(), "anything")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, l.Close())
}

func TestMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ownerKey := func(r *http.Request) string { return r.Header.Get("X-Test-Owner") }
	reqID := func(r *http.Request) string { return "req-1" }

	t.Run("limits per key and returns the error envelope", func(t *testing.T) {
		m := NewMemoryLimiter(0.001, 1)
		defer func() { _ = m.Close() }()
		h := Middleware(m, ownerKey, reqID)(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/v1/results/sync", nil)
		req.Header.Set("X-Test-Owner", "owner-a")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "rate_limited")
		assert.Contains(t, rec.Body.String(), "req-1")
	})

	t.Run("empty key skips limiting", func(t *testing.T) {
		m := NewMemoryLimiter(0.001, 1)
		defer func() { _ = m.Close() }()
		h := Middleware(m, ownerKey, reqID)(okHandler)

		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		h := Middleware(errorLimiter{}, ownerKey, reqID)(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/v1/results/sync", nil)
		req.Header.Set("X-Test-Owner", "owner-a")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

type errorLimiter struct{}

func (errorLimiter) Allow(context.Context, string) (bool, error) {
	return false, fmt.Errorf("backend down")
}

func (errorLimiter) Close() error { return nil }
