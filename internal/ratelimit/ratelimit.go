// Package ratelimit provides a pluggable rate limiting interface.
//
// Sync endpoints fan out into remote optimizer calls, so they are limited
// per owner with an in-memory token bucket (MemoryLimiter). Multi-instance
// deployments can substitute a shared backend — the Limiter interface is
// the contract.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. The key is opaque to
	// the limiter; callers construct it (e.g. "sync:<owner uuid>"). An error
	// signals a limiter malfunction and callers fail open.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
