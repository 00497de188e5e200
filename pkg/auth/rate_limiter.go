package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most limit requests per key within any
// window of windowSize
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
	mu       sync.Mutex
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed and records it when it is
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	// Drop requests that left the window; the slice is kept in time order
	kept := w.requests[:0]
	for _, at := range w.requests {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}
	w.requests = kept

	if len(w.requests) >= l.limit {
		return false, nil
	}

	w.requests = append(w.requests, now)
	return true, nil
}

// RetryAfter returns how long until the oldest request in the key's window
// expires. It is zero when the key has spare capacity.
func (l *SlidingWindowLimiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	w, exists := l.windows[key]
	l.mu.Unlock()
	if !exists {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.requests) < l.limit {
		return 0
	}
	wait := w.requests[0].Add(l.windowSize).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// UserRateLimiter limits requests per authenticated user
type UserRateLimiter struct {
	limiter *SlidingWindowLimiter
}

// NewUserRateLimiter creates a new user-based rate limiter
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks if a request from a user is allowed
func (l *UserRateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	return l.limiter.Allow(ctx, userKey(userID))
}

// RetryAfter reports when the user may send the next request
func (l *UserRateLimiter) RetryAfter(userID int64) time.Duration {
	return l.limiter.RetryAfter(userKey(userID))
}

// Reset clears the user's window
func (l *UserRateLimiter) Reset(ctx context.Context, userID int64) error {
	return l.limiter.Reset(ctx, userKey(userID))
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
