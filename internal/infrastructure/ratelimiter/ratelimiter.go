package ratelimiter

import (
	"errors"
	"math"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
)

// ErrRateLimitExceeded is returned to callers that want a typed rejection
// rather than a bare false.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter guards client-originated events, keyed by connection id.
// Server-originated broadcasts never pass through it.
type Limiter interface {
	// Allow deducts weight tokens from the connection's bucket and
	// reports whether the event may proceed. A weight below 1 counts
	// as 1.
	Allow(connectionID string, weight int) bool
	Remaining(connectionID string) int
	Capacity() int
	// Release drops bucket state for a disconnected connection.
	Release(connectionID string)
}

type RateLimiter struct {
	refillPerMillisecond float64
	capacity             int
	cache                GetterSetter
	cacheTTL             time.Duration
	// Per-key locks to ensure atomic operations for each connection
	locks sync.Map // map[string]*sync.Mutex
}

func (rl *RateLimiter) getLock(connectionID string) *sync.Mutex {
	lock, _ := rl.locks.LoadOrStore(connectionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (rl *RateLimiter) bucketKeyFor(connectionID string) string {
	return bucketKeyPrefix + connectionID
}

func (rl *RateLimiter) lastFillKeyFor(connectionID string) string {
	return lastFillKeyPrefix + connectionID
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

func (rl *RateLimiter) getState(connectionID string) bucketState {
	bucketKey := rl.bucketKeyFor(connectionID)
	lastFillKey := rl.lastFillKeyFor(connectionID)

	bucket, bucketErr := rl.cache.Get(bucketKey)
	lastFill, fillErr := rl.cache.Get(lastFillKey)

	if errors.Is(bucketErr, ErrCacheMiss) || errors.Is(fillErr, ErrCacheMiss) {
		return bucketState{
			tokens:   rl.capacity,
			lastFill: time.Now().UnixMilli(),
		}
	}

	// On cache error (not miss), fail open with a full bucket: a broken
	// backing store must degrade rate limiting, never freeze traffic.
	if bucketErr != nil || fillErr != nil {
		return bucketState{
			tokens:   rl.capacity,
			lastFill: time.Now().UnixMilli(),
		}
	}

	return bucketState{
		tokens:   bucket,
		lastFill: int64(lastFill),
	}
}

func (rl *RateLimiter) setState(connectionID string, state bucketState) {
	_ = rl.cache.SetWithExpiration(rl.bucketKeyFor(connectionID), state.tokens, rl.cacheTTL)
	_ = rl.cache.SetWithExpiration(rl.lastFillKeyFor(connectionID), int(state.lastFill), rl.cacheTTL)
}

func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 {
		return state // No time has passed
	}

	newTokens := float64(state.tokens) + float64(elapsed)*rl.refillPerMillisecond

	if newTokens > float64(rl.capacity) {
		return bucketState{
			tokens:   rl.capacity,
			lastFill: now,
		}
	}

	return bucketState{
		tokens:   int(math.Floor(newTokens)), // Only count whole tokens
		lastFill: now,
	}
}

func (rl *RateLimiter) Remaining(connectionID string) int {
	lock := rl.getLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UnixMilli()
	state := rl.getState(connectionID)
	newState := rl.refillTokens(state, now)

	if newState.tokens != state.tokens || newState.lastFill != state.lastFill {
		rl.setState(connectionID, newState)
	}

	return newState.tokens
}

func (rl *RateLimiter) Capacity() int {
	return rl.capacity
}

func (rl *RateLimiter) Allow(connectionID string, weight int) bool {
	if weight < 1 {
		weight = 1
	}

	lock := rl.getLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UnixMilli()
	state := rl.getState(connectionID)
	newState := rl.refillTokens(state, now)

	if newState.tokens >= weight {
		newState.tokens -= weight
		rl.setState(connectionID, newState)
		return true
	}

	// No tokens available - still update state if refill occurred
	if newState.lastFill != state.lastFill {
		rl.setState(connectionID, newState)
	}

	return false
}

func (rl *RateLimiter) Release(connectionID string) {
	_ = rl.cache.Delete(rl.bucketKeyFor(connectionID))
	_ = rl.cache.Delete(rl.lastFillKeyFor(connectionID))
	rl.locks.Delete(connectionID)
}

type Options struct {
	EventsPerWindow int
	Window          time.Duration
	Cache           GetterSetter
	CacheTTL        time.Duration
}

func New(options Options) Limiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 5 * time.Minute
	}

	if options.EventsPerWindow <= 0 {
		options.EventsPerWindow = 100
	}

	if options.Window <= 0 {
		options.Window = time.Minute
	}

	return &RateLimiter{
		refillPerMillisecond: float64(options.EventsPerWindow) / float64(options.Window.Milliseconds()),
		capacity:             options.EventsPerWindow,
		cache:                options.Cache,
		cacheTTL:             options.CacheTTL,
	}
}
