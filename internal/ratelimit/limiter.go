// Package ratelimit provides per-key rate limiting for the fixture review
// application's JSON API.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting configuration.
type Config struct {
	RPS             float64       // Requests per second per key
	Burst           int           // Burst size per key
	CleanupInterval time.Duration // How often idle keys are dropped
}

// DefaultConfig is generous enough for the load replay's default
// virtual users while still rejecting a runaway client.
var DefaultConfig = Config{
	RPS:             50,
	Burst:           100,
	CleanupInterval: time.Hour,
}

// LoginConfig throttles credential attempts per client address.
var LoginConfig = Config{
	RPS:             5,
	Burst:           20,
	CleanupInterval: time.Hour,
}

// RetryAfter is how long a rejected client should wait for one token,
// rounded up to whole seconds and capped at a minute.
func (c Config) RetryAfter() time.Duration {
	if c.RPS <= 0 {
		return time.Minute
	}
	secs := math.Ceil(1 / c.RPS)
	return time.Duration(min(max(secs, 1), 60)) * time.Second
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// CleanupInterval are dropped in the background until Stop.
type RateLimiter struct {
	config Config

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRateLimiter(config Config) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: map[string]*bucket{},
		done:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		rl.wg.Add(1)
		go rl.sweep()
	}
	return rl
}

// Allow takes a token from key's bucket if one is available.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// GetLimiter returns key's bucket, creating a full one on first use.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{Limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.Limiter
}

// Cleanup drops buckets unused for a full CleanupInterval.
func (rl *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) sweep() {
	defer rl.wg.Done()
	tick := time.NewTicker(rl.config.CleanupInterval)
	defer tick.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-tick.C:
			rl.Cleanup()
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	rl.wg.Wait()
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
