package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionOpenSession = "open_session"
	ActionRequest     = "request"
)

// Policy is a token bucket: Rate tokens per second, up to Burst at once.
type Policy struct {
	Rate  rate.Limit
	Burst int
}

// Default policies, used when the caller does not override them.
var defaultPolicies = map[string]Policy{
	// 10 messages per minute with a burst of 10
	ActionSendMessage: {Rate: rate.Every(6 * time.Second), Burst: 10},
	// 5 sessions per hour
	ActionOpenSession: {Rate: rate.Every(12 * time.Minute), Burst: 5},
	// 60 requests per minute per client
	ActionRequest: {Rate: rate.Every(time.Second), Burst: 60},
}

var fallbackPolicy = Policy{Rate: rate.Every(3 * time.Second), Burst: 20}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key and action.
type RateLimiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	entries  map[string]*limiterEntry
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	policies := make(map[string]Policy, len(defaultPolicies))
	for action, p := range defaultPolicies {
		policies[action] = p
	}
	return &RateLimiter{
		policies: policies,
		entries:  make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// SetPolicy overrides the bucket for action. Existing buckets keep their old policy.
func (rl *RateLimiter) SetPolicy(action string, p Policy) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.policies[action] = p
}

// Allow consumes a token for key and action. When none is available it
// returns false and how long until the next one.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()
	limiter := rl.limiter(key, action, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) limiter(key, action string, now time.Time) *rate.Limiter {
	id := key + ":" + action

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[id]
	if !ok {
		p, found := rl.policies[action]
		if !found {
			p = fallbackPolicy
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(p.Rate, p.Burst)}
		rl.entries[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for id, entry := range rl.entries {
		if now.Sub(entry.lastSeen) > maxIdle {
			delete(rl.entries, id)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			}
		}
	}()
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
