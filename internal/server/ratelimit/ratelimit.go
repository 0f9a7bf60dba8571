// Package ratelimit throttles API clients with per-client token buckets.
package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// bucket is a token bucket. Tokens refill continuously at rate per second up
// to capacity.
type bucket struct {
	capacity   float64
	rate       float64
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

func newBucket(capacity int, rate float64, now time.Time) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		rate:       rate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastSeen:   now,
	}
}

// take refills, then consumes one token if available. It reports the tokens
// left and when the bucket will be full again.
func (b *bucket) take(now time.Time) (bool, int, time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
		b.lastRefill = now
	}
	b.lastSeen = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	resetAt := now
	if missing := b.capacity - b.tokens; missing > 0 && b.rate > 0 {
		resetAt = now.Add(time.Duration(missing / b.rate * float64(time.Second)))
	}
	return allowed, int(b.tokens), resetAt
}

// retryAfter is how long until one token is available.
func (b *bucket) retryAfter() time.Duration {
	if b.tokens >= 1 || b.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Rule limits requests matching Method and a path prefix.
type Rule struct {
	Method string
	// Path matches exactly, or as a prefix when it ends with "/"
	Path   string
	Limit  int
	Window time.Duration
	// Burst is the bucket capacity, Limit when zero
	Burst int
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled bool
	// Rules are checked in order; the first match wins
	Rules []Rule
	// Default applies when no rule matches. A zero Limit means unlimited.
	Default Rule
	// Exempt paths are never limited
	Exempt    []string
	Whitelist []string
	// IdleTTL drops buckets of clients not seen for this long
	IdleTTL time.Duration
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients using token buckets.
type Limiter struct {
	cfg       Config
	whitelist map[string]bool

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter creates a limiter. Call Run to start idle bucket cleanup.
func NewLimiter(cfg Config) *Limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Hour
	}
	wl := make(map[string]bool, len(cfg.Whitelist))
	for _, ip := range cfg.Whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			wl[ip] = true
		}
	}
	return &Limiter{
		cfg:       cfg,
		whitelist: wl,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

func (l *Limiter) rule(method, path string) (Rule, int) {
	for _, p := range l.cfg.Exempt {
		if p == path {
			return Rule{}, -1
		}
	}
	for i, r := range l.cfg.Rules {
		if r.matches(method, path) {
			return r, i
		}
	}
	return l.cfg.Default, len(l.cfg.Rules)
}

// Allow checks whether a request from client is allowed.
func (l *Limiter) Allow(client, method, path string) Info {
	if l == nil || !l.cfg.Enabled || l.whitelist[client] {
		return Info{Allowed: true}
	}

	rule, idx := l.rule(method, path)
	if idx < 0 || rule.Limit <= 0 || rule.Window <= 0 {
		return Info{Allowed: true}
	}

	// Buckets are per client and rule, so prefix rules share one bucket.
	key := client + "|" + rule.Method + "|" + rule.Path
	if idx == len(l.cfg.Rules) {
		key = client + "|*"
	}

	capacity := rule.Burst
	if capacity <= 0 {
		capacity = rule.Limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(capacity, float64(rule.Limit)/rule.Window.Seconds(), now)
		l.buckets[key] = b
	}
	allowed, remaining, resetAt := b.take(now)

	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: resetAt,
	}
	if !allowed {
		info.RetryAfter = b.retryAfter()
	}
	return info
}

// Sweep drops buckets idle for longer than the configured TTL and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if !l.cfg.Enabled || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Size returns the number of live buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
