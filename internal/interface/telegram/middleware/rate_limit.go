// Package middleware contains Telegram bot middlewares for update processing.
package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Per-user token bucket. Result posts are never limited (the bot must record
// every score); only commands go through here.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the refill rate of each user's bucket.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// BanDuration is how long a user is muted after BanThreshold violations.
	BanDuration time.Duration

	// BanThreshold is the number of violations within ViolationWindow that
	// triggers a temporary ban. Zero disables bans.
	BanThreshold int

	// ViolationWindow resets the violation counter when exceeded.
	ViolationWindow time.Duration

	// IdleTTL drops buckets that have not been touched for this long.
	IdleTTL time.Duration

	// Whitelist holds user ids exempt from limiting (admins).
	Whitelist []int64

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		BanDuration:       10 * time.Minute,
		BanThreshold:      3,
		ViolationWindow:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	IsBanned   bool

	// Notify is true only for the first rejection of a streak, so a spammer
	// gets one warning instead of one per message.
	Notify bool
}

// Message returns the text to send to a limited user.
func (r RateLimitResult) Message() string {
	seconds := int(r.RetryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds < 60 {
		return fmt.Sprintf("⏳ Slow down! Try again in %d s.", seconds)
	}
	return fmt.Sprintf("⏳ Slow down! Try again in %d min.", (seconds+59)/60)
}

// RateLimiter implements per-user rate limiting using the token bucket algorithm.
type RateLimiter struct {
	config    RateLimitConfig
	now       func() time.Time
	whitelist map[int64]struct{}

	mu      sync.Mutex
	buckets map[int64]*tokenBucket
	bans    map[int64]time.Time
}

type tokenBucket struct {
	tokens       float64
	lastRefill   time.Time
	violations   int
	lastViolated time.Time
	warned       bool
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.ViolationWindow <= 0 {
		config.ViolationWindow = defaults.ViolationWindow
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	wl := make(map[int64]struct{}, len(config.Whitelist))
	for _, id := range config.Whitelist {
		wl[id] = struct{}{}
	}

	return &RateLimiter{
		config:    config,
		now:       now,
		whitelist: wl,
		buckets:   make(map[int64]*tokenBucket),
		bans:      make(map[int64]time.Time),
	}
}

// Allow consumes one token for userID.
func (rl *RateLimiter) Allow(userID int64) RateLimitResult {
	if _, ok := rl.whitelist[userID]; ok {
		return RateLimitResult{Allowed: true}
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if until, ok := rl.bans[userID]; ok {
		if now.Before(until) {
			return RateLimitResult{IsBanned: true, RetryAfter: until.Sub(now)}
		}
		delete(rl.bans, userID)
	}

	b, ok := rl.buckets[userID]
	if !ok {
		b = &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: now}
		rl.buckets[userID] = b
	}

	rate := float64(rl.config.RequestsPerMinute) / 60.0
	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if max := float64(rl.config.BurstSize); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		b.warned = false
		return RateLimitResult{Allowed: true}
	}

	retryAfter := time.Duration((1 - b.tokens) / rate * float64(time.Second))

	if now.Sub(b.lastViolated) > rl.config.ViolationWindow {
		b.violations = 0
	}
	b.violations++
	b.lastViolated = now

	if rl.config.BanThreshold > 0 && b.violations >= rl.config.BanThreshold && rl.config.BanDuration > 0 {
		rl.bans[userID] = now.Add(rl.config.BanDuration)
		b.violations = 0
		return RateLimitResult{IsBanned: true, RetryAfter: rl.config.BanDuration, Notify: true}
	}

	res := RateLimitResult{RetryAfter: retryAfter, Notify: !b.warned}
	b.warned = true
	return res
}

// Reset forgets the state of one user.
func (rl *RateLimiter) Reset(userID int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, userID)
	delete(rl.bans, userID)
}

// Cleanup removes idle buckets and expired bans. It returns the number of
// entries dropped.
func (rl *RateLimiter) Cleanup() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	dropped := 0
	for id, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.config.IdleTTL {
			delete(rl.buckets, id)
			dropped++
		}
	}
	for id, until := range rl.bans {
		if !now.Before(until) {
			delete(rl.bans, id)
			dropped++
		}
	}
	return dropped
}

// Size returns the number of tracked buckets.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND-SPECIFIC RATE LIMITS
// Pet commands call third-party APIs and get a stricter bucket.
// ══════════════════════════════════════════════════════════════════════════════

// CommandRateLimits routes a command to its own limiter or the default one.
type CommandRateLimits struct {
	limiters map[string]*RateLimiter
	fallback *RateLimiter
}

// NewCommandRateLimits creates a new command-specific rate limiter.
func NewCommandRateLimits(defaultConfig RateLimitConfig) *CommandRateLimits {
	return &CommandRateLimits{
		limiters: make(map[string]*RateLimiter),
		fallback: NewRateLimiter(defaultConfig),
	}
}

// AddCommand sets a separate limiter for command. Not safe for use after
// the bot has started.
func (c *CommandRateLimits) AddCommand(command string, config RateLimitConfig) {
	c.limiters[command] = NewRateLimiter(config)
}

// Allow checks the limit for userID running command.
func (c *CommandRateLimits) Allow(userID int64, command string) RateLimitResult {
	if l, ok := c.limiters[command]; ok {
		return l.Allow(userID)
	}
	return c.fallback.Allow(userID)
}

// Cleanup cleans every limiter.
func (c *CommandRateLimits) Cleanup() int {
	n := c.fallback.Cleanup()
	for _, l := range c.limiters {
		n += l.Cleanup()
	}
	return n
}

// Size returns the number of tracked buckets across all limiters.
func (c *CommandRateLimits) Size() int {
	n := c.fallback.Size()
	for _, l := range c.limiters {
		n += l.Size()
	}
	return n
}
