package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in update handlers so one bad message cannot take the
// polling loop down. Users get a short apology, the log gets the stack.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace captures the stack of the panicking goroutine.
	EnableStackTrace bool

	// OnPanic is called for every recovered panic that passes the limiter.
	OnPanic func(ctx context.Context, info *PanicInfo)

	// UserErrorMessage is sent to the chat where the panic happened.
	UserErrorMessage string

	// MaxPanicsPerMinute bounds how many panics are logged in full.
	MaxPanicsPerMinute int

	// Logger receives the panic report.
	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:   true,
		UserErrorMessage:   "😵 Something broke on my side. Try again in a minute.",
		MaxPanicsPerMinute: 100,
	}
}

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	Error      error
	PanicValue any
	StackTrace string
	UpdateID   string
	UserID     int64
	Command    string
	Timestamp  time.Time
}

// RecoveryResult represents the result of running a handler.
type RecoveryResult struct {
	// Recovered is true when the handler panicked.
	Recovered bool

	// PanicInfo is nil when the panic was rate limited or did not happen.
	PanicInfo *PanicInfo

	// UserMessage is the text to send back, empty without a panic.
	UserMessage string

	// Err is the handler's own error, if it returned normally.
	Err error
}

// RecoveryMiddleware recovers from panics in handlers.
type RecoveryMiddleware struct {
	config  RecoveryConfig
	logger  *slog.Logger
	limiter *panicRateLimiter
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.MaxPanicsPerMinute <= 0 {
		config.MaxPanicsPerMinute = DefaultRecoveryConfig().MaxPanicsPerMinute
	}
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = DefaultRecoveryConfig().UserErrorMessage
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryMiddleware{
		config:  config,
		logger:  logger,
		limiter: newPanicRateLimiter(config.MaxPanicsPerMinute),
	}
}

// Run executes handler and converts a panic into a RecoveryResult.
func (m *RecoveryMiddleware) Run(ctx context.Context, userID int64, command string, handler func() error) (result RecoveryResult) {
	defer func() {
		if r := recover(); r != nil {
			result = m.handlePanic(ctx, r, userID, command)
		}
	}()

	return RecoveryResult{Err: handler()}
}

func (m *RecoveryMiddleware) handlePanic(ctx context.Context, value any, userID int64, command string) RecoveryResult {
	result := RecoveryResult{
		Recovered:   true,
		UserMessage: m.config.UserErrorMessage,
	}

	// Past the limit only the user message goes out.
	if !m.limiter.allow(time.Now()) {
		return result
	}

	if userID == 0 {
		userID = UserIDFromContext(ctx)
	}

	info := &PanicInfo{
		Error:      toError(value),
		PanicValue: value,
		UpdateID:   UpdateIDFromContext(ctx),
		UserID:     userID,
		Command:    command,
		Timestamp:  time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	m.logger.Error("panic recovered in telegram handler",
		"update_id", info.UpdateID,
		"user_id", info.UserID,
		"command", info.Command,
		"panic", fmt.Sprint(value),
		"stack", info.StackTrace,
	)

	if m.config.OnPanic != nil {
		m.config.OnPanic(ctx, info)
	}

	result.PanicInfo = info
	return result
}

func toError(value any) error {
	switch v := value.(type) {
	case error:
		return v
	case string:
		return fmt.Errorf("%s", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PANIC RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

type panicRateLimiter struct {
	mu        sync.Mutex
	count     int
	maxPerMin int
	window    time.Time
}

func newPanicRateLimiter(maxPerMin int) *panicRateLimiter {
	return &panicRateLimiter{maxPerMin: maxPerMin}
}

func (p *panicRateLimiter) allow(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.window) > time.Minute {
		p.count = 0
		p.window = now
	}
	if p.count >= p.maxPerMin {
		return false
	}
	p.count++
	return true
}
