package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(clock *manualClock) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		BanThreshold:      3,
		BanDuration:       time.Minute,
		Whitelist:         []int64{99},
		Now:               clock.Now,
	})
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(clock)

	assert.True(t, rl.Allow(1).Allowed)
	assert.True(t, rl.Allow(1).Allowed)

	denied := rl.Allow(1)
	assert.False(t, denied.Allowed)
	assert.True(t, denied.Notify)
	assert.Equal(t, time.Second, denied.RetryAfter)

	// Second rejection in a row is silent.
	assert.False(t, rl.Allow(1).Notify)

	// Other users have their own bucket.
	assert.True(t, rl.Allow(2).Allowed)

	clock.Advance(time.Second)
	assert.True(t, rl.Allow(1).Allowed)
}

func TestRateLimiterBansRepeatOffenders(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(clock)

	rl.Allow(1)
	rl.Allow(1)
	rl.Allow(1)
	rl.Allow(1)
	banned := rl.Allow(1)
	assert.True(t, banned.IsBanned)
	assert.True(t, banned.Notify)
	assert.Equal(t, time.Minute, banned.RetryAfter)

	clock.Advance(30 * time.Second)
	still := rl.Allow(1)
	assert.True(t, still.IsBanned)
	assert.False(t, still.Notify)

	clock.Advance(31 * time.Second)
	assert.True(t, rl.Allow(1).Allowed)
}

func TestRateLimiterWhitelistAndCleanup(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)}
	rl := newLimiter(clock)

	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow(99).Allowed)
	}
	assert.Equal(t, 0, rl.Size())

	rl.Allow(1)
	rl.Allow(2)
	assert.Equal(t, 2, rl.Size())

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
	assert.Equal(t, 0, rl.Size())
}

func TestRateLimitMessage(t *testing.T) {
	assert.Equal(t, "⏳ Slow down! Try again in 3 s.", RateLimitResult{RetryAfter: 3 * time.Second}.Message())
	assert.Equal(t, "⏳ Slow down! Try again in 1 s.", RateLimitResult{RetryAfter: 10 * time.Millisecond}.Message())
	assert.Equal(t, "⏳ Slow down! Try again in 2 min.", RateLimitResult{RetryAfter: 61 * time.Second}.Message())
}

func TestCommandRateLimits(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)}
	limits := NewCommandRateLimits(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 5, Now: clock.Now})
	limits.AddCommand("doggo", RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1, Now: clock.Now})

	assert.True(t, limits.Allow(1, "doggo").Allowed)
	assert.False(t, limits.Allow(1, "doggo").Allowed)
	assert.True(t, limits.Allow(1, "leaderboard").Allowed)
}

func TestRecoveryCatchesPanic(t *testing.T) {
	var seen *PanicInfo
	m := NewRecoveryMiddleware(RecoveryConfig{
		EnableStackTrace: true,
		OnPanic:          func(_ context.Context, info *PanicInfo) { seen = info },
	})

	ctx, id := WithUpdateID(context.Background())
	res := m.Run(ctx, 42, "leaderboard", func() error {
		var m map[string]int
		m["boom"]++
		return nil
	})

	assert.True(t, res.Recovered)
	assert.Equal(t, DefaultRecoveryConfig().UserErrorMessage, res.UserMessage)
	require.NotNil(t, seen)
	assert.Equal(t, id, seen.UpdateID)
	assert.Equal(t, int64(42), seen.UserID)
	assert.Equal(t, "leaderboard", seen.Command)
	assert.NotEmpty(t, seen.StackTrace)
}

func TestRecoveryTakesUserFromContext(t *testing.T) {
	var seen *PanicInfo
	m := NewRecoveryMiddleware(RecoveryConfig{
		OnPanic: func(_ context.Context, info *PanicInfo) { seen = info },
	})

	ctx := WithUserID(context.Background(), 7)
	res := m.Run(ctx, 0, "ping", func() error { panic("boom") })

	assert.True(t, res.Recovered)
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.UserID)
}

func TestRecoveryPassesErrorsThrough(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())
	want := errors.New("db down")

	res := m.Run(context.Background(), 1, "", func() error { return want })
	assert.False(t, res.Recovered)
	assert.ErrorIs(t, res.Err, want)
	assert.Empty(t, res.UserMessage)
}

func TestRecoveryLimitsReports(t *testing.T) {
	calls := 0
	m := NewRecoveryMiddleware(RecoveryConfig{
		MaxPanicsPerMinute: 1,
		OnPanic:            func(context.Context, *PanicInfo) { calls++ },
	})

	for i := 0; i < 3; i++ {
		res := m.Run(context.Background(), 1, "", func() error { panic("again") })
		assert.True(t, res.Recovered)
	}
	assert.Equal(t, 1, calls)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UpdateIDFromContext(ctx))
	assert.Zero(t, UserIDFromContext(ctx))

	ctx, id := WithUpdateID(ctx)
	ctx = WithUserID(ctx, 7)
	assert.Len(t, id, 36)
	assert.Equal(t, id, UpdateIDFromContext(ctx))
	assert.Equal(t, int64(7), UserIDFromContext(ctx))
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	var slow []string
	m, err := NewMetricsMiddleware(MetricsConfig{
		Registerer:           reg,
		SlowRequestThreshold: time.Nanosecond,
		OnSlowRequest:        func(cmd string, _ time.Duration, _ int64) { slow = append(slow, cmd) },
	})
	require.NoError(t, err)

	rc := m.Start("leaderboard", 1)
	time.Sleep(time.Millisecond)
	rc.End(nil)
	m.Start("leaderboard", 1).End(errors.New("x"))
	m.RecordScore(ScoreInserted)
	m.RecordAck(AckReply)
	m.RecordRateLimited("doggo")
	m.RecordPanic()

	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_requests_total", map[string]string{"command": "leaderboard", "result": "success"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_requests_total", map[string]string{"command": "leaderboard", "result": "error"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_scores_recorded_total", map[string]string{"outcome": "inserted"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_acknowledgements_total", map[string]string{"kind": "reply"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_rate_limited_total", map[string]string{"command": "doggo"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "wordle_bot_panics_total", nil))
	assert.Equal(t, 0.0, metricValue(t, reg, "wordle_bot_active_requests", nil))
	assert.Contains(t, slow, "leaderboard")

	_, err = NewMetricsMiddleware(MetricsConfig{Registerer: reg})
	assert.Error(t, err, "second registration on the same registry must fail")
}

func metricValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := g.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}
