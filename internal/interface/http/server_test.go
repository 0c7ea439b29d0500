package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-club/wordle-bot/internal/application/query"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler"
	"github.com/wordle-club/wordle-bot/internal/interface/http/handlers"
	"github.com/wordle-club/wordle-bot/pkg/logger"
)

type fakeLeaderboard struct {
	offsets []int
	result  *query.GetLeaderboardResult
	err     error
	panics  bool
}

func (f *fakeLeaderboard) Handle(_ context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error) {
	if f.panics {
		panic("render exploded")
	}
	f.offsets = append(f.offsets, q.Offset)
	return f.result, f.err
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	deps.Logger = logger.New(&logs, logger.LevelDebug)
	return NewServer(cfg, deps).Handler(), &logs
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLeaderboardEndpoint(t *testing.T) {
	lb := &fakeLeaderboard{result: &query.GetLeaderboardResult{
		Markdown:  "+------+\n| UsEr |\n+------+",
		TopRanks:  "👑 alice",
		Rows:      []query.LeaderboardRowDTO{{UserID: 1, Nickname: "alice", Date: "2024-05-13", Score: 5}},
		WeekStart: "2024-05-13",
		WeekEnd:   "2024-05-19",
	}}
	h, logs := newTestServer(t, DefaultConfig(), Dependencies{Leaderboard: lb})

	rec := get(h, "/api/leaderboard?offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2}, lb.offsets)

	var body struct {
		Markdown string                    `json:"markdown"`
		TopRanks string                    `json:"top_ranks"`
		Rows     []query.LeaderboardRowDTO `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "👑 alice", body.TopRanks)
	assert.Contains(t, body.Markdown, "UsEr")
	require.Len(t, body.Rows, 1)
	assert.Equal(t, 5, body.Rows[0].Score)

	assert.Contains(t, logs.String(), `"path":"/api/leaderboard"`)
}

func TestLeaderboardEndpointDefaultsToCurrentWeek(t *testing.T) {
	lb := &fakeLeaderboard{result: &query.GetLeaderboardResult{}}
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{Leaderboard: lb})

	require.Equal(t, http.StatusOK, get(h, "/api/leaderboard").Code)
	assert.Equal(t, []int{0}, lb.offsets)
}

func TestLeaderboardEndpointRejectsBadOffset(t *testing.T) {
	lb := &fakeLeaderboard{}
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{Leaderboard: lb})

	rec := get(h, "/api/leaderboard?offset=last", "X-Request-ID", "req-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, lb.offsets)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_offset", body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestLeaderboardEndpointRejectsFarOffset(t *testing.T) {
	lb := &fakeLeaderboard{}
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{Leaderboard: lb})

	for _, raw := range []string{"5201", "-9223372036854775808"} {
		rec := get(h, "/api/leaderboard?offset="+raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
	assert.Empty(t, lb.offsets)
}

func TestLeaderboardEndpointStorageError(t *testing.T) {
	h, logs := newTestServer(t, DefaultConfig(), Dependencies{
		Leaderboard: &fakeLeaderboard{err: errors.New("database is locked")},
	})

	rec := get(h, "/api/leaderboard")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "database is locked")
}

func TestRecoveryMiddleware(t *testing.T) {
	h, logs := newTestServer(t, DefaultConfig(), Dependencies{
		Leaderboard: &fakeLeaderboard{panics: true},
	})

	rec := get(h, "/api/leaderboard")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "render exploded")
	assert.Contains(t, logs.String(), `"status":500`)
}

func TestRequestID(t *testing.T) {
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{})

	assert.Equal(t, "abc", get(h, "/live", "X-Request-ID", "abc").Header().Get("X-Request-ID"))
	assert.Len(t, get(h, "/live").Header().Get("X-Request-ID"), 36)
}

func TestHealthEndpoint(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(context.Context) error { return nil })
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{HealthChecker: checker})

	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("database", func(context.Context) error { return errors.New("no such table") })
	rec = get(h, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, handlers.StatusDown, status.Status)
	assert.Equal(t, "no such table", status.Checks["database"].Message)
}

func TestHealthEndpointWithoutChecker(t *testing.T) {
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{})
	assert.Equal(t, http.StatusOK, get(h, "/health").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "wordle_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h, logs := newTestServer(t, DefaultConfig(), Dependencies{Gatherer: reg})
	rec := get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wordle_test_total 1")
	assert.Contains(t, logs.String(), `"level":"DEBUG"`, "scrapes are logged at debug")

	cfg := DefaultConfig()
	cfg.EnableMetrics = false
	h, _ = newTestServer(t, cfg, Dependencies{Gatherer: reg})
	assert.Equal(t, http.StatusNotFound, get(h, "/metrics").Code)
}

func TestLeaderboardEndpointRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	h, _ := newTestServer(t, cfg, Dependencies{Leaderboard: &fakeLeaderboard{result: &query.GetLeaderboardResult{}}})

	assert.Equal(t, http.StatusOK, get(h, "/api/leaderboard", "X-Real-IP", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/leaderboard", "X-Real-IP", "10.0.0.1").Code)
	rec := get(h, "/api/leaderboard", "X-Real-IP", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(h, "/api/leaderboard", "X-Real-IP", "10.0.0.2").Code)
	assert.Equal(t, http.StatusOK, get(h, "/health", "X-Real-IP", "10.0.0.1").Code, "health is not limited")
}

type fakeJobs struct {
	jobs    []scheduler.JobInfo
	history []scheduler.JobResult
	limit   int
}

func (f *fakeJobs) ListJobs() []scheduler.JobInfo { return f.jobs }

func (f *fakeJobs) GetHistory(limit int) []scheduler.JobResult {
	f.limit = limit
	return f.history
}

func TestJobsEndpoint(t *testing.T) {
	started := time.Date(2024, 5, 19, 18, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{
		jobs: []scheduler.JobInfo{{Name: "weekly_repost", Enabled: false, Schedule: "0 18 * * 0", RunCount: 2}},
		history: []scheduler.JobResult{
			{RunID: "r1", JobName: "weekly_repost", StartedAt: started, Duration: time.Second, Success: true},
			{RunID: "r2", JobName: "weekly_repost", StartedAt: started.Add(time.Hour), Duration: 2 * time.Second, Manual: true, Error: errors.New("send failed")},
		},
	}
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{Jobs: jobs})

	rec := get(h, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobHistoryLimit, jobs.limit)

	var body struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
		Runs []jobRunView        `json:"recent_runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "weekly_repost", body.Jobs[0].Name)
	assert.False(t, body.Jobs[0].Enabled)

	require.Len(t, body.Runs, 2)
	assert.Equal(t, "r2", body.Runs[0].RunID, "newest first")
	assert.Equal(t, "send failed", body.Runs[0].Error)
	assert.True(t, body.Runs[0].Manual)
	assert.Equal(t, "2s", body.Runs[0].Duration)
	assert.Equal(t, "r1", body.Runs[1].RunID)
	assert.Empty(t, body.Runs[1].Error)
}

func TestJobsEndpointNeedsScheduler(t *testing.T) {
	h, _ := newTestServer(t, DefaultConfig(), Dependencies{})
	assert.Equal(t, http.StatusNotFound, get(h, "/api/jobs").Code)
}

func TestIPRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	rl := newIPRateLimiter(1, time.Minute, func() time.Time { return now })

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("b"))
	assert.NotContains(t, rl.requests, "a", "stale keys are pruned")
	assert.True(t, rl.Allow("a"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}
