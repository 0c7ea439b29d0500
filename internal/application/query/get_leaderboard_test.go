package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

type memScores struct {
	records []score.Record
	calls   int
	err     error
}

func (m *memScores) Upsert(context.Context, score.Record) (score.UpsertOutcome, error) {
	return score.Inserted, nil
}

func (m *memScores) ListBetween(_ context.Context, start, end time.Time) ([]score.Record, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []score.Record
	for _, r := range m.records {
		if r.Date.After(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memScores) Ping(context.Context) error { return nil }
func (m *memScores) Close() error               { return nil }

type memCache struct {
	data     map[string]string
	versions map[string]int64
	ttl      time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}, versions: map[string]int64{}}
}

func cacheKey(week string, version int64) string {
	return fmt.Sprintf("%s:v%d", week, version)
}

func (c *memCache) Version(_ context.Context, week string) (int64, error) {
	return c.versions[week], nil
}

func (c *memCache) GetRendered(_ context.Context, week string, version int64) (string, bool, error) {
	s, ok := c.data[cacheKey(week, version)]
	return s, ok, nil
}

func (c *memCache) SetRendered(_ context.Context, week string, version int64, rendered string, ttl time.Duration) error {
	c.data[cacheKey(week, version)] = rendered
	c.ttl = ttl
	return nil
}

func (c *memCache) Invalidate(_ context.Context, week string) error {
	c.versions[week]++
	return nil
}

// racingScores lands a write right after the first ListBetween has taken
// its snapshot, the way a concurrent RecordResult would.
type racingScores struct {
	*memScores
	cache leaderboard.Cache
	late  score.Record
	done  bool
}

func (r *racingScores) ListBetween(ctx context.Context, start, end time.Time) ([]score.Record, error) {
	out, err := r.memScores.ListBetween(ctx, start, end)
	if !r.done {
		r.done = true
		r.records = append(r.records, r.late)
		if err := r.cache.Invalidate(ctx, leaderboard.WeekKeyFor(r.late.Date)); err != nil {
			return nil, err
		}
	}
	return out, err
}

// 2024-05-15 is a Wednesday.
var now = time.Date(2024, 5, 15, 20, 0, 0, 0, time.UTC)

func d(day int) time.Time { return timeutil.Date(2024, 5, day) }

func fixture() *memScores {
	return &memScores{records: []score.Record{
		{UserID: 1, Nickname: "alice", Date: d(13), Score: 4},
		{UserID: 1, Nickname: "alice", Date: d(15), Score: 3},
		{UserID: 2, Nickname: "bob", Date: d(13), Score: 5},
		{UserID: 2, Nickname: "bob", Date: d(14), Score: 1},
		{UserID: 3, Nickname: "carol", Date: d(15), Score: 6},
		// previous week
		{UserID: 1, Nickname: "alice", Date: d(12), Score: 6},
		{UserID: 2, Nickname: "bob", Date: d(8), Score: 2},
	}}
}

func newHandler(scores score.Repository, cache leaderboard.Cache) *GetLeaderboardHandler {
	return NewGetLeaderboardHandler(scores, cache, time.Minute, timeutil.FixedClock(now),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLeaderboardCurrentWeek(t *testing.T) {
	h := newHandler(fixture(), nil)

	rows, err := h.Leaderboard(context.Background(), 0)
	require.NoError(t, err)

	want := []score.Record{
		{UserID: 3, Nickname: "carol", Date: d(15), Score: 6},
		{UserID: 2, Nickname: "bob", Date: d(13), Score: 5},
		{UserID: 1, Nickname: "alice", Date: d(13), Score: 4},
		{UserID: 1, Nickname: "alice", Date: d(15), Score: 3},
		{UserID: 2, Nickname: "bob", Date: d(14), Score: 1},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Leaderboard() mismatch (-want +got):\n%s", diff)
	}
}

func TestLeaderboardPreviousWeek(t *testing.T) {
	h := newHandler(fixture(), nil)

	rows, err := h.Leaderboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].Nickname)

	ranks, err := h.TopRanks(context.Background(), -1)
	require.NoError(t, err)
	assert.Equal(t, "👑 alice\n🏆 bob\n", ranks)
}

func TestTopRanksEmptyWeek(t *testing.T) {
	h := newHandler(fixture(), nil)

	ranks, err := h.TopRanks(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, ranks)

	md, err := h.MarkdownLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.NoScoresMessage, md)
}

func TestMarkdownLeaderboardUsesCache(t *testing.T) {
	scores := fixture()
	cache := newMemCache()
	h := newHandler(scores, cache)
	ctx := context.Background()

	first, err := h.MarkdownLeaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, first, "| UsEr | Monday | Tuesday | Wednesday |   |")
	assert.Equal(t, first, cache.data["2024-05-13:v0"])
	assert.Equal(t, time.Minute, cache.ttl)

	second, err := h.MarkdownLeaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, scores.calls)
}

func TestHandle(t *testing.T) {
	h := newHandler(fixture(), nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Offset: 0})
	require.NoError(t, err)

	assert.False(t, res.IsEmpty())
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, "2024-05-13", res.WeekStart)
	assert.Equal(t, "2024-05-19", res.WeekEnd)
	assert.Equal(t, "👑 alice\n🏆 bob and carol\n", res.TopRanks)
	for _, label := range []string{"ali", "bob", "car"} {
		assert.Contains(t, res.Markdown, label)
	}
	assert.Equal(t, LeaderboardRowDTO{UserID: 3, Nickname: "carol", Date: "2024-05-15", Score: 6}, res.Rows[0])
}

func TestHandlePropagatesStoreError(t *testing.T) {
	scores := fixture()
	scores.err = errors.New("database is locked")
	h := newHandler(scores, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	assert.ErrorIs(t, err, scores.err)
}

func TestMarkdownLeaderboardSeesWriteAfterInvalidate(t *testing.T) {
	cache := newMemCache()
	scores := &racingScores{
		memScores: fixture(),
		cache:     cache,
		late:      score.Record{UserID: 9, Nickname: "zara", Date: d(14), Score: 6},
	}
	h := newHandler(scores, cache)
	ctx := context.Background()

	before, err := h.MarkdownLeaderboard(ctx, 0)
	require.NoError(t, err)
	assert.NotContains(t, before, "zar")

	after, err := h.MarkdownLeaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, after, "zar")

	rows, err := h.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestHandleRendersFromItsOwnRows(t *testing.T) {
	cache := newMemCache()
	scores := fixture()
	h := newHandler(scores, cache)
	ctx := context.Background()

	_, err := h.MarkdownLeaderboard(ctx, 0)
	require.NoError(t, err)

	// A write that skipped invalidation must still show up in both halves.
	scores.records = append(scores.records, score.Record{UserID: 9, Nickname: "zara", Date: d(14), Score: 6})

	res, err := h.Handle(ctx, GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Contains(t, res.TopRanks, "zara")
	assert.Contains(t, res.Markdown, "zar")
}

func TestCacheUnavailableFallsBackToStore(t *testing.T) {
	scores := fixture()
	h := newHandler(scores, failingCache{})

	md, err := h.MarkdownLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, md, "car")
	assert.Equal(t, 1, scores.calls)
}

type failingCache struct{}

func (failingCache) Version(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingCache) GetRendered(context.Context, string, int64) (string, bool, error) {
	panic("read without a version")
}

func (failingCache) SetRendered(context.Context, string, int64, string, time.Duration) error {
	panic("write without a version")
}

func (failingCache) Invalidate(context.Context, string) error { return nil }
