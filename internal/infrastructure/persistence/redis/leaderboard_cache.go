package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache stores rendered weekly tables keyed by the Monday of the
// week and the week's version. Invalidate bumps the version, so a table
// rendered from rows read before a write can never be served after it.
type LeaderboardCache struct {
	cache *Cache
}

// Compile-time check.
var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a leaderboard cache on top of a Redis client.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// Version returns the current version of a week; 0 before the first write.
func (l *LeaderboardCache) Version(ctx context.Context, weekKey string) (int64, error) {
	v, err := l.cache.GetInt64(ctx, LeaderboardVersionKey(weekKey))
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	return v, err
}

// GetRendered returns the cached table of one version; a miss is ("", false, nil).
func (l *LeaderboardCache) GetRendered(ctx context.Context, weekKey string, version int64) (string, bool, error) {
	val, err := l.cache.GetString(ctx, LeaderboardKey(weekKey, version))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// SetRendered stores the table of one version for ttl.
func (l *LeaderboardCache) SetRendered(ctx context.Context, weekKey string, version int64, rendered string, ttl time.Duration) error {
	return l.cache.SetString(ctx, LeaderboardKey(weekKey, version), rendered, ttl)
}

// Invalidate bumps the week's version and drops the tables of older versions.
func (l *LeaderboardCache) Invalidate(ctx context.Context, weekKey string) error {
	if _, err := l.cache.Incr(ctx, LeaderboardVersionKey(weekKey)); err != nil {
		return fmt.Errorf("bump leaderboard version: %w", err)
	}
	// Older versions are unreachable already; this only frees memory.
	if err := l.cache.DeleteByPattern(ctx, PrefixLeaderboard+weekKey+":*"); err != nil {
		return fmt.Errorf("drop stale leaderboards: %w", err)
	}
	return nil
}
