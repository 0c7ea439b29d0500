package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// WarmLeaderboardJobName is the registered name of the cache warm-up job.
const WarmLeaderboardJobName = "warm_leaderboard"

// LeaderboardRenderer renders (and caches) the table of a week.
type LeaderboardRenderer interface {
	MarkdownLeaderboard(ctx context.Context, offset int) (string, error)
}

// WarmLeaderboardJob renders the current and previous week so the first
// /leaderboard after an expiry is served from the cache.
type WarmLeaderboardJob struct {
	renderer LeaderboardRenderer
	offsets  []int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWarmLeaderboardJob creates the job for the given week offsets
// (default: this week and last week).
func NewWarmLeaderboardJob(renderer LeaderboardRenderer, logger *slog.Logger, offsets ...int) *WarmLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if len(offsets) == 0 {
		offsets = []int{0, 1}
	}
	return &WarmLeaderboardJob{
		renderer: renderer,
		offsets:  offsets,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Name returns the job name.
func (j *WarmLeaderboardJob) Name() string {
	return WarmLeaderboardJobName
}

// Description returns a human-readable description.
func (j *WarmLeaderboardJob) Description() string {
	return "Renders recent weekly leaderboards into the cache"
}

// Run renders every configured week. It stops at the first failure.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	for _, offset := range j.offsets {
		table, err := j.renderer.MarkdownLeaderboard(ctx, offset)
		if err != nil {
			return fmt.Errorf("warm leaderboard offset %d: %w", offset, err)
		}
		j.logger.Debug("leaderboard warmed",
			"run_id", scheduler.RunIDFromContext(ctx),
			"week_offset", offset,
			"bytes", len(table),
		)
	}
	return nil
}
