// Package jobs contains the scheduled jobs of the Wordle bot.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUZZLE POST JOB
// ══════════════════════════════════════════════════════════════════════════════

// PuzzlePostJobName is the registered name; /repost runs it by this name.
const PuzzlePostJobName = "puzzle_post"

// Default texts of the daily post.
const (
	DefaultPuzzleTitle       = "Wordle time!"
	DefaultPuzzleDescription = "Which one will it be this time?"
	DefaultPuzzleURL         = "https://www.nytimes.com/games/wordle/index.html"
)

// PetSource returns the URL of a random pet picture.
type PetSource interface {
	Random(ctx context.Context) (string, error)
}

// Poster sends messages to the puzzle chat.
type Poster interface {
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) (*telegram.Message, error)
	SendText(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// Locker keeps several bot replicas from posting the same day twice.
type Locker interface {
	TryLock(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
}

// ChatFunc returns the puzzle chat id once it is known.
type ChatFunc func() (int64, bool)

// PuzzlePostConfig contains configuration for the puzzle post job.
type PuzzlePostConfig struct {
	Title       string
	Description string
	URL         string

	// Location decides which calendar day a post belongs to.
	Location *time.Location

	// LockTTL is how long the per-day lock is held.
	LockTTL time.Duration

	// Timeout bounds one run.
	Timeout time.Duration
}

// DefaultPuzzlePostConfig returns sensible defaults.
func DefaultPuzzlePostConfig() PuzzlePostConfig {
	return PuzzlePostConfig{
		Title:       DefaultPuzzleTitle,
		Description: DefaultPuzzleDescription,
		URL:         DefaultPuzzleURL,
		Location:    time.Local,
		LockTTL:     time.Hour,
		Timeout:     time.Minute,
	}
}

// PuzzlePostJob posts the daily "Wordle time!" message with a pet picture.
type PuzzlePostJob struct {
	pets   PetSource
	poster Poster
	chat   ChatFunc
	locker Locker
	now    timeutil.Clock
	logger *slog.Logger
	config PuzzlePostConfig
}

// NewPuzzlePostJob creates the job. locker may be nil.
func NewPuzzlePostJob(
	pets PetSource,
	poster Poster,
	chat ChatFunc,
	locker Locker,
	now timeutil.Clock,
	logger *slog.Logger,
	config PuzzlePostConfig,
) *PuzzlePostJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if now == nil {
		now = timeutil.SystemClock(config.Location)
	}
	if config.Title == "" {
		config.Title = DefaultPuzzleTitle
	}

	return &PuzzlePostJob{
		pets:   pets,
		poster: poster,
		chat:   chat,
		locker: locker,
		now:    now,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *PuzzlePostJob) Name() string {
	return PuzzlePostJobName
}

// Description returns a human-readable description.
func (j *PuzzlePostJob) Description() string {
	return "Posts the daily Wordle link with a random pet picture"
}

// Caption returns the text of the post.
func (j *PuzzlePostJob) Caption() string {
	parts := []string{j.config.Title}
	if j.config.Description != "" {
		parts = append(parts, j.config.Description)
	}
	if j.config.URL != "" {
		parts = append(parts, j.config.URL)
	}
	return strings.Join(parts, "\n")
}

// Run posts the message. Scheduled runs take a per-day lock first; manual
// reposts always post.
func (j *PuzzlePostJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	logger := j.logger.With("job", PuzzlePostJobName, "run_id", scheduler.RunIDFromContext(ctx))

	chatID, ok := j.chat()
	if !ok {
		logger.Warn("puzzle chat is not known yet, skipping post")
		return nil
	}

	if j.locker != nil && !scheduler.IsManualRun(ctx) {
		day := timeutil.FormatDateStr(j.now().In(j.config.Location))
		acquired, err := j.locker.TryLock(ctx, PuzzlePostJobName+":"+day, scheduler.RunIDFromContext(ctx), j.config.LockTTL)
		if err != nil {
			// A broken lock store must not cost the day its post.
			logger.Warn("puzzle post lock unavailable, posting anyway", "error", err)
		} else if !acquired {
			logger.Info("puzzle already posted today by another instance", "day", day)
			return nil
		}
	}

	caption := j.Caption()

	image, err := j.pets.Random(ctx)
	if err != nil {
		logger.Warn("no pet picture for puzzle post", "error", err)
	} else {
		_, err := j.poster.SendPhoto(ctx, chatID, image, caption)
		if err == nil {
			logger.Info("puzzle posted", "chat_id", chatID, "image", image)
			return nil
		}
		logger.Warn("failed to send puzzle photo, falling back to text", "error", err)
	}

	if _, err := j.poster.SendText(ctx, chatID, caption); err != nil {
		return fmt.Errorf("post puzzle: %w", err)
	}
	logger.Info("puzzle posted without picture", "chat_id", chatID)
	return nil
}
