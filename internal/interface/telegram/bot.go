// Package telegram implements the Telegram interface of the Wordle bot.
// It receives updates, records results posted in the puzzle chat, routes
// commands to handlers and manages the bot lifecycle.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wordle-club/wordle-bot/internal/application/command"
	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/pets"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/handler"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/middleware"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// AdminIDs may run admin commands and are never rate limited.
	AdminIDs []int64

	// Prefixes are the accepted command prefixes.
	Prefixes []string

	// HandlerTimeout bounds the handling of one update.
	HandlerTimeout time.Duration

	// RateLimit applies to commands; PetRateLimit to doggo and catto.
	RateLimit    middleware.RateLimitConfig
	PetRateLimit middleware.RateLimitConfig

	// Registerer receives the bot metrics.
	Registerer prometheus.Registerer

	// GracefulShutdownTimeout is how long Stop waits for running handlers.
	GracefulShutdownTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables debug logging.
	Debug bool
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	pet := middleware.DefaultRateLimitConfig()
	pet.RequestsPerMinute = 4
	pet.BurstSize = 2

	return BotConfig{
		Prefixes:                DefaultPrefixes,
		HandlerTimeout:          30 * time.Second,
		RateLimit:               middleware.DefaultRateLimitConfig(),
		PetRateLimit:            pet,
		GracefulShutdownTimeout: 30 * time.Second,
		Logger:                  slog.Default(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// API is the part of the Bot API client the bot uses.
type API interface {
	Sender
	ChatLookup
	handler.Pinger
	SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string) error
	Reply(ctx context.Context, msg *telegram.Message, text string) (*telegram.Message, error)
	StartPolling(ctx context.Context, handler telegram.UpdateHandler) error
}

var _ API = (*telegram.Client)(nil)

// ResultRecorder stores a posted result.
type ResultRecorder interface {
	Handle(ctx context.Context, cmd command.RecordResultCommand) (*command.RecordResultResult, error)
}

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	// PuzzleChat selects the chat whose messages are results. Required.
	PuzzleChat *PuzzleChat

	// Recorder and Leaderboard are required.
	Recorder    ResultRecorder
	Leaderboard handler.LeaderboardQuery

	// Pets enables doggo and catto when set.
	Pets handler.PetSource

	// Jobs and RepostJob enable repost when set.
	Jobs      handler.JobRunner
	RepostJob string
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot controller.
type Bot struct {
	config BotConfig
	api    API
	router *Router
	puzzle *PuzzleChat
	logger *slog.Logger

	recorder ResultRecorder

	rateLimits *middleware.CommandRateLimits
	recovery   *middleware.RecoveryMiddleware
	metrics    *middleware.MetricsMiddleware

	running   bool
	runningMu sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewBot creates a new Telegram bot with all dependencies.
func NewBot(api API, config BotConfig, deps BotDependencies) (*Bot, error) {
	if api == nil {
		return nil, errors.New("telegram api client is required")
	}
	if deps.PuzzleChat == nil {
		return nil, errors.New("puzzle chat is required")
	}
	if deps.Recorder == nil || deps.Leaderboard == nil {
		return nil, errors.New("result recorder and leaderboard query are required")
	}

	defaults := DefaultBotConfig()
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}

	metrics, err := middleware.NewMetricsMiddleware(middleware.MetricsConfig{
		Registerer:           config.Registerer,
		SlowRequestThreshold: middleware.DefaultMetricsConfig().SlowRequestThreshold,
		OnSlowRequest: func(cmd string, d time.Duration, userID int64) {
			config.Logger.Warn("slow telegram handler", "command", cmd, "duration", d, "user_id", userID)
		},
	})
	if err != nil {
		return nil, err
	}

	recovery := middleware.NewRecoveryMiddleware(middleware.RecoveryConfig{
		EnableStackTrace: true,
		Logger:           config.Logger,
	})

	config.RateLimit.Whitelist = append(config.RateLimit.Whitelist, config.AdminIDs...)
	config.PetRateLimit.Whitelist = append(config.PetRateLimit.Whitelist, config.AdminIDs...)
	limits := middleware.NewCommandRateLimits(config.RateLimit)

	router := NewRouter(api, RouterConfig{
		Logger:   config.Logger,
		Prefixes: config.Prefixes,
		Debug:    config.Debug,
	})
	prefix := router.Prefix()

	router.RegisterCommand("leaderboard", handler.NewLeaderboardHandler(deps.Leaderboard, presenter.NewLeaderboardPresenter(), prefix))
	router.RegisterCommand("ping", handler.NewPingHandler(api))
	router.RegisterCommand("help", handler.NewHelpHandler(prefix))

	if deps.Pets != nil {
		router.RegisterCommand("doggo", handler.NewPetHandler(deps.Pets, pets.Dog))
		router.RegisterCommand("catto", handler.NewPetHandler(deps.Pets, pets.Cat))
		limits.AddCommand("doggo", config.PetRateLimit)
		limits.AddCommand("catto", config.PetRateLimit)
	}
	if deps.Jobs != nil && deps.RepostJob != "" {
		router.RegisterCommand("repost", handler.NewRepostHandler(deps.Jobs, deps.RepostJob, config.AdminIDs))
	}

	return &Bot{
		config:     config,
		api:        api,
		router:     router,
		puzzle:     deps.PuzzleChat,
		logger:     config.Logger,
		recorder:   deps.Recorder,
		rateLimits: limits,
		recovery:   recovery,
		metrics:    metrics,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token, resolves the puzzle chat and polls for updates
// until ctx is cancelled or Stop is called.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancel = cancel
	b.runningMu.Unlock()

	defer func() {
		cancel()
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()
	}()

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}

	if b.puzzle.Ref() == "" {
		b.logger.Warn("no puzzle chat configured, results will not be recorded")
	} else if err := b.puzzle.Resolve(ctx, b.api); err != nil {
		return err
	}
	if id, ok := b.puzzle.ID(); ok {
		b.logger.Info("puzzle chat resolved", "chat", b.puzzle.Ref(), "chat_id", id)
	} else {
		b.logger.Info("puzzle chat will be learned from its first message", "chat", b.puzzle.Ref())
	}

	go b.cleanupLoop(ctx)

	b.logger.Info("starting long polling", "commands", b.router.Commands())
	return b.api.StartPolling(ctx, b.HandleUpdate)
}

// Stop stops polling and waits for running handlers.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	cancel := b.cancel
	b.runningMu.Unlock()
	if cancel == nil {
		return nil
	}

	b.logger.Info("stopping telegram bot")
	cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
		return nil
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
		return nil
	case <-ctx.Done():
		b.logger.Warn("context cancelled during shutdown")
		return ctx.Err()
	}
}

// IsRunning returns whether the bot is currently running.
func (b *Bot) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return err
	}

	b.router.SetBotUsername(me.Username)
	b.logger.Info("bot verified",
		"id", me.ID,
		"username", me.Username,
	)
	return nil
}

func (b *Bot) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.rateLimits.Cleanup(); n > 0 && b.config.Debug {
				b.logger.Debug("rate limiter cleanup", "dropped", n, "tracked", b.rateLimits.Size())
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	msg := update.EffectiveMessage()
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}

	b.wg.Add(1)
	defer b.wg.Done()

	ctx, updateID := middleware.WithUpdateID(ctx)
	ctx = middleware.WithUserID(ctx, msg.From.ID)
	if b.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.HandlerTimeout)
		defer cancel()
	}

	res := b.recovery.Run(ctx, msg.From.ID, "", func() error {
		return b.handleMessage(ctx, msg)
	})

	if res.Recovered {
		b.metrics.RecordPanic()
		if _, err := b.api.Reply(ctx, msg, res.UserMessage); err != nil {
			b.logger.Warn("failed to send panic notice", "update_id", updateID, "error", err)
		}
		return fmt.Errorf("update %d: handler panicked", update.UpdateID)
	}

	if res.Err != nil {
		b.logger.Log(ctx, failureLevel(res.Err), "failed to handle update",
			"update_id", updateID,
			"telegram_update", update.UpdateID,
			"chat_id", msg.Chat.ID,
			"user_id", msg.From.ID,
			"error", res.Err,
		)
	}
	return res.Err
}

// failureLevel logs bad input at info and upstream outages at warn.
func failureLevel(err error) slog.Level {
	switch {
	case shared.IsValidation(err):
		return slog.LevelInfo
	case shared.IsExternalService(err):
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// handleMessage records a result from the puzzle chat; anything else is a
// potential command.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if b.puzzle.Match(msg.Chat) {
		handled, err := b.handleResult(ctx, msg)
		if handled || err != nil {
			return err
		}
	}
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleResult(ctx context.Context, msg *telegram.Message) (bool, error) {
	rc := b.metrics.Start("result", msg.From.ID)

	res, err := b.recorder.Handle(ctx, command.RecordResultCommand{
		UserID:   msg.From.ID,
		Nickname: msg.From.DisplayName(),
		Text:     msg.Content(),
	})
	if err != nil {
		rc.End(err)
		return true, err
	}
	if !res.Matched {
		rc.Command = "message"
		rc.End(nil)
		return false, nil
	}

	if res.Outcome == score.Updated {
		b.metrics.RecordScore(middleware.ScoreUpdated)
	} else {
		b.metrics.RecordScore(middleware.ScoreInserted)
	}

	err = b.acknowledge(ctx, msg, res)
	rc.End(err)
	return true, err
}

// acknowledge reacts with the score symbol, replying with it when the chat
// does not accept the reaction. Scores without a symbol get nothing.
func (b *Bot) acknowledge(ctx context.Context, msg *telegram.Message, res *command.RecordResultResult) error {
	if !res.HasReaction {
		b.metrics.RecordAck(middleware.AckNone)
		b.logger.Debug("no reaction for score", "score", res.Record.Score, "user_id", res.Record.UserID)
		return nil
	}

	err := b.api.SetMessageReaction(ctx, msg.Chat.ID, msg.MessageID, res.Reaction)
	if err == nil {
		b.metrics.RecordAck(middleware.AckReaction)
		return nil
	}
	b.logger.Debug("reaction rejected, replying instead", "error", err)

	if _, err := b.api.Reply(ctx, msg, res.Reaction); err != nil {
		b.metrics.RecordAck(middleware.AckFailed)
		return fmt.Errorf("acknowledge result: %w", err)
	}
	b.metrics.RecordAck(middleware.AckReply)
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message) error {
	name, args, ok := b.router.Parse(msg.Content())
	if !ok || !b.router.HasCommand(name) {
		return nil
	}

	if limit := b.rateLimits.Allow(msg.From.ID, name); !limit.Allowed {
		b.metrics.RecordRateLimited(name)
		if limit.Notify {
			if _, err := b.api.Reply(ctx, msg, limit.Message()); err != nil {
				b.logger.Warn("failed to send rate limit notice", "error", err)
			}
		}
		return nil
	}

	rc := b.metrics.Start(name, msg.From.ID)
	err := b.router.HandleCommand(ctx, CommandContext{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Command:   name,
		Args:      args,
		Message:   msg,
	})
	rc.End(err)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// Router returns the router for extra command registration.
func (b *Bot) Router() *Router {
	return b.router
}

// PuzzleChat returns the puzzle chat matcher.
func (b *Bot) PuzzleChat() *PuzzleChat {
	return b.puzzle
}
