// Package main - точка входа Wordle-бота.
//
// Бот слушает канал с головоломкой, записывает присланные результаты Wordle,
// отвечает на команды (/leaderboard, /doggo, /catto, ...) и каждый день
// публикует приглашение к новой головоломке.
//
// Архитектура следует принципам Clean Architecture:
// - Domain: разбор результатов, очки, недельные окна и таблица
// - Application: запись результата и запрос лидерборда
// - Infrastructure: SQLite/PostgreSQL, Redis, Telegram и pets API, планировщик
// - Interface: Telegram-бот и HTTP (health, metrics, JSON API)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wordle-club/wordle-bot/config"

	// Application layer
	"github.com/wordle-club/wordle-bot/internal/application/command"
	"github.com/wordle-club/wordle-bot/internal/application/query"
	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
	"github.com/wordle-club/wordle-bot/internal/domain/score"

	// Infrastructure layer
	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/pets"
	tgapi "github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/persistence/postgres"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/persistence/redis"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/persistence/sqlite"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/wordle-club/wordle-bot/internal/interface/http"
	"github.com/wordle-club/wordle-bot/internal/interface/http/handlers"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram"

	// Packages
	"github.com/wordle-club/wordle-bot/pkg/logger"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting wordle bot",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Location.String(),
		"store", cfg.Database.Driver,
	)

	clock := timeutil.SystemClock(cfg.App.Location)

	// Общий реестр метрик для бота, планировщика и /metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ ОЧКОВ (SQLite или PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing score store...")
		if err := store.Close(); err != nil {
			log.Warn("failed to close score store", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально: кеш таблиц и блокировка ежедневного поста)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		boardCache leaderboard.Cache
		postLocker jobs.Locker
	)
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			boardCache = redis.NewLeaderboardCache(redisCache)
			postLocker = redisCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (команды и запросы)
	// ─────────────────────────────────────────────────────────────────────────
	recorder := command.NewRecordResultHandler(store, boardCache, log)
	leaderboardQuery := query.NewGetLeaderboardHandler(store, boardCache, cfg.Redis.LeaderboardTTL, clock, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	tgConfig := tgapi.DefaultClientConfig(cfg.Telegram.Token)
	tgConfig.PollTimeout = int(cfg.Telegram.PollingTimeout.Seconds())
	// HTTP-таймаут должен пережить long-poll запрос.
	tgConfig.Timeout = cfg.Telegram.PollingTimeout + 30*time.Second
	tgConfig.Logger = log
	tgConfig.Debug = cfg.App.Debug
	tgClient := tgapi.NewClient(tgConfig)

	petsConfig := pets.DefaultClientConfig()
	petsConfig.DogURL = cfg.Pets.DogURL
	petsConfig.CatURL = cfg.Pets.CatURL
	petsConfig.Timeout = cfg.Pets.Timeout
	petsConfig.Logger = log
	petsClient := pets.NewClient(petsConfig)

	puzzleChat := telegram.NewPuzzleChat(cfg.Telegram.PuzzleChannel)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = cfg.App.Location
	schedConfig.Registerer = registry
	sched, err := scheduler.New(schedConfig)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	postConfig := jobs.DefaultPuzzlePostConfig()
	postConfig.URL = cfg.Scheduler.PuzzleURL
	postConfig.Location = cfg.App.Location
	postConfig.Timeout = cfg.Scheduler.JobTimeout
	postJob := jobs.NewPuzzlePostJob(petsClient, tgClient, puzzleChat.ID, postLocker, clock, log, postConfig)
	if err := sched.Register(postJob, scheduler.NewDailySchedule(
		cfg.Scheduler.PostHour, cfg.Scheduler.PostMinute, cfg.Scheduler.PostDelay, cfg.App.Location,
	)); err != nil {
		return fmt.Errorf("failed to register %s: %w", postJob.Name(), err)
	}

	if boardCache != nil {
		warmJob := jobs.NewWarmLeaderboardJob(leaderboardQuery, log)
		if err := sched.Register(warmJob, scheduler.NewIntervalSchedule(cfg.Scheduler.WarmInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", warmJob.Name(), err)
		}
	}

	// Без расписания задачи остаются доступны для /repost и /api/jobs.
	if !cfg.Scheduler.Enabled {
		for _, job := range sched.ListJobs() {
			if err := sched.DisableJob(job.Name); err != nil {
				return fmt.Errorf("failed to disable %s: %w", job.Name, err)
			}
		}
		log.Info("scheduled runs disabled", "jobs", len(sched.ListJobs()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. СОЗДАНИЕ TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	botConfig := telegram.DefaultBotConfig()
	botConfig.AdminIDs = cfg.Telegram.AdminIDs
	botConfig.Prefixes = commandPrefixes(cfg.Telegram.CommandPrefix)
	botConfig.HandlerTimeout = cfg.Telegram.HandlerTimeout
	botConfig.RateLimit.RequestsPerMinute = cfg.Telegram.UserRateLimit
	botConfig.RateLimit.BanDuration = cfg.Telegram.UserRateLimitBan
	botConfig.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.Registerer = registry
	botConfig.Logger = log
	botConfig.Debug = cfg.App.Debug

	bot, err := telegram.NewBot(tgClient, botConfig, telegram.BotDependencies{
		PuzzleChat:  puzzleChat,
		Recorder:    recorder,
		Leaderboard: leaderboardQuery,
		Pets:        petsClient,
		Jobs:        sched,
		RepostJob:   jobs.PuzzlePostJobName,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		health.SetTimeout(cfg.HTTP.HealthTimeout)
		health.AddCheck("database", handlers.NewPingCheck(store))
		if redisCache != nil {
			health.AddOptionalCheck("redis", handlers.NewPingCheck(redisCache))
		}

		httpConfig := httpserver.DefaultConfig()
		httpConfig.Host = cfg.HTTP.Host
		httpConfig.Port = cfg.HTTP.Port
		httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled
		httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
		httpConfig.Version = cfg.App.Version

		httpServer = httpserver.NewServer(httpConfig, httpserver.Dependencies{
			Leaderboard:   leaderboardQuery,
			Jobs:          sched,
			HealthChecker: health,
			Gatherer:      registry,
			Logger:        logger.New(os.Stdout, logger.ParseLevel(cfg.Observability.LogLevel)),
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)

	if httpServer != nil {
		serverErrs := httpServer.StartAsync()
		go func() {
			if err, ok := <-serverErrs; ok {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	if err := sched.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		if err := bot.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("wordle bot is running", "puzzle_channel", cfg.Telegram.PuzzleChannel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case runErr = <-errCh:
		log.Error("service error", "error", runErr)
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", "error", err)
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", "error", err)
		}
	}

	log.Info("shutdown completed")
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// scoreStore - хранилище очков, которое умеет отвечать на health-проверку.
type scoreStore interface {
	score.Repository
	Ping(ctx context.Context) error
}

// openStore открывает выбранное хранилище и готовит схему.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (scoreStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		log.Info("connecting to PostgreSQL...")
		pgConfig := postgres.DefaultConfig()
		pgConfig.URL = cfg.Database.URL
		pgConfig.MaxConns = int32(cfg.Database.MaxConns)
		pgConfig.MinConns = int32(cfg.Database.MinConns)
		pgConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		conn, err := postgres.NewConnection(ctx, pgConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if status, err := migrator.Status(ctx); err != nil {
			log.Warn("failed to get migration status", "error", err)
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", "applied", applied, "total", len(status))
		}
		return postgres.NewScoreRepository(conn), nil

	default:
		log.Info("opening SQLite database...")
		conn, err := sqlite.NewConnection(ctx, sqlite.Config{
			Path:        cfg.Database.Path,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		repo, err := sqlite.NewScoreRepository(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		log.Info("SQLite database ready", "path", conn.Path())
		return repo, nil
	}
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.DialTimeout = c.DialTimeout
	return rc
}

// commandPrefixes всегда принимает "/" и добавляет настроенный префикс.
func commandPrefixes(extra string) []string {
	prefixes := []string{"/"}
	if extra = strings.TrimSpace(extra); extra != "" && extra != "/" {
		prefixes = append(prefixes, extra)
	}
	return prefixes
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func slogLevel(s string) slog.Level {
	switch logger.ParseLevel(s) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
