// Package query содержит операции чтения (CQRS - запросы).
// Запросы не меняют состояние, они только читают и возвращают данные.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Недельный лидерборд: строки окна, пьедестал и компактная таблица.
// Offset считает целые недели назад от текущей (0 - текущая неделя).
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCacheTTL - время жизни отрисованной таблицы в кеше.
const DefaultCacheTTL = 10 * time.Minute

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Offset - сдвиг в неделях назад; знак игнорируется.
	Offset int
}

// LeaderboardRowDTO - запись окна для внешних потребителей.
type LeaderboardRowDTO struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Date     string `json:"date"`
	Score    int    `json:"score"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Markdown - отрисованная таблица или NoScoresMessage.
	Markdown string `json:"markdown"`

	// TopRanks - строки пьедестала; пусто, если записей нет.
	TopRanks string `json:"top_ranks"`

	// Rows - записи окна в порядке лидерборда.
	Rows []LeaderboardRowDTO `json:"rows"`

	// WeekStart, WeekEnd - понедельник и воскресенье окна.
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// IsEmpty сообщает, что в окне нет ни одной записи.
func (r *GetLeaderboardResult) IsEmpty() bool {
	return len(r.Rows) == 0
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	scores   score.Repository
	cache    leaderboard.Cache
	cacheTTL time.Duration
	clock    timeutil.Clock
	logger   *slog.Logger
}

// NewGetLeaderboardHandler создаёт обработчик. cache может быть nil,
// clock по умолчанию - системные часы в локальной зоне.
func NewGetLeaderboardHandler(
	scores score.Repository,
	cache leaderboard.Cache,
	cacheTTL time.Duration,
	clock timeutil.Clock,
	logger *slog.Logger,
) *GetLeaderboardHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if clock == nil {
		clock = timeutil.SystemClock(time.Local)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		scores:   scores,
		cache:    cache,
		cacheTTL: cacheTTL,
		clock:    clock,
		logger:   logger.With("handler", "get_leaderboard"),
	}
}

// Window возвращает окно для сдвига offset относительно сегодняшнего дня.
func (h *GetLeaderboardHandler) Window(offset int) leaderboard.Window {
	return leaderboard.WeeklyWindow(h.clock(), offset)
}

// Leaderboard возвращает записи окна, отсортированные по убыванию очков,
// затем по убыванию ника.
func (h *GetLeaderboardHandler) Leaderboard(ctx context.Context, offset int) ([]score.Record, error) {
	return h.rows(ctx, h.Window(offset))
}

// TopRanks возвращает пьедестал окна или пустую строку.
func (h *GetLeaderboardHandler) TopRanks(ctx context.Context, offset int) (string, error) {
	rows, err := h.Leaderboard(ctx, offset)
	if err != nil {
		return "", err
	}
	return leaderboard.TopRanks(rows), nil
}

// MarkdownLeaderboard возвращает отрисованную таблицу окна или
// NoScoresMessage для пустой недели.
func (h *GetLeaderboardHandler) MarkdownLeaderboard(ctx context.Context, offset int) (string, error) {
	w := h.Window(offset)

	// Версию берём до чтения записей: см. leaderboard.Cache.
	version, cacheable := h.version(ctx, w)
	if cacheable {
		if s, ok := h.cached(ctx, w, version); ok {
			return s, nil
		}
	}

	rows, err := h.rows(ctx, w)
	if err != nil {
		return "", err
	}
	rendered := leaderboard.BuildTable(rows).Render()
	if cacheable {
		h.store(ctx, w, version, rendered, len(rows))
	}
	return rendered, nil
}

// Handle выполняет запрос: таблица и пьедестал строятся из одного чтения
// окна, поэтому всегда согласованы. Таблица заодно кладётся в кеш.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	w := h.Window(q.Offset)
	version, cacheable := h.version(ctx, w)

	rows, err := h.rows(ctx, w)
	if err != nil {
		return nil, err
	}

	markdown := leaderboard.BuildTable(rows).Render()
	if cacheable {
		h.store(ctx, w, version, markdown, len(rows))
	}

	result := &GetLeaderboardResult{
		Markdown:    markdown,
		TopRanks:    leaderboard.TopRanks(rows),
		Rows:        make([]LeaderboardRowDTO, 0, len(rows)),
		WeekStart:   timeutil.FormatDateStr(w.Monday()),
		WeekEnd:     timeutil.FormatDateStr(w.End),
		GeneratedAt: h.clock(),
	}
	for _, r := range rows {
		result.Rows = append(result.Rows, LeaderboardRowDTO{
			UserID:   r.UserID,
			Nickname: r.Nickname,
			Date:     timeutil.FormatDateStr(r.Date),
			Score:    r.Score,
		})
	}

	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────────────────────────────────

func (h *GetLeaderboardHandler) rows(ctx context.Context, w leaderboard.Window) ([]score.Record, error) {
	rows, err := h.scores.ListBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to list scores: %w", err)
	}
	leaderboard.Sort(rows)
	return rows, nil
}

// version возвращает версию недели; false - кеш выключен или недоступен.
func (h *GetLeaderboardHandler) version(ctx context.Context, w leaderboard.Window) (int64, bool) {
	if h.cache == nil {
		return 0, false
	}
	v, err := h.cache.Version(ctx, w.Key())
	if err != nil {
		h.logger.Warn("leaderboard cache version read failed", "week", w.Key(), "error", err)
		return 0, false
	}
	return v, true
}

func (h *GetLeaderboardHandler) cached(ctx context.Context, w leaderboard.Window, version int64) (string, bool) {
	s, ok, err := h.cache.GetRendered(ctx, w.Key(), version)
	if err != nil {
		h.logger.Warn("leaderboard cache read failed", "week", w.Key(), "error", err)
		return "", false
	}
	return s, ok
}

// store кладёт таблицу в кеш. Пустые недели не кешируются.
func (h *GetLeaderboardHandler) store(ctx context.Context, w leaderboard.Window, version int64, rendered string, rows int) {
	if rows == 0 {
		return
	}
	if err := h.cache.SetRendered(ctx, w.Key(), version, rendered, h.cacheTTL); err != nil {
		h.logger.Warn("leaderboard cache write failed", "week", w.Key(), "error", err)
	}
}
