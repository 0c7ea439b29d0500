// Package command содержит операции записи (CQRS - команды).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/internal/domain/wordle"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD RESULT COMMAND
// Распознаёт сообщение чата и, если это результат Wordle, сохраняет очки
// автора за календарный день головоломки.
// ══════════════════════════════════════════════════════════════════════════════

// RecordResultCommand - данные одного входящего сообщения.
type RecordResultCommand struct {
	// UserID - идентификатор автора в мессенджере.
	UserID int64

	// Nickname - текущее отображаемое имя автора.
	Nickname string

	// Text - исходный текст сообщения.
	Text string
}

// Validate проверяет команду.
func (c RecordResultCommand) Validate() error {
	if c.UserID == 0 {
		return errors.New("record_result: user_id is required")
	}
	if strings.TrimSpace(c.Nickname) == "" {
		return errors.New("record_result: nickname is required")
	}
	return nil
}

// RecordResultResult - итог обработки сообщения.
type RecordResultResult struct {
	// Matched - false, если результата в тексте нет; остальные поля тогда пусты.
	Matched bool

	// Parsed - распознанный результат.
	Parsed wordle.Result

	// Record - запись, сохранённая в хранилище.
	Record score.Record

	// Outcome - новая запись или перезапись прежней.
	Outcome score.UpsertOutcome

	// Reaction - символ подтверждения; пуст, если HasReaction == false.
	Reaction    string
	HasReaction bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordResultHandler обрабатывает RecordResultCommand.
type RecordResultHandler struct {
	scores score.Repository
	cache  leaderboard.Cache
	logger *slog.Logger
}

// NewRecordResultHandler создаёт обработчик. cache может быть nil.
func NewRecordResultHandler(scores score.Repository, cache leaderboard.Cache, logger *slog.Logger) *RecordResultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordResultHandler{
		scores: scores,
		cache:  cache,
		logger: logger.With("handler", "record_result"),
	}
}

// Handle выполняет команду. Сообщение без результата - не ошибка: в ответе
// Matched == false.
func (h *RecordResultHandler) Handle(ctx context.Context, cmd RecordResultCommand) (*RecordResultResult, error) {
	parsed, ok := wordle.Extract(cmd.Text)
	if !ok {
		return &RecordResultResult{}, nil
	}

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_result: validation failed: %w", err)
	}

	rec, err := score.NewRecord(cmd.UserID, cmd.Nickname, parsed.Date(), parsed.ModifiedScore())
	if err != nil {
		return nil, fmt.Errorf("record_result: invalid record: %w", err)
	}

	outcome, err := h.scores.Upsert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("record_result: failed to store score: %w", err)
	}

	switch outcome {
	case score.Updated:
		h.logger.Info("updated score",
			"user_id", rec.UserID, "nickname", rec.Nickname, "score", rec.Score, "puzzle_day", parsed.PuzzleDay)
	default:
		h.logger.Info("added score",
			"user_id", rec.UserID, "nickname", rec.Nickname, "score", rec.Score, "puzzle_day", parsed.PuzzleDay)
	}

	if h.cache != nil {
		key := leaderboard.WeekKeyFor(rec.Date)
		if err := h.cache.Invalidate(ctx, key); err != nil {
			// Устаревшая таблица допустима до истечения TTL.
			h.logger.Warn("failed to invalidate leaderboard cache", "week", key, "error", err)
		}
	}

	result := &RecordResultResult{
		Matched: true,
		Parsed:  parsed,
		Record:  rec,
		Outcome: outcome,
	}
	result.Reaction, result.HasReaction = wordle.Reaction(rec.Score)

	return result, nil
}
