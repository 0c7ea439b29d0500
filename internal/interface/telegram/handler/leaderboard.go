package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/wordle-club/wordle-bot/internal/application/query"
	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// Handles the leaderboard command: weekly table plus the podium.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardQuery reads a weekly leaderboard.
type LeaderboardQuery interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error)
}

// LeaderboardHandler handles the leaderboard command.
type LeaderboardHandler struct {
	query     LeaderboardQuery
	presenter *presenter.LeaderboardPresenter
	prefix    string
}

// NewLeaderboardHandler creates a new LeaderboardHandler. prefix is used in
// the usage hint.
func NewLeaderboardHandler(q LeaderboardQuery, p *presenter.LeaderboardPresenter, prefix string) *LeaderboardHandler {
	if p == nil {
		p = presenter.NewLeaderboardPresenter()
	}
	if prefix == "" {
		prefix = "/"
	}
	return &LeaderboardHandler{query: q, presenter: p, prefix: prefix}
}

// LeaderboardRequest contains the parsed command data.
type LeaderboardRequest struct {
	// Args is the text after the command; its first word is the week offset.
	Args string
}

// ParseOffset reads the week offset from args. Empty args mean 0; offsets
// beyond leaderboard.MaxOffset in either direction are rejected.
func ParseOffset(args string) (int, string, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", true
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n > leaderboard.MaxOffset || n < -leaderboard.MaxOffset {
		return 0, fields[0], false
	}
	return n, fields[0], true
}

// Handle processes the leaderboard command. A bad offset gets a usage hint;
// a storage failure gets an apology and the error.
func (h *LeaderboardHandler) Handle(ctx context.Context, req LeaderboardRequest) (*Response, error) {
	offset, raw, ok := ParseOffset(req.Args)
	if !ok {
		return Text(presenter.FormatLeaderboardUsage(h.prefix, raw)), nil
	}

	result, err := h.query.Handle(ctx, query.GetLeaderboardQuery{Offset: offset})
	if err != nil {
		return ErrorText("❌ Couldn't load the leaderboard. Try again later."), err
	}

	return &Response{Messages: h.presenter.FormatLeaderboard(result)}, nil
}
