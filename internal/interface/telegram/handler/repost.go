package handler

import (
	"context"
	"fmt"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/scheduler"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOST HANDLER
// Admin-only: runs the puzzle post job now, bypassing the per-day lock.
// ══════════════════════════════════════════════════════════════════════════════

// JobRunner runs a registered job on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (*scheduler.JobResult, error)
}

// RepostHandler handles the repost command.
type RepostHandler struct {
	runner JobRunner
	job    string
	admins map[int64]struct{}
}

// NewRepostHandler creates a new RepostHandler for job.
func NewRepostHandler(runner JobRunner, job string, admins []int64) *RepostHandler {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &RepostHandler{runner: runner, job: job, admins: set}
}

// IsAdmin reports whether userID may run admin commands.
func (h *RepostHandler) IsAdmin(userID int64) bool {
	_, ok := h.admins[userID]
	return ok
}

// RepostRequest contains the caller.
type RepostRequest struct {
	UserID int64
}

// Handle processes the repost command. On success the job itself posts, so
// the response only removes the command message.
func (h *RepostHandler) Handle(ctx context.Context, req RepostRequest) (*Response, error) {
	if !h.IsAdmin(req.UserID) {
		return Text(presenter.FormatNotAllowed()), nil
	}
	if _, err := h.runner.RunNow(ctx, h.job); err != nil {
		return ErrorText("❌ Repost failed: " + err.Error()), fmt.Errorf("repost: %w", err)
	}
	return &Response{DeleteTrigger: true}, nil
}
