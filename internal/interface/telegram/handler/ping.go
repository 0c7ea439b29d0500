package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PING HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is a cheap round trip to the Bot API.
type Pinger interface {
	GetMe(ctx context.Context) (*telegram.User, error)
}

// PingHandler answers with the Bot API round-trip time.
type PingHandler struct {
	api Pinger
	now func() time.Time
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler(api Pinger) *PingHandler {
	return &PingHandler{api: api, now: time.Now}
}

// Handle processes the ping command.
func (h *PingHandler) Handle(ctx context.Context) (*Response, error) {
	start := h.now()
	if _, err := h.api.GetMe(ctx); err != nil {
		return ErrorText("Pong? The Bot API did not answer."), fmt.Errorf("ping: %w", err)
	}
	return Text(presenter.FormatPong(h.now().Sub(start))), nil
}
