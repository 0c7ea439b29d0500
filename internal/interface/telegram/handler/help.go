package handler

import "github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"

// ══════════════════════════════════════════════════════════════════════════════
// HELP HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// HelpHandler lists the commands.
type HelpHandler struct {
	prefix string
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(prefix string) *HelpHandler {
	if prefix == "" {
		prefix = "/"
	}
	return &HelpHandler{prefix: prefix}
}

// HelpRequest tells whether the asker may see admin commands.
type HelpRequest struct {
	IsAdmin bool
}

// Handle processes the help command.
func (h *HelpHandler) Handle(req HelpRequest) *Response {
	return Text(presenter.FormatHelp(h.prefix, req.IsAdmin))
}
