// Package telegram implements the Telegram interface of the Wordle bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Prefixes are the accepted command prefixes, e.g. "/" and ".".
	Prefixes []string

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// DefaultPrefixes are used when RouterConfig.Prefixes is empty.
var DefaultPrefixes = []string{"/", "."}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext contains context for command handling.
type CommandContext struct {
	// UserID is the sender's Telegram ID.
	UserID int64

	// ChatID is the chat the command was sent to.
	ChatID int64

	// MessageID is the ID of the message containing the command.
	MessageID int64

	// Command is the command name without prefix or @botname.
	Command string

	// Args is the text after the command.
	Args string

	// Message is the original Telegram message.
	Message *telegram.Message
}

// CommandHandler is implemented by custom command handlers.
type CommandHandler interface {
	Handle(ctx context.Context, cmdCtx CommandContext) (*handler.Response, error)
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(ctx context.Context, cmdCtx CommandContext) (*handler.Response, error)

// Handle calls f.
func (f CommandFunc) Handle(ctx context.Context, cmdCtx CommandContext) (*handler.Response, error) {
	return f(ctx, cmdCtx)
}

// Sender delivers handler responses.
type Sender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND PARSING
// ══════════════════════════════════════════════════════════════════════════════

// ParseCommand splits text into command and args. "/leaderboard@my_bot 2"
// yields ("leaderboard", "2"). A command addressed to another bot is not
// ours. Command names are case-insensitive.
func ParseCommand(text string, prefixes []string, botUsername string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)

	var rest string
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			rest = text[len(p):]
			ok = true
			break
		}
	}
	if !ok {
		return "", "", false
	}

	head, tail, _ := strings.Cut(rest, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		tail = head[i+1:] + " " + tail
		head = head[:i]
	}

	name, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}

	return strings.ToLower(name), strings.TrimSpace(tail), true
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// Router routes commands to handlers and delivers their responses.
type Router struct {
	config RouterConfig
	logger *slog.Logger
	sender Sender

	commandHandlers   map[string]any
	commandHandlersMu sync.RWMutex

	botUsername   string
	botUsernameMu sync.RWMutex
}

// NewRouter creates a new router.
func NewRouter(sender Sender, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if len(config.Prefixes) == 0 {
		config.Prefixes = DefaultPrefixes
	}

	return &Router{
		config:          config,
		logger:          config.Logger,
		sender:          sender,
		commandHandlers: make(map[string]any),
	}
}

// RegisterCommand registers a handler for a command (without prefix).
func (r *Router) RegisterCommand(command string, h any) {
	r.commandHandlersMu.Lock()
	defer r.commandHandlersMu.Unlock()

	r.commandHandlers[strings.ToLower(command)] = h

	if r.config.Debug {
		r.logger.Debug("registered command handler", "command", command)
	}
}

// HasCommand reports whether command has a handler.
func (r *Router) HasCommand(command string) bool {
	r.commandHandlersMu.RLock()
	defer r.commandHandlersMu.RUnlock()
	_, ok := r.commandHandlers[command]
	return ok
}

// Commands returns the registered command names.
func (r *Router) Commands() []string {
	r.commandHandlersMu.RLock()
	defer r.commandHandlersMu.RUnlock()

	names := make([]string, 0, len(r.commandHandlers))
	for name := range r.commandHandlers {
		names = append(names, name)
	}
	return names
}

// SetBotUsername sets the name used to filter "/cmd@other_bot".
func (r *Router) SetBotUsername(username string) {
	r.botUsernameMu.Lock()
	defer r.botUsernameMu.Unlock()
	r.botUsername = username
}

// Parse extracts a command addressed to this bot from text.
func (r *Router) Parse(text string) (command, args string, ok bool) {
	r.botUsernameMu.RLock()
	username := r.botUsername
	r.botUsernameMu.RUnlock()

	return ParseCommand(text, r.config.Prefixes, username)
}

// Prefix returns the primary command prefix for help texts.
func (r *Router) Prefix() string {
	return r.config.Prefixes[0]
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// HandleCommand runs the handler of cmdCtx.Command and delivers its response.
// Unknown commands are ignored. A response that comes with an error is still
// delivered before the error is returned.
func (r *Router) HandleCommand(ctx context.Context, cmdCtx CommandContext) error {
	r.commandHandlersMu.RLock()
	h, ok := r.commandHandlers[cmdCtx.Command]
	r.commandHandlersMu.RUnlock()

	if !ok {
		if r.config.Debug {
			r.logger.Debug("no handler for command", "command", cmdCtx.Command)
		}
		return nil
	}

	resp, err := r.executeCommandHandler(ctx, h, cmdCtx)
	if resp != nil {
		if sendErr := r.deliver(ctx, cmdCtx, resp); sendErr != nil {
			if err == nil {
				return sendErr
			}
			r.logger.Warn("failed to deliver error notice", "command", cmdCtx.Command, "error", sendErr)
		}
	}
	return err
}

// executeCommandHandler converts the command context into the handler's
// own request type.
func (r *Router) executeCommandHandler(ctx context.Context, h any, cmdCtx CommandContext) (*handler.Response, error) {
	switch h := h.(type) {
	case *handler.LeaderboardHandler:
		return h.Handle(ctx, handler.LeaderboardRequest{Args: cmdCtx.Args})
	case *handler.PingHandler:
		return h.Handle(ctx)
	case *handler.PetHandler:
		req := handler.PetRequest{}
		if cmdCtx.Message != nil {
			req.Content = cmdCtx.Message.Content()
		}
		return h.Handle(ctx, req)
	case *handler.HelpHandler:
		return h.Handle(handler.HelpRequest{IsAdmin: r.isAdmin(cmdCtx.UserID)}), nil
	case *handler.RepostHandler:
		return h.Handle(ctx, handler.RepostRequest{UserID: cmdCtx.UserID})
	case CommandHandler:
		return h.Handle(ctx, cmdCtx)
	case func(context.Context, CommandContext) (*handler.Response, error):
		return h(ctx, cmdCtx)
	default:
		return nil, fmt.Errorf("unsupported handler type %T for command %q", h, cmdCtx.Command)
	}
}

// isAdmin asks the repost handler, which owns the admin list.
func (r *Router) isAdmin(userID int64) bool {
	r.commandHandlersMu.RLock()
	defer r.commandHandlersMu.RUnlock()

	for _, h := range r.commandHandlers {
		if rh, ok := h.(*handler.RepostHandler); ok {
			return rh.IsAdmin(userID)
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

func (r *Router) deliver(ctx context.Context, cmdCtx CommandContext, resp *handler.Response) error {
	if resp.DeleteTrigger && cmdCtx.MessageID != 0 {
		if err := r.sender.DeleteMessage(ctx, cmdCtx.ChatID, cmdCtx.MessageID); err != nil {
			// Usually missing admin rights; the reply still goes out.
			r.logger.Warn("failed to delete command message",
				"chat_id", cmdCtx.ChatID,
				"message_id", cmdCtx.MessageID,
				"error", err,
			)
		}
	}

	if resp.PhotoURL != "" {
		if _, err := r.sender.SendPhoto(ctx, cmdCtx.ChatID, resp.PhotoURL, resp.Caption); err != nil {
			r.logger.Warn("failed to send photo, sending link", "url", resp.PhotoURL, "error", err)

			text := resp.PhotoURL
			if resp.Caption != "" {
				text = resp.Caption + "\n" + resp.PhotoURL
			}
			if _, err := r.sender.SendMessage(ctx, telegram.SendMessageParams{ChatID: cmdCtx.ChatID, Text: text}); err != nil {
				return fmt.Errorf("send photo link: %w: %w", shared.ErrTelegramAPIFailed, err)
			}
		}
	}

	for _, m := range resp.Messages {
		_, err := r.sender.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:            cmdCtx.ChatID,
			Text:              m.Text,
			ParseMode:         m.ParseMode,
			DisableWebPreview: true,
		})
		if err != nil {
			return fmt.Errorf("send %s reply: %w: %w", cmdCtx.Command, shared.ErrTelegramAPIFailed, err)
		}
	}
	return nil
}
