package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUZZLE CHAT
// The chat whose messages are parsed as results and where the daily puzzle
// is posted. Configured as a numeric id, an @username or a chat title; the
// last one is resolved when the first message from that chat arrives.
// ══════════════════════════════════════════════════════════════════════════════

// ErrPuzzleChatNotFound means the Bot API does not know the configured
// @username, usually because the bot is not a member of that chat.
var ErrPuzzleChatNotFound = errors.New("puzzle chat not found")

// ChatLookup resolves a public @username.
type ChatLookup interface {
	GetChat(ctx context.Context, chatRef string) (*telegram.Chat, error)
}

// PuzzleChat matches incoming chats against the configured reference.
type PuzzleChat struct {
	ref string

	mu    sync.RWMutex
	id    int64
	known bool
}

// NewPuzzleChat creates a matcher for ref. A numeric ref is known at once.
func NewPuzzleChat(ref string) *PuzzleChat {
	ref = strings.TrimSpace(ref)
	p := &PuzzleChat{ref: ref}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p.id, p.known = id, true
	}
	return p
}

// Ref returns the configured reference.
func (p *PuzzleChat) Ref() string {
	return p.ref
}

// Resolve looks up an @username through the Bot API. Other refs need no
// lookup.
func (p *PuzzleChat) Resolve(ctx context.Context, lookup ChatLookup) error {
	if _, ok := p.ID(); ok || !strings.HasPrefix(p.ref, "@") {
		return nil
	}

	chat, err := lookup.GetChat(ctx, p.ref)
	if telegram.IsChatNotFound(err) {
		return fmt.Errorf("%w: %s (add the bot to the chat first): %w", ErrPuzzleChatNotFound, p.ref, err)
	}
	if err != nil {
		return fmt.Errorf("resolve puzzle chat %s: %w", p.ref, err)
	}
	p.learn(chat.ID)
	return nil
}

// ID returns the chat id once it is known.
func (p *PuzzleChat) ID() (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id, p.known
}

// Match reports whether chat is the puzzle chat, learning its id on the
// first title or username match.
func (p *PuzzleChat) Match(chat *telegram.Chat) bool {
	if chat == nil || p.ref == "" {
		return false
	}

	if id, ok := p.ID(); ok {
		return chat.ID == id
	}

	matched := false
	switch {
	case strings.HasPrefix(p.ref, "@"):
		matched = chat.Username != "" && strings.EqualFold(chat.Username, p.ref[1:])
	default:
		matched = chat.Title == p.ref
	}
	if matched {
		p.learn(chat.ID)
	}
	return matched
}

func (p *PuzzleChat) learn(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id, p.known = id, true
}
