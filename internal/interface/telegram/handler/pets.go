package handler

import (
	"context"
	"fmt"

	"github.com/wordle-club/wordle-bot/internal/infrastructure/external/pets"
	"github.com/wordle-club/wordle-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PET HANDLER
// doggo and catto: drop the command message and post a picture with the
// original text as the caption.
// ══════════════════════════════════════════════════════════════════════════════

// PetSource returns a picture URL of the requested animal.
type PetSource interface {
	Get(ctx context.Context, kind pets.Kind) (string, error)
}

// PetHandler handles one pet command.
type PetHandler struct {
	source PetSource
	kind   pets.Kind
}

// NewPetHandler creates a handler for kind.
func NewPetHandler(source PetSource, kind pets.Kind) *PetHandler {
	return &PetHandler{source: source, kind: kind}
}

// PetRequest contains the invoking message text.
type PetRequest struct {
	Content string
}

// Handle processes the pet command.
func (h *PetHandler) Handle(ctx context.Context, req PetRequest) (*Response, error) {
	url, err := h.source.Get(ctx, h.kind)
	if err != nil {
		return ErrorText(presenter.FormatPetUnavailable(string(h.kind))), fmt.Errorf("fetch %s: %w", h.kind, err)
	}
	return &Response{
		PhotoURL:      url,
		Caption:       req.Content,
		DeleteTrigger: true,
	}, nil
}
