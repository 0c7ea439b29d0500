package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// UpdateIDContextKey carries the correlation id of one processed update.
	UpdateIDContextKey contextKey = "update_id"

	// UserIDContextKey carries the Telegram id of the sender.
	UserIDContextKey contextKey = "user_id"
)

// WithUpdateID returns ctx tagged with a fresh correlation id.
func WithUpdateID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, UpdateIDContextKey, id), id
}

// UpdateIDFromContext returns the correlation id or "".
func UpdateIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UpdateIDContextKey).(string)
	return id
}

// WithUserID returns ctx tagged with the sender id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// UserIDFromContext returns the sender id or 0.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(UserIDContextKey).(int64)
	return id
}
