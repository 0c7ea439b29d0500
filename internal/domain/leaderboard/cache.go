package leaderboard

import (
	"context"
	"time"
)

// Cache хранит отрисованные таблицы по ключу окна (Window.Key) и версии.
// Реализация в infrastructure/persistence/redis. Промах - не ошибка.
//
// Версия недели растёт при каждом Invalidate. Читатель берёт версию до
// чтения записей и сохраняет таблицу под ней: таблица, собранная до
// записи, попадает под старую версию и больше не читается.
type Cache interface {
	// Version возвращает текущую версию недели (0, если её ещё не меняли).
	Version(ctx context.Context, weekKey string) (int64, error)

	// GetRendered возвращает таблицу версии version и true, если она есть.
	GetRendered(ctx context.Context, weekKey string, version int64) (string, bool, error)

	// SetRendered сохраняет таблицу версии version на ttl.
	SetRendered(ctx context.Context, weekKey string, version int64, rendered string, ttl time.Duration) error

	// Invalidate повышает версию недели после изменения её записей.
	Invalidate(ctx context.Context, weekKey string) error
}

// WeekKeyFor возвращает ключ окна, которому принадлежит календарный день d.
func WeekKeyFor(d time.Time) string {
	return WeeklyWindow(d, 0).Key()
}
