package score

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт хранилища результатов. Реализации в infrastructure/persistence
// (SQLite по умолчанию, PostgreSQL как альтернатива) обязаны сохранять схему
// wordle_scores(user_id, nickname, date, score) с ключом (user_id, date).
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над таблицей результатов.
type Repository interface {
	// Upsert вставляет запись или перезаписывает ник и очки существующего
	// ключа. Выполняется атомарно: при ошибке прежнее значение сохраняется.
	Upsert(ctx context.Context, r Record) (UpsertOutcome, error)

	// ListBetween возвращает записи с датой в (startExclusive, endInclusive].
	// Порядок не гарантируется - сортирует доменный слой.
	ListBetween(ctx context.Context, startExclusive, endInclusive time.Time) ([]Record, error)

	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error

	// Close освобождает соединение.
	Close() error
}
