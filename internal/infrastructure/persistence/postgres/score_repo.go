package postgres

import (
	"context"
	"time"

	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRepository implements score.Repository on PostgreSQL.
type ScoreRepository struct {
	conn *Connection
}

// Compile-time check.
var _ score.Repository = (*ScoreRepository)(nil)

// NewScoreRepository creates a new PostgreSQL score repository.
// Run the Migrator before using it.
func NewScoreRepository(conn *Connection) *ScoreRepository {
	return &ScoreRepository{conn: conn}
}

// upsertSQL reports through xmax whether the row was freshly inserted:
// a row version created by INSERT has xmax = 0.
const upsertSQL = `
	INSERT INTO wordle_scores (user_id, nickname, date, score)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, date) DO UPDATE
	SET nickname = EXCLUDED.nickname, score = EXCLUDED.score
	RETURNING (xmax = 0) AS inserted
`

// Upsert inserts or overwrites the record in a single statement.
func (r *ScoreRepository) Upsert(ctx context.Context, rec score.Record) (score.UpsertOutcome, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	if r.conn.IsClosed() {
		return 0, shared.WrapError("score", "Upsert", shared.ErrStorage, "failed to upsert score", ErrConnectionClosed)
	}

	var inserted bool
	err := r.conn.QueryRow(ctx, upsertSQL,
		rec.UserID, rec.Nickname, timeutil.CalendarDate(rec.Date), rec.Score,
	).Scan(&inserted)
	if err != nil {
		return 0, shared.WrapError("score", "Upsert", shared.ErrStorage, "failed to upsert score", err)
	}

	if inserted {
		return score.Inserted, nil
	}
	return score.Updated, nil
}

// ListBetween returns records dated in (startExclusive, endInclusive].
func (r *ScoreRepository) ListBetween(ctx context.Context, startExclusive, endInclusive time.Time) ([]score.Record, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, nickname, date, score
		FROM wordle_scores
		WHERE date > $1 AND date <= $2
	`, timeutil.CalendarDate(startExclusive), timeutil.CalendarDate(endInclusive))
	if err != nil {
		return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to query scores", err)
	}
	defer rows.Close()

	var out []score.Record
	for rows.Next() {
		var rec score.Record
		if err := rows.Scan(&rec.UserID, &rec.Nickname, &rec.Date, &rec.Score); err != nil {
			return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to scan score row", err)
		}
		rec.Date = timeutil.CalendarDate(rec.Date)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to read scores", err)
	}

	return out, nil
}

// Ping checks if the database connection is alive.
func (r *ScoreRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// Close closes the connection pool.
func (r *ScoreRepository) Close() error {
	r.conn.Close()
	return nil
}
