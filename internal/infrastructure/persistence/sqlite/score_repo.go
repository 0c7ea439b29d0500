package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wordle-club/wordle-bot/internal/domain/score"
	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/pkg/retry"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE REPOSITORY
// Dates are written as naive "YYYY-MM-DD HH:MM:SS" text, the same shape the
// Python bot wrote, so range predicates compare correctly as strings.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRepository implements score.Repository on SQLite.
type ScoreRepository struct {
	conn *Connection
	// busy retries a write the busy timeout gave up on, e.g. while another
	// process holds wordle.db.
	busy retry.Policy
}

// Compile-time check.
var _ score.Repository = (*ScoreRepository)(nil)

// NewScoreRepository creates the repository and makes sure the table exists.
func NewScoreRepository(ctx context.Context, conn *Connection) (*ScoreRepository, error) {
	if err := conn.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return &ScoreRepository{conn: conn, busy: busyPolicy()}, nil
}

// busyPolicy retries only errors marked retry.Retryable, which Upsert does
// for lock timeouts.
func busyPolicy() retry.Policy {
	p := retry.Database()
	p.MaxAttempts = 3
	p.RetryIf = nil
	return p
}

// Upsert tries the insert first and falls back to an update when the key
// already exists, both inside one transaction. A failed attempt leaves the
// stored row untouched.
func (r *ScoreRepository) Upsert(ctx context.Context, rec score.Record) (score.UpsertOutcome, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	outcome, err := retry.DoValue(ctx, r.busy, func(ctx context.Context) (score.UpsertOutcome, error) {
		outcome, err := r.upsertTx(ctx, rec)
		if IsBusy(err) {
			return 0, retry.Retryable(err)
		}
		return outcome, err
	})
	if err != nil {
		return 0, shared.WrapError("score", "Upsert", shared.ErrStorage, "failed to upsert score", err)
	}

	return outcome, nil
}

func (r *ScoreRepository) upsertTx(ctx context.Context, rec score.Record) (score.UpsertOutcome, error) {
	date := formatDate(rec.Date)

	var outcome score.UpsertOutcome
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wordle_scores (user_id, nickname, date, score) VALUES (?, ?, ?, ?)`,
			rec.UserID, rec.Nickname, date, rec.Score,
		)
		if err == nil {
			outcome = score.Inserted
			return nil
		}
		if !IsPrimaryKeyViolation(err) {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE wordle_scores SET score = ?, nickname = ? WHERE user_id = ? AND date = ?`,
			rec.Score, rec.Nickname, rec.UserID, date,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("update touched %d rows", n)
		}
		outcome = score.Updated
		return nil
	})
	return outcome, err
}

// ListBetween returns records dated in (startExclusive, endInclusive].
func (r *ScoreRepository) ListBetween(ctx context.Context, startExclusive, endInclusive time.Time) ([]score.Record, error) {
	if r.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT user_id, nickname, date, score FROM wordle_scores WHERE date > ? AND date <= ?`,
		formatDate(startExclusive), formatDate(endInclusive),
	)
	if err != nil {
		return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to query scores", err)
	}
	defer rows.Close()

	var out []score.Record
	for rows.Next() {
		var (
			rec  score.Record
			date any
		)
		if err := rows.Scan(&rec.UserID, &rec.Nickname, &date, &rec.Score); err != nil {
			return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to scan score row", err)
		}
		if rec.Date, err = parseStoredDate(date); err != nil {
			return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "corrupt date column", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("score", "ListBetween", shared.ErrStorage, "failed to read scores", err)
	}

	return out, nil
}

// Ping checks if the database is reachable.
func (r *ScoreRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// Close closes the underlying connection.
func (r *ScoreRepository) Close() error {
	return r.conn.Close()
}

// ──────────────────────────────────────────────────────────────────────────────
// date encoding
// ──────────────────────────────────────────────────────────────────────────────

func formatDate(d time.Time) string {
	return timeutil.CalendarDate(d).Format(timeutil.FormatTimestamp)
}

// storedLayouts covers what the Python bot may have left in the column.
var storedLayouts = []string{
	timeutil.FormatTimestamp,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	timeutil.FormatDate,
}

// parseStoredDate accepts the driver's decoded timestamp or raw text and
// reduces it to a calendar date.
func parseStoredDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return timeutil.CalendarDate(t), nil
	case string:
		return parseDateText(t)
	case []byte:
		return parseDateText(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", v)
	}
}

func parseDateText(s string) (time.Time, error) {
	for _, layout := range storedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timeutil.CalendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
