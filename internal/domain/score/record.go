// Package score содержит доменную модель результата Wordle:
// одна запись на пару (пользователь, день), последняя запись побеждает.
package score

import (
	"time"
	"unicode/utf8"

	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinScore - штраф за явный "0/6".
	MinScore = -69
	// MaxScore - решение с первой попытки.
	MaxScore = 6
)

// UpsertOutcome сообщает, какая ветка upsert сработала.
type UpsertOutcome int

const (
	// Inserted - ключа не было, создана новая запись.
	Inserted UpsertOutcome = iota + 1
	// Updated - ключ существовал, ник и очки перезаписаны.
	Updated
)

// String возвращает строковое представление исхода.
func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - результат пользователя за календарный день.
// Ключ: (UserID, Date). Nickname и Score изменяемы.
type Record struct {
	UserID   int64
	Nickname string
	// Date - календарный день, полночь UTC.
	Date  time.Time
	Score int
}

// ValidScore сообщает, что очки получены из результата Wordle:
// MinScore или 0..MaxScore.
func ValidScore(points int) bool {
	return points == MinScore || (points >= 0 && points <= MaxScore)
}

// NewRecord строит запись из распознанного результата: нормализует дату,
// проверяет диапазон очков и остальные инварианты.
func NewRecord(userID int64, nickname string, date time.Time, points int) (Record, error) {
	d, err := NormalizeDate(date)
	if err != nil {
		return Record{}, err
	}
	if !ValidScore(points) {
		return Record{}, shared.ErrScoreOutOfRange
	}
	r := Record{UserID: userID, Nickname: nickname, Date: d, Score: points}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Validate проверяет запись перед сохранением. Хранилище принимает любое
// целое число очков; диапазон проверяет только NewRecord.
func (r Record) Validate() error {
	if r.Nickname == "" {
		return shared.ErrEmptyNickname
	}
	if !utf8.ValidString(r.Nickname) {
		return shared.Invalidf("score", "Validate", "nickname is not valid UTF-8")
	}
	if !IsCalendarDate(r.Date) {
		return shared.ErrDateNotMidnight
	}
	return nil
}

// Label - трёхсимвольная подпись для таблицы (по рунам, не байтам).
func (r Record) Label() string {
	return Label(r.Nickname)
}

// Label обрезает ник до трёх символов.
func Label(nickname string) string {
	n := 0
	for i := range nickname {
		if n == 3 {
			return nickname[:i]
		}
		n++
	}
	return nickname
}

// ══════════════════════════════════════════════════════════════════════════════
// DATES
// ══════════════════════════════════════════════════════════════════════════════

// NormalizeDate принимает момент с нулевым временем на часах его зоны и
// возвращает календарный день как полночь UTC. Иначе - ErrDateNotMidnight.
func NormalizeDate(t time.Time) (time.Time, error) {
	if t.IsZero() || !timeutil.IsMidnight(t) {
		return time.Time{}, shared.ErrDateNotMidnight
	}
	return timeutil.CalendarDate(t), nil
}

// IsCalendarDate сообщает, что t уже нормализован: полночь UTC.
func IsCalendarDate(t time.Time) bool {
	return !t.IsZero() && t.Location() == time.UTC && timeutil.IsMidnight(t)
}
