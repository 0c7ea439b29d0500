// Package leaderboard содержит доменную модель недельного лидерборда Wordle:
// недельное окно, сортировку, распределение медалей и табличный вид.
// Пакет не знает о хранилище - он работает со срезом score.Record.
package leaderboard

import (
	"time"

	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY WINDOW
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DaysPerWeek - число календарных дней в одном окне.
	DaysPerWeek = 7

	// MaxOffset - самый дальний сдвиг в неделях (около ста лет).
	MaxOffset = 5200
)

// Window - полуоткрытый интервал дат (Start, End]: с понедельника по
// воскресенье включительно. Start - воскресенье, закрывающее прошлую неделю.
type Window struct {
	Start time.Time // исключительно
	End   time.Time // включительно
}

// WeeklyWindow вычисляет окно недели, в которую попадает today, сдвинутое на
// |offset| недель назад. Отрицательный offset трактуется как положительный,
// сдвиг дальше MaxOffset обрезается до MaxOffset.
func WeeklyWindow(today time.Time, offset int) Window {
	switch {
	case offset > MaxOffset, offset < -MaxOffset:
		offset = MaxOffset
	case offset < 0:
		offset = -offset
	}
	start := timeutil.AddDays(timeutil.LastSunday(today), -DaysPerWeek*offset)
	return Window{
		Start: start,
		End:   timeutil.AddDays(start, DaysPerWeek),
	}
}

// Contains сообщает, попадает ли календарный день d в окно.
func (w Window) Contains(d time.Time) bool {
	d = timeutil.CalendarDate(d)
	return d.After(w.Start) && !d.After(w.End)
}

// Monday возвращает первый день окна.
func (w Window) Monday() time.Time {
	return timeutil.AddDays(w.Start, 1)
}

// Key - стабильный идентификатор окна для кеша (дата понедельника).
func (w Window) Key() string {
	return timeutil.FormatDateStr(w.Monday())
}

// Days возвращает все семь дней окна по порядку.
func (w Window) Days() []time.Time {
	days := make([]time.Time, 0, DaysPerWeek)
	for i := 1; i <= DaysPerWeek; i++ {
		days = append(days, timeutil.AddDays(w.Start, i))
	}
	return days
}
