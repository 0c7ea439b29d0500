// Package wordle распознаёт результаты Wordle в сообщениях чата и переводит
// их в очки лидерборда.
//
// Результат содержит "Wordle <день> <попытки>/6", где попытки - цифра или
// "X" для нерешённой головоломки. Меньше попыток - больше очков.
package wordle

import (
	"regexp"
	"strconv"
	"time"
)

// ════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ════════════════════════════════════════════════════════════════════════════

const (
	// FailedGuesses - сырой счёт для "X/6" (не решено) и для любой цифры
	// вне 0..6.
	FailedGuesses = 7

	// ZeroGuessPenalty - итоговые очки за явный "0/6".
	ZeroGuessPenalty = -69

	// EpochDay - номер головоломки, опубликованной в EpochDate.
	EpochDay = 196
)

// EpochDate - календарная дата головоломки EpochDay.
var EpochDate = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

var resultPattern = regexp.MustCompile(`Wordle (\d+) ([\dX])/6`)

// ════════════════════════════════════════════════════════════════════════════
// RESULT
// ════════════════════════════════════════════════════════════════════════════

// Result - один распознанный результат.
type Result struct {
	// PuzzleDay - порядковый номер головоломки.
	PuzzleDay int
	// RawScore - число попыток или FailedGuesses.
	RawScore int
}

// Extract находит первый результат в text. Возвращает false, если результата
// нет, в том числе когда номер головоломки не помещается в int.
func Extract(text string) (Result, bool) {
	if text == "" {
		return Result{}, false
	}

	m := resultPattern.FindStringSubmatch(text)
	if m == nil {
		return Result{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return Result{}, false
	}

	return Result{PuzzleDay: day, RawScore: decodeScore(m[2])}, true
}

func decodeScore(token string) int {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 || n > 6 {
		return FailedGuesses
	}
	return n
}

// ModifiedScore - очки результата в лидерборде.
func (r Result) ModifiedScore() int {
	return ModifiedScore(r.RawScore)
}

// Date - календарный день публикации головоломки.
func (r Result) Date() time.Time {
	return PuzzleDate(r.PuzzleDay)
}

// ModifiedScore переводит попытки в очки: 1 попытка - 6 очков, 6 попыток - 1,
// провал - 0. Явный ноль штрафуется.
func ModifiedScore(raw int) int {
	switch {
	case raw == 0:
		return ZeroGuessPenalty
	case raw >= FailedGuesses:
		return 0
	default:
		return 7 - raw
	}
}

// PuzzleDate переводит номер головоломки в календарную дату. Подходит любой int.
func PuzzleDate(day int) time.Time {
	return EpochDate.AddDate(0, 0, day-EpochDay)
}

// ════════════════════════════════════════════════════════════════════════════
// REACTIONS
// ════════════════════════════════════════════════════════════════════════════

var reactions = map[int]string{
	0: "0️⃣",
	1: "1️⃣",
	2: "2️⃣",
	3: "3️⃣",
	4: "4️⃣",
	5: "5️⃣",
	6: "6️⃣",
}

// Reaction возвращает символ-цифру, которым бот отмечает результат. Для очков
// вне 0..6 символа нет.
func Reaction(modified int) (string, bool) {
	s, ok := reactions[modified]
	return s, ok
}
