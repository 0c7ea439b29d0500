package leaderboard

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wordle-club/wordle-bot/internal/domain/score"
)

// ══════════════════════════════════════════════════════════════════════════════
// TABLE
// Компактная таблица недели: строка на пользователя, столбец на каждый день
// недели с хотя бы одной записью, последний безымянный столбец - сумма.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// NoScoresMessage возвращается вместо таблицы для пустого окна.
	NoScoresMessage = "All outta scores"

	// IndexHeader - заголовок столбца с подписями пользователей.
	IndexHeader = "UsEr"
)

// TableRow - строка таблицы одного пользователя.
type TableRow struct {
	UserID int64
	Label  string
	// Cells выровнены по Table.Days; пустая строка - нет результата.
	Cells []string
	Total int
}

// Table - недельная таблица, готовая к отрисовке.
type Table struct {
	Days []time.Time
	Rows []TableRow
}

// BuildTable строит таблицу из строк одного окна. Для пустого входа
// возвращает nil.
func BuildTable(rows []score.Record) *Table {
	if len(rows) == 0 {
		return nil
	}

	days := distinctDays(rows)
	col := make(map[int64]int, len(days))
	for i, d := range days {
		col[d.Unix()] = i
	}

	totals := Totals(rows)
	index := make(map[int64]int, len(totals))
	t := &Table{Days: days, Rows: make([]TableRow, len(totals))}
	for i, tot := range totals {
		index[tot.UserID] = i
		t.Rows[i] = TableRow{
			UserID: tot.UserID,
			Label:  score.Label(tot.Nickname),
			Cells:  make([]string, len(days)),
			Total:  tot.Score,
		}
	}

	for _, r := range rows {
		row := &t.Rows[index[r.UserID]]
		row.Cells[col[r.Date.Unix()]] = strconv.Itoa(r.Score)
	}

	// Сначала по подписи, затем устойчиво по убыванию суммы.
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.UserID < b.UserID
	})
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Total > t.Rows[j].Total
	})

	return t
}

func distinctDays(rows []score.Record) []time.Time {
	seen := make(map[int64]bool)
	var days []time.Time
	for _, r := range rows {
		if k := r.Date.Unix(); !seen[k] {
			seen[k] = true
			days = append(days, r.Date)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Header возвращает заголовки столбцов: подпись, дни недели, пустой итог.
func (t *Table) Header() []string {
	h := make([]string, 0, len(t.Days)+2)
	h = append(h, IndexHeader)
	for _, d := range t.Days {
		h = append(h, d.Weekday().String())
	}
	return append(h, "")
}

// Cells возвращает все строки данных в порядке столбцов Header.
func (t *Table) Cells() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		line := make([]string, 0, len(r.Cells)+2)
		line = append(line, r.Label)
		line = append(line, r.Cells...)
		out[i] = append(line, strconv.Itoa(r.Total))
	}
	return out
}

// Render рисует таблицу рамкой из "+", "-" и "|" с центрированными ячейками
// и отступом в один пробел. Nil-таблица рисуется как NoScoresMessage.
func (t *Table) Render() string {
	if t == nil {
		return NoScoresMessage
	}

	header := t.Header()
	body := t.Cells()

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, line := range body {
		for i, c := range line {
			if n := utf8.RuneCountInString(c); n > widths[i] {
				widths[i] = n
			}
		}
	}

	rule := ruleLine(widths)
	lines := make([]string, 0, len(body)+4)
	lines = append(lines, rule, formatRow(header, widths), rule)
	for _, line := range body {
		lines = append(lines, formatRow(line, widths))
	}
	lines = append(lines, rule)

	return strings.Join(lines, "\n")
}

func ruleLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, c := range cells {
		b.WriteByte(' ')
		b.WriteString(center(c, widths[i]))
		b.WriteString(" |")
	}
	return b.String()
}

// center кладёт нечётный остаток пробелов справа.
func center(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
