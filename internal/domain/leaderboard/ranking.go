package leaderboard

import (
	"sort"
	"strings"

	"github.com/wordle-club/wordle-bot/internal/domain/score"
)

// ══════════════════════════════════════════════════════════════════════════════
// SORTING
// ══════════════════════════════════════════════════════════════════════════════

// Sort упорядочивает строки по убыванию очков, при равенстве - по убыванию
// ника. Оставшиеся равенства разрешаются по user_id и дате, чтобы порядок
// не зависел от хранилища.
func Sort(rows []score.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Nickname != b.Nickname {
			return a.Nickname > b.Nickname
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.Date.Before(b.Date)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TOTALS
// ══════════════════════════════════════════════════════════════════════════════

// Total - сумма очков пользователя за окно.
type Total struct {
	UserID int64
	// Nickname - самый свежий ник пользователя в окне.
	Nickname string
	Score    int
	// lastSeen - дата записи, из которой взят ник.
	lastSeen int64
}

// Totals группирует строки по пользователю. Результат упорядочен по user_id.
func Totals(rows []score.Record) []Total {
	byUser := make(map[int64]*Total)
	for _, r := range rows {
		t, ok := byUser[r.UserID]
		if !ok {
			t = &Total{UserID: r.UserID, Nickname: r.Nickname, lastSeen: r.Date.Unix()}
			byUser[r.UserID] = t
		}
		t.Score += r.Score
		if ts := r.Date.Unix(); ts > t.lastSeen {
			t.Nickname = r.Nickname
			t.lastSeen = ts
		}
	}

	out := make([]Total, 0, len(byUser))
	for _, t := range byUser {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TOP RANKS
// ══════════════════════════════════════════════════════════════════════════════

// Медали для трёх лучших различных сумм.
const (
	MedalFirst  = "👑"
	MedalSecond = "🏆"
	MedalThird  = "🎖"
)

var medals = []string{MedalFirst, MedalSecond, MedalThird}

// Podium - одна ступень пьедестала: сумма и все, кто её набрал.
type Podium struct {
	Medal string
	Score int
	Names []string
}

// Podiums вычисляет до трёх ступеней. Место определяется различными
// значениями суммы, а не позицией: двое с лучшей суммой делят корону,
// следующая меньшая сумма получает кубок.
func Podiums(rows []score.Record) []Podium {
	totals := Totals(rows)
	if len(totals) == 0 {
		return nil
	}

	distinct := make([]int, 0, len(totals))
	seen := make(map[int]bool, len(totals))
	for _, t := range totals {
		if !seen[t.Score] {
			seen[t.Score] = true
			distinct = append(distinct, t.Score)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(distinct)))

	podiums := make([]Podium, 0, len(medals))
	for i, medal := range medals {
		if i >= len(distinct) {
			break
		}
		p := Podium{Medal: medal, Score: distinct[i]}
		for _, t := range totals {
			if t.Score == distinct[i] {
				p.Names = append(p.Names, t.Nickname)
			}
		}
		podiums = append(podiums, p)
	}
	return podiums
}

// TopRanks форматирует пьедестал: по строке на медаль, каждая оканчивается
// переводом строки. Пустая строка, если записей нет.
func TopRanks(rows []score.Record) string {
	var b strings.Builder
	for _, p := range Podiums(rows) {
		b.WriteString(p.Medal)
		b.WriteByte(' ')
		b.WriteString(JoinNames(p.Names))
		b.WriteByte('\n')
	}
	return b.String()
}

// JoinNames соединяет имена в виде "A, B and C". Одно имя - без союза.
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
