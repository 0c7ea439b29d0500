// Package presenter форматирует данные для Telegram.
// Презентеры превращают результаты запросов в готовые тексты сообщений.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/wordle-club/wordle-bot/internal/application/query"
	"github.com/wordle-club/wordle-bot/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Таблица недели уходит моноширинным блоком, пьедестал - отдельным
// сообщением обычным текстом (и только если он не пуст).
// ══════════════════════════════════════════════════════════════════════════════

// ParseModeMarkdownV2 - режим разметки для таблицы.
const ParseModeMarkdownV2 = "MarkdownV2"

// MessageView - одно исходящее сообщение.
type MessageView struct {
	// Text - текст, уже экранированный под ParseMode.
	Text string

	// ParseMode - "" для обычного текста.
	ParseMode string
}

// LeaderboardPresenter форматирует лидерборд для Telegram.
type LeaderboardPresenter struct{}

// NewLeaderboardPresenter создаёт новый презентер лидерборда.
func NewLeaderboardPresenter() *LeaderboardPresenter {
	return &LeaderboardPresenter{}
}

// FormatLeaderboard возвращает сообщения ответа на команду leaderboard:
// таблицу и, если есть, пьедестал.
func (p *LeaderboardPresenter) FormatLeaderboard(result *query.GetLeaderboardResult) []MessageView {
	if result.IsEmpty() {
		return []MessageView{{Text: leaderboard.NoScoresMessage}}
	}
	views := make([]MessageView, 0, 2)
	views = append(views, p.FormatTable(result.Markdown))

	if result.TopRanks != "" {
		views = append(views, MessageView{Text: result.TopRanks})
	}
	return views
}

// FormatTable оборачивает отрисованную таблицу в блок кода. Заглушку пустой
// недели отправляем как есть.
func (p *LeaderboardPresenter) FormatTable(table string) MessageView {
	if table == "" || table == leaderboard.NoScoresMessage {
		return MessageView{Text: leaderboard.NoScoresMessage}
	}
	return MessageView{
		Text:      CodeBlock(table),
		ParseMode: ParseModeMarkdownV2,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// MARKDOWN V2
// ─────────────────────────────────────────────────────────────────────────────

// CodeBlock оформляет text как pre-блок MarkdownV2. Внутри блока
// экранируются только ` и \.
func CodeBlock(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	sb.WriteString("```\n")
	for _, r := range text {
		if r == '`' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	if !strings.HasSuffix(text, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString("```")
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// SHORT REPLIES
// ─────────────────────────────────────────────────────────────────────────────

// FormatLeaderboardUsage - ответ на нечисловой сдвиг недели.
func FormatLeaderboardUsage(prefix, arg string) string {
	return fmt.Sprintf("%q is not a number of weeks. Usage: %sleaderboard [weeks back], e.g. %sleaderboard 1",
		arg, prefix, prefix)
}

// FormatPong - ответ на ping с задержкой до Bot API.
func FormatPong(latency time.Duration) string {
	return fmt.Sprintf("Pong! %d ms", latency.Round(time.Millisecond).Milliseconds())
}

// FormatHelp возвращает список команд.
func FormatHelp(prefix string, isAdmin bool) string {
	lines := []string{
		"Post your Wordle result here and I'll keep score.",
		"",
		prefix + "leaderboard [n] - this week's table, or n weeks back",
		prefix + "ping - check that I'm alive",
		prefix + "doggo - a random dog",
		prefix + "catto - a random cat",
		prefix + "help - this message",
	}
	if isAdmin {
		lines = append(lines, prefix+"repost - post today's puzzle again")
	}
	return strings.Join(lines, "\n")
}

// FormatNotAllowed - ответ на команду администратора от обычного участника.
func FormatNotAllowed() string {
	return "🚫 Only admins can do that."
}

// FormatPetUnavailable - ответ, когда API с картинками недоступно.
func FormatPetUnavailable(kind string) string {
	return fmt.Sprintf("No %s pictures right now, try again later 🐾", kind)
}
