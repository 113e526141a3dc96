package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/skoret/simcard-bot/internal/reminder"
	"github.com/skoret/simcard-bot/internal/status"
)

// maxMessageLength is Telegram's limit for a single text message.
const maxMessageLength = 4096

const (
	noSimsText   = "No SIM cards in the database yet. Use /addsim to add one."
	allClearText = "✅ No SIM cards need charging right now."
)

func htmlMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

func statusText(st status.Status) string {
	if st.Never {
		return "Never charged"
	}
	sev := st.Severity()
	if sev == status.Expired {
		return fmt.Sprintf("%s Expired (%d days overdue)", sev.Emoji(), -st.DaysRemaining)
	}
	return fmt.Sprintf("%s %s (%d days remaining)", sev.Emoji(), sev, st.DaysRemaining)
}

func writeCard(b *strings.Builder, i int, e reminder.Entry) {
	fmt.Fprintf(b, "<b>%d. %s</b>\n", i, html.EscapeString(e.Card.Number))
	fmt.Fprintf(b, "Last charged: %s\n", reminder.LastChargedText(e.Card))
	fmt.Fprintf(b, "Status: %s\n", statusText(e.Status))
	if by := e.Card.ChargedByName(); by != "" {
		fmt.Fprintf(b, "Last charged by: %s\n", html.EscapeString(by))
	}
}

func simListText(entries []reminder.Entry) string {
	if len(entries) == 0 {
		return noSimsText
	}
	var b strings.Builder
	b.WriteString("📱 <b>SIM cards</b>\n\n")
	for i, e := range entries {
		writeCard(&b, i+1, e)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func remindersText(due []reminder.Entry) string {
	if len(due) == 0 {
		return allClearText
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ <b>%d SIM card(s) need charging</b>\n\n", len(due))
	for i, e := range due {
		writeCard(&b, i+1, e)
		if e.Status.Never {
			b.WriteString("Days since charge: Never\n")
		} else {
			fmt.Fprintf(&b, "Days since charge: %d\n", e.Status.DaysSinceCharge)
		}
		b.WriteString("\n")
	}
	b.WriteString("Tap a card below to mark it as charged.")
	return b.String()
}

func markChargedText(n, total int) string {
	text := "💰 <b>Select a SIM card to mark as charged:</b>"
	if total > 1 {
		text += fmt.Sprintf("\nPage %d of %d", n, total)
	}
	return text
}

func chargedText(number, by string) string {
	return fmt.Sprintf("✅ SIM <b>%s</b> has been marked as charged by %s.",
		html.EscapeString(number), html.EscapeString(by))
}

// splitText cuts text into pieces of at most limit runes, preferring line
// boundaries so that per-line HTML tags stay balanced.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		flush()
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen = n
	}
	flush()
	return chunks
}
