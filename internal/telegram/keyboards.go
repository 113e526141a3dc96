package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/skoret/simcard-bot/internal/reminder"
)

func (cmd command) button() tgbotapi.KeyboardButton {
	return tgbotapi.NewKeyboardButton(cmd.label)
}

var (
	mainKeyboard = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(ViewSimsCmd.button(), MarkChargedCmd.button()),
		tgbotapi.NewKeyboardButtonRow(ViewRemindersCmd.button(), AddSimCmd.button()),
		tgbotapi.NewKeyboardButtonRow(HelpCmd.button()),
	)

	backToListKeyboard = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to SIM List", viewSimsData),
		),
	)

	numberPrompt = tgbotapi.ForceReply{ForceReply: true, Selective: true}
)

// maxInlineButtons is Telegram's limit on buttons per inline keyboard.
const maxInlineButtons = 100

func cardButtonText(e reminder.Entry) string {
	if e.Status.Never {
		return fmt.Sprintf("%s (never charged)", e.Card.Number)
	}
	return fmt.Sprintf("%s (%d days left)", e.Card.Number, e.Status.DaysRemaining)
}

// markChargedKeyboard has one button per card on the page and, when there is
// more than one page, a navigation row.
func markChargedKeyboard(entries []reminder.Entry, n, total int) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(cardButtonText(e), markChargedData(e.Card.ID)),
		))
	}
	if total > 1 {
		rows = append(rows, pageRow(n, total))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pageRow(n, total int) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	if n > 1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("◀️ Prev", pageData(n-1)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", n, total), noopData))
	if n < total {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next ▶️", pageData(n+1)))
	}
	return row
}

// remindersKeyboard offers a shortcut to mark each due card as charged.
func remindersKeyboard(due []reminder.Entry) *tgbotapi.InlineKeyboardMarkup {
	if len(due) == 0 {
		return nil
	}
	if len(due) > maxInlineButtons {
		due = due[:maxInlineButtons]
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(due))
	for _, e := range due {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Mark "+e.Card.Number+" as charged", markChargedData(e.Card.ID)),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
