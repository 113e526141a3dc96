package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/skoret/simcard-bot/internal/reminder"
	"github.com/skoret/simcard-bot/internal/storage"
)

type responses []tgbotapi.Chattable

const (
	numberPromptText  = "Please enter the SIM card number in the format: 0921-XXX-XXXX"
	invalidNumberText = "Invalid SIM card number format. Please use the format: 0921-XXX-XXXX"
	addFailedText     = "Error adding SIM card. Please try again later."
)

func (b *Bot) handleMessage(ctx context.Context, ev *event) (responses, error) {
	switch ev.kind {
	case eventReply:
		if h, ok := b.replies.take(captureKey{chatID: ev.chatID, messageID: ev.replyTo}); ok {
			return h(b, ctx, ev)
		}
		if ev.cmd == nil {
			log.Debug().Int64("chat_id", ev.chatID).Int("reply_to", ev.replyTo).Msg("ignoring reply with no pending prompt")
			return nil, nil
		}
	case eventText:
		return responses{tgbotapi.NewMessage(ev.chatID, "Use the keyboard menu or /help to see what I can do.")}, nil
	case eventCommand:
		if ev.cmd == nil {
			return responses{tgbotapi.NewMessage(ev.chatID, "Unknown command. Use /help.")}, nil
		}
	}
	return ev.cmd.handler(b, ctx, ev)
}

func (b *Bot) handleStart(_ context.Context, ev *event) (responses, error) {
	text := fmt.Sprintf(
		"👋 Hello, %s!\n\nThis bot keeps track of when the SIM cards were last charged "+
			"and reminds the admins before they get deactivated.\n\nUse the keyboard below or /help.",
		html.EscapeString(ev.from.FirstName),
	)
	msg := htmlMessage(ev.chatID, text)
	msg.ReplyMarkup = mainKeyboard
	return responses{msg}, nil
}

func (b *Bot) handleHelp(_ context.Context, ev *event) (responses, error) {
	msg := tgbotapi.NewMessage(ev.chatID, helpText())
	msg.ReplyMarkup = mainKeyboard
	return responses{msg}, nil
}

// entries loads every card with its status as of now, in number order.
func (b *Bot) entries(ctx context.Context) ([]reminder.Entry, error) {
	cards, err := b.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return reminder.Evaluate(cards, b.policy, b.now()), nil
}

func (b *Bot) handleViewSims(ctx context.Context, ev *event) (responses, error) {
	entries, err := b.entries(ctx)
	if err != nil {
		return responses{errorMessage(ev.chatID, ev.msgID, false)}, errors.Wrap(err, "failed to list sims")
	}
	res := make(responses, 0, 1)
	for _, chunk := range splitText(simListText(entries), maxMessageLength) {
		res = append(res, htmlMessage(ev.chatID, chunk))
	}
	return res, nil
}

// handleMarkCharged shows the most urgent cards first, never-charged ones on
// top.
func (b *Bot) handleMarkCharged(ctx context.Context, ev *event) (responses, error) {
	entries, err := b.entries(ctx)
	if err != nil {
		return responses{errorMessage(ev.chatID, ev.msgID, false)}, errors.Wrap(err, "failed to list sims")
	}
	if len(entries) == 0 {
		return responses{tgbotapi.NewMessage(ev.chatID, noSimsText)}, nil
	}
	reminder.SortByUrgency(entries)
	page, n, total := paginate(entries, 1, pageSize)
	msg := htmlMessage(ev.chatID, markChargedText(n, total))
	msg.ReplyMarkup = markChargedKeyboard(page, n, total)
	return responses{msg}, nil
}

func (b *Bot) handleViewReminders(ctx context.Context, ev *event) (responses, error) {
	entries, err := b.entries(ctx)
	if err != nil {
		return responses{errorMessage(ev.chatID, ev.msgID, false)}, errors.Wrap(err, "failed to list sims")
	}
	due := reminder.Due(b.policy, entries)
	if len(due) == 0 {
		return responses{tgbotapi.NewMessage(ev.chatID, allClearText)}, nil
	}

	chunks := splitText(remindersText(due), maxMessageLength)
	res := make(responses, 0, len(chunks))
	for i, chunk := range chunks {
		msg := htmlMessage(ev.chatID, chunk)
		if i == len(chunks)-1 {
			msg.ReplyMarkup = remindersKeyboard(due)
		}
		res = append(res, msg)
	}
	return res, nil
}

func (b *Bot) handleAddSim(_ context.Context, ev *event) (responses, error) {
	return nil, b.promptNumber(ev.chatID, numberPromptText)
}

// promptNumber asks for a SIM number with a force-reply prompt and waits for
// the answer to that prompt.
func (b *Bot) promptNumber(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = numberPrompt
	sent, err := b.api.Send(msg)
	if err != nil {
		sendFailures.Inc()
		return errors.Wrap(err, "failed to send number prompt")
	}
	b.replies.arm(captureKey{chatID: chatID, messageID: sent.MessageID}, (*Bot).completeAddSim)
	return nil
}

func (b *Bot) completeAddSim(ctx context.Context, ev *event) (responses, error) {
	number := strings.TrimSpace(ev.text)
	if !storage.ValidNumber(number) {
		return nil, b.promptNumber(ev.chatID, invalidNumberText)
	}

	exists := tgbotapi.NewMessage(ev.chatID, fmt.Sprintf("SIM card %s already exists in the database.", number))

	existing, err := b.repo.FindByNumber(ctx, number)
	if err != nil {
		return responses{tgbotapi.NewMessage(ev.chatID, addFailedText)}, errors.Wrap(err, "failed to look up sim")
	}
	if existing != nil {
		return responses{exists}, nil
	}

	card, err := b.repo.Insert(ctx, number)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return responses{exists}, nil
	case err != nil:
		return responses{tgbotapi.NewMessage(ev.chatID, addFailedText)}, errors.Wrap(err, "failed to add sim")
	}

	log.Info().Str("number", card.Number).Int64("admin_id", ev.from.ID).Msg("sim added")
	return responses{tgbotapi.NewMessage(ev.chatID, fmt.Sprintf("✅ SIM card %s has been added to the database.", card.Number))}, nil
}

func (b *Bot) handleQuery(ctx context.Context, ev *event) (responses, error) {
	switch ev.callback.kind {
	case callbackMarkCharged:
		return b.handleChargedQuery(ctx, ev)
	case callbackPage:
		return b.handlePageQuery(ctx, ev)
	case callbackViewSims:
		return b.handleViewSimsQuery(ctx, ev)
	case callbackNoop:
		return responses{answer(ev)}, nil
	default:
		return responses{answer(ev)}, errors.Errorf("unknown callback data: %q", ev.raw)
	}
}

func (b *Bot) handleChargedQuery(ctx context.Context, ev *event) (responses, error) {
	name := chargerName(ev.from)
	card, err := b.repo.MarkCharged(ctx, ev.callback.simID, name, b.now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return responses{tgbotapi.NewCallback(ev.queryID, "SIM card not found.")}, errors.Wrap(err, "failed to mark sim as charged")
	case err != nil:
		return responses{tgbotapi.NewCallback(ev.queryID, "Error marking SIM as charged. Please try again.")}, errors.Wrap(err, "failed to mark sim as charged")
	}

	log.Info().Str("number", card.Number).Str("charged_by", name).Msg("sim marked as charged")

	edit := tgbotapi.NewEditMessageTextAndMarkup(ev.chatID, ev.msgID, chargedText(card.Number, name), backToListKeyboard)
	edit.ParseMode = tgbotapi.ModeHTML
	return responses{
		tgbotapi.NewCallback(ev.queryID, fmt.Sprintf("SIM %s marked as charged!", card.Number)),
		edit,
	}, nil
}

// handlePageQuery redraws the mark-charged picker in place on another page.
func (b *Bot) handlePageQuery(ctx context.Context, ev *event) (responses, error) {
	entries, err := b.entries(ctx)
	if err != nil {
		return responses{answer(ev), errorMessage(ev.chatID, ev.msgID, true)}, errors.Wrap(err, "failed to list sims")
	}
	if len(entries) == 0 {
		return responses{answer(ev), tgbotapi.NewEditMessageText(ev.chatID, ev.msgID, noSimsText)}, nil
	}
	reminder.SortByUrgency(entries)
	page, n, total := paginate(entries, ev.callback.page, pageSize)
	edit := tgbotapi.NewEditMessageTextAndMarkup(ev.chatID, ev.msgID, markChargedText(n, total), markChargedKeyboard(page, n, total))
	edit.ParseMode = tgbotapi.ModeHTML
	return responses{answer(ev), edit}, nil
}

func (b *Bot) handleViewSimsQuery(ctx context.Context, ev *event) (responses, error) {
	entries, err := b.entries(ctx)
	if err != nil {
		return responses{answer(ev), errorMessage(ev.chatID, ev.msgID, true)}, errors.Wrap(err, "failed to list sims")
	}
	chunks := splitText(simListText(entries), maxMessageLength)
	edit := tgbotapi.NewEditMessageText(ev.chatID, ev.msgID, chunks[0])
	edit.ParseMode = tgbotapi.ModeHTML
	res := responses{answer(ev), edit}
	for _, chunk := range chunks[1:] {
		res = append(res, htmlMessage(ev.chatID, chunk))
	}
	return res, nil
}

func answer(ev *event) tgbotapi.CallbackConfig {
	return tgbotapi.NewCallback(ev.queryID, "")
}

func init() {
	StartCmd.handler = (*Bot).handleStart
	HelpCmd.handler = (*Bot).handleHelp
	ViewSimsCmd.handler = (*Bot).handleViewSims
	MarkChargedCmd.handler = (*Bot).handleMarkCharged
	ViewRemindersCmd.handler = (*Bot).handleViewReminders
	AddSimCmd.handler = (*Bot).handleAddSim
}

const sorry = "Something went wrong, please try again later."

func errorMessage(chatID int64, msgID int, edit bool) (res tgbotapi.Chattable) {
	if edit {
		res = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, sorry, backToListKeyboard)
	} else {
		res = tgbotapi.NewMessage(chatID, sorry)
	}
	return
}
