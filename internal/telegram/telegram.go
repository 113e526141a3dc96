package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/skoret/simcard-bot/internal/access"
	"github.com/skoret/simcard-bot/internal/status"
	"github.com/skoret/simcard-bot/internal/storage"
)

const (
	handlerTimeout = 30 * time.Second
	replyTTL       = 5 * time.Minute
)

// messenger is the part of the Bot API the bot talks to.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	wg      *sync.WaitGroup
	api     messenger
	poller  *tgbotapi.BotAPI
	repo    *storage.Repository
	access  *access.Service
	policy  status.Policy
	replies *replyRegistry
	now     func() time.Time
}

// NewBot creates new Bot instance
func NewBot(token string, repo *storage.Repository, accessService *access.Service, policy status.Policy) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot api")
	}
	log.Info().Str("username", api.Self.UserName).Int64("id", api.Self.ID).Msg("bot user")

	bot := newBot(api, repo, accessService, policy)
	bot.poller = api

	if err := bot.setMyCommands(); err != nil {
		return nil, errors.Wrap(err, "failed to set bot commands")
	}
	return bot, nil
}

func newBot(api messenger, repo *storage.Repository, accessService *access.Service, policy status.Policy) *Bot {
	return &Bot{
		wg:      &sync.WaitGroup{},
		api:     api,
		repo:    repo,
		access:  accessService,
		policy:  policy,
		replies: newReplyRegistry(replyTTL),
		now:     time.Now,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	// wait all running handlers to finish and drop pending replies
	defer func() {
		b.wg.Wait()
		b.replies.stop()
	}()

	config := tgbotapi.NewUpdate(0)
	config.Timeout = 30

	updates := b.poller.GetUpdatesChan(config)

	for {
		select {
		case update := <-updates:
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				for _, err := range b.handle(&update) {
					log.Error().Err(err).Int("update_id", update.UpdateID).Msg("failed to handle update")
				}
			}()
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("stopping bot")
			b.poller.StopReceivingUpdates()
			return nil
		}
	}
}

func (b *Bot) handle(update *tgbotapi.Update) []error {
	ev := parseUpdate(update)
	updatesTotal.WithLabelValues(ev.kind.String()).Inc()
	log.Debug().
		Int("update_id", update.UpdateID).
		Stringer("kind", ev.kind).
		Int64("chat_id", ev.chatID).
		Msg("new update")

	if ev.kind == eventUnsupported {
		return nil
	}
	if ev.from == nil {
		return []error{errors.New("update without sender")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var res responses
	var err error
	if aerr := b.access.Authorize(ev.from.ID); aerr != nil {
		log.Warn().Int64("user_id", ev.from.ID).Str("username", ev.from.UserName).Msg("unauthorized access attempt")
		res = rejection(ev)
	} else if ev.kind == eventCallback {
		res, err = b.handleQuery(ctx, ev)
	} else {
		res, err = b.handleMessage(ctx, ev)
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, resp := range res {
		if err := b.send(resp); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if c == nil {
		return nil
	}

	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		if v.Text == "" {
			log.Warn().Msg("attempted to send empty message, skipping")
			return nil
		}
	case tgbotapi.EditMessageTextConfig:
		if v.Text == "" {
			log.Warn().Msg("attempted to send empty edit message, skipping")
			return nil
		}
	case tgbotapi.CallbackConfig:
		// answers carry no message in the result
		if _, err := b.api.Request(v); err != nil {
			sendFailures.Inc()
			return errors.Wrap(err, "failed to answer callback query")
		}
		return nil
	}

	msg, err := b.api.Send(c)
	if err != nil {
		sendFailures.Inc()
		return errors.Wrap(err, "failed to send message")
	}
	log.Debug().Int("message_id", msg.MessageID).Msg("sent message")
	return nil
}

// Broadcast sends text to every admin. Each admin chat is the admin's user
// id. A failed delivery is logged and does not stop the others; only the
// end of ctx does.
func (b *Bot) Broadcast(ctx context.Context, text string) int {
	sent := 0
	for _, adminID := range b.access.Admins() {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("broadcast interrupted")
			break
		}
		if err := b.SendNotification(adminID, text); err != nil {
			log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to deliver notification")
			continue
		}
		sent++
	}
	return sent
}

// SendNotification sends an HTML message to a chat, split to fit Telegram's
// message limit.
func (b *Bot) SendNotification(chatID int64, text string) error {
	for _, chunk := range splitText(text, maxMessageLength) {
		if err := b.send(htmlMessage(chatID, chunk)); err != nil {
			return err
		}
	}
	return nil
}

func rejection(ev *event) responses {
	if ev.kind == eventCallback {
		return responses{tgbotapi.NewCallback(ev.queryID, "Unauthorized access")}
	}
	return responses{tgbotapi.NewMessage(ev.chatID, "Sorry, this bot is only available for authorized administrators.")}
}

// chargerName is how the admin is recorded as the one who charged a card.
func chargerName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}
