package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type eventKind int

const (
	eventUnsupported eventKind = iota
	eventCommand               // slash command; cmd is nil when unknown
	eventButton                // reply keyboard label
	eventReply                 // reply to one of our messages
	eventText                  // any other text
	eventCallback              // inline keyboard press
)

func (k eventKind) String() string {
	switch k {
	case eventCommand:
		return "command"
	case eventButton:
		return "button"
	case eventReply:
		return "reply"
	case eventText:
		return "text"
	case eventCallback:
		return "callback"
	default:
		return "unsupported"
	}
}

type callbackKind int

const (
	callbackUnknown callbackKind = iota
	callbackMarkCharged
	callbackPage
	callbackViewSims
	callbackNoop
)

const (
	markChargedPrefix = "mark_charged:"
	pagePrefix        = "page:"
	viewSimsData      = "view_sims"
	noopData          = "noop"
)

type callbackData struct {
	kind  callbackKind
	simID string
	page  int
}

// event is an inbound update reduced to the shapes the bot understands.
type event struct {
	kind     eventKind
	cmd      *command // set for commands, buttons and label-shaped replies
	callback callbackData
	chatID   int64
	msgID    int // the message itself, or the message the callback is attached to
	replyTo  int // prompt message id for replies
	queryID  string
	from     *tgbotapi.User
	text     string
	raw      string // unparsed callback data or command name
}

func parseUpdate(update *tgbotapi.Update) *event {
	switch {
	case update.Message != nil:
		return parseMessage(update.Message)
	case update.CallbackQuery != nil:
		return parseQuery(update.CallbackQuery)
	default:
		return &event{kind: eventUnsupported}
	}
}

func parseMessage(msg *tgbotapi.Message) *event {
	ev := &event{
		kind:  eventText,
		msgID: msg.MessageID,
		from:  msg.From,
		text:  strings.TrimSpace(msg.Text),
	}
	if msg.Chat != nil {
		ev.chatID = msg.Chat.ID
	}
	if ev.text == "" {
		ev.kind = eventUnsupported
		return ev
	}

	if strings.HasPrefix(ev.text, "/") {
		ev.kind = eventCommand
		ev.raw = commandName(ev.text)
		ev.cmd = commands[ev.raw]
		return ev
	}

	ev.cmd = labels[ev.text]
	switch {
	case msg.ReplyToMessage != nil:
		ev.kind = eventReply
		ev.replyTo = msg.ReplyToMessage.MessageID
	case ev.cmd != nil:
		ev.kind = eventButton
	}
	return ev
}

// commandName extracts "viewsims" from "/viewsims@SimBot extra args".
func commandName(text string) string {
	name := strings.Fields(text)[0]
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func parseQuery(query *tgbotapi.CallbackQuery) *event {
	ev := &event{
		kind:     eventCallback,
		queryID:  query.ID,
		from:     query.From,
		raw:      query.Data,
		callback: parseCallback(query.Data),
	}
	if query.Message != nil {
		ev.msgID = query.Message.MessageID
		if query.Message.Chat != nil {
			ev.chatID = query.Message.Chat.ID
		}
	}
	return ev
}

func parseCallback(data string) callbackData {
	switch {
	case data == noopData:
		return callbackData{kind: callbackNoop}
	case data == viewSimsData:
		return callbackData{kind: callbackViewSims}
	case strings.HasPrefix(data, markChargedPrefix):
		id := strings.TrimPrefix(data, markChargedPrefix)
		if id == "" {
			return callbackData{}
		}
		return callbackData{kind: callbackMarkCharged, simID: id}
	case strings.HasPrefix(data, pagePrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(data, pagePrefix))
		if err != nil || n < 1 {
			return callbackData{}
		}
		return callbackData{kind: callbackPage, page: n}
	default:
		return callbackData{}
	}
}

func markChargedData(simID string) string {
	return markChargedPrefix + simID
}

func pageData(n int) string {
	return pagePrefix + strconv.Itoa(n)
}
