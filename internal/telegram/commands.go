package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type handler func(b *Bot, ctx context.Context, ev *event) (responses, error)

type command struct {
	tgbotapi.BotCommand
	aliases []string // legacy snake_case spellings
	label   string   // reply keyboard button text
	handler handler
}

var (
	StartCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "start",
			Description: "Show the main menu",
		},
	}
	HelpCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "help",
			Description: "Show this help",
		},
		label: "❓ Help",
	}
	ViewSimsCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "viewsims",
			Description: "View all SIM cards and their status",
		},
		aliases: []string{"view_sims"},
		label:   "📱 View SIM Cards",
	}
	MarkChargedCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "markcharged",
			Description: "Mark a SIM card as charged",
		},
		aliases: []string{"mark_charged"},
		label:   "💰 Mark as Charged",
	}
	ViewRemindersCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "viewreminders",
			Description: "View SIM cards that need charging",
		},
		aliases: []string{"view_reminders"},
		label:   "⏰ View Reminders",
	}
	AddSimCmd = command{
		BotCommand: tgbotapi.BotCommand{
			Command:     "addsim",
			Description: "Add a new SIM card",
		},
		aliases: []string{"add_sim"},
		label:   "➕ Add SIM Card",
	}
)

// menu is the order commands are listed in help and in the Telegram menu.
var menu = []*command{
	&ViewSimsCmd,
	&MarkChargedCmd,
	&ViewRemindersCmd,
	&AddSimCmd,
	&HelpCmd,
}

var (
	commands = map[string]*command{}
	labels   = map[string]*command{}
)

func init() {
	for _, cmd := range append([]*command{&StartCmd}, menu...) {
		commands[cmd.Command] = cmd
		for _, alias := range cmd.aliases {
			commands[alias] = cmd
		}
		if cmd.label != "" {
			labels[cmd.label] = cmd
		}
	}
}

// helpText lists the commands in menu order.
func helpText() string {
	var b strings.Builder
	b.WriteString("This bot helps keep the SIM cards charged so they are not deactivated.\n\nCommands:\n")
	for _, cmd := range menu {
		fmt.Fprintf(&b, "/%s - %s\n", cmd.Command, cmd.Description)
	}
	b.WriteString("\nYou can also use the keyboard menu.")
	return b.String()
}

// setMyCommands registers the command menu with Telegram
func (b *Bot) setMyCommands() error {
	list := make([]tgbotapi.BotCommand, 0, len(menu)+1)
	list = append(list, StartCmd.BotCommand)
	for _, cmd := range menu {
		list = append(list, cmd.BotCommand)
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(list...))
	return err
}
