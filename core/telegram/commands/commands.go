package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command together with the reply-keyboard labels that
// trigger the same handler.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated on the configured admin id and never
	// published to the Telegram command menu.
	AdminOnly bool
	// Hidden commands work but are left out of the command menu.
	Hidden bool
	// Aliases are exact message texts, usually menu button labels.
	Aliases []string
}
