package tgbot

import (
	"context"
	"errors"
	"sync"

	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
	"github.com/m3rciful/forgebot/forge/domain"

	tele "gopkg.in/telebot.v4"
)

var errNotAttached = errors.New("tgbot: notifier is not attached to a bot")

// Messenger is the part of *tele.Bot the notifier uses.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier pushes messages to users outside the update they belong to.
// It is created before the bot exists and attached once the bot starts.
type Notifier struct {
	mu  sync.RWMutex
	api Messenger
}

// Attach sets the bot used for delivery.
func (n *Notifier) Attach(api Messenger) {
	n.mu.Lock()
	n.api = api
	n.mu.Unlock()
}

// Notify queues an HTML message to the given user on the outbound dispatcher.
func (n *Notifier) Notify(ctx context.Context, to domain.Identity, text string) error {
	n.mu.RLock()
	api := n.api
	n.mu.RUnlock()
	if api == nil {
		return errNotAttached
	}
	return tghelpers.Deliver(ctx, "notify", "sendMessage", func() error {
		_, err := api.Send(tele.ChatID(to), text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		return err
	})
}
