package helpers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by Deliver.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Deliver runs an outbound call on the dispatcher, or inline when none is wired
// or its queue cannot take the job.
func Deliver(ctx context.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func htmlOptions(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	}
}

// SendHTML sends an HTML message to the current chat and waits for the result,
// so replies keep their order.
func SendHTML(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return c.Send(text, htmlOptions(markup))
}

// EditHTML replaces the message the callback came from.
func EditHTML(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return c.Edit(text, htmlOptions(markup))
}

// EditFailure classifies an edit error by its Telegram description.
type EditFailure int

const (
	// EditFailed is any error that is not a known edit race.
	EditFailed EditFailure = iota
	// EditUnchanged means the message already shows the new content.
	EditUnchanged
	// EditGone means the message cannot be edited any more.
	EditGone
)

// ClassifyEditError maps err to an EditFailure.
func ClassifyEditError(err error) EditFailure {
	if err == nil {
		return EditFailed
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message is not modified"):
		return EditUnchanged
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message can't be edited"),
		strings.Contains(msg, "there is no text in the message to edit"):
		return EditGone
	}
	return EditFailed
}
