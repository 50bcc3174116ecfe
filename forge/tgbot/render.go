package tgbot

import (
	"log/slog"

	"github.com/m3rciful/forgebot/core/logger"
	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
	"github.com/m3rciful/forgebot/core/telegram/keyboard"
	"github.com/m3rciful/forgebot/forge/reply"

	tele "gopkg.in/telebot.v4"
)

const component = "tg"

func inlineMarkup(rows [][]reply.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{
				Text:   b.Text,
				Unique: string(b.Action.Kind),
				Data:   b.Action.Data(),
			})
		}
		out = append(out, r)
	}
	return keyboard.InlineButtonsRows(out...)
}

func menuMarkup(m reply.Menu) *tele.ReplyMarkup {
	switch m {
	case reply.MenuKeep:
		return nil
	case reply.MenuRemove:
		return keyboard.RemoveKeyboard()
	}
	rows := reply.MenuRows(m)
	if len(rows) == 0 {
		return nil
	}
	return keyboard.ReplyButtons(rows...)
}

// markupFor picks the keyboard of m. A message carries one markup, inline buttons win.
func markupFor(m reply.Message) *tele.ReplyMarkup {
	if mk := inlineMarkup(m.Buttons); mk != nil {
		return mk
	}
	if m.Edit {
		return nil
	}
	return menuMarkup(m.Menu)
}

// render answers the callback, if any, and delivers r's messages in order.
func render(c tele.Context, r reply.Result) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	if cb != nil {
		resp := &tele.CallbackResponse{Text: r.Notice, ShowAlert: r.Alert}
		if err := c.Respond(resp); err != nil {
			logger.Debug(ctx, component, "callback.respond_failed",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	for _, m := range r.Messages {
		markup := markupFor(m)
		if m.Edit && cb != nil && cb.Message != nil {
			err := tghelpers.EditHTML(c, m.Text, markup)
			if err == nil {
				continue
			}
			switch tghelpers.ClassifyEditError(err) {
			case tghelpers.EditUnchanged:
				logger.Debug(ctx, component, "edit.unchanged")
				continue
			case tghelpers.EditGone:
				logger.Debug(ctx, component, "edit.fallback_send",
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
			default:
				return err
			}
		}
		if err := tghelpers.SendHTML(c, m.Text, markup); err != nil {
			return err
		}
	}
	return nil
}
