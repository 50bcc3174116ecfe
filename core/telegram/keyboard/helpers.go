package keyboard

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/forgebot/core/logger"
)

// MaxCallbackData is the Telegram limit for callback_data in bytes.
const MaxCallbackData = 64

// InlineBtn is one inline button; telebot sends Unique and Data as
// "\f<unique>|<data>".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Fits reports whether the encoded callback data stays within MaxCallbackData.
func (b InlineBtn) Fits() bool {
	n := 1 + len(b.Unique)
	if b.Data != "" {
		n += 1 + len(b.Data)
	}
	return n <= MaxCallbackData
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of labels. Empty
// rows are skipped.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		if len(labels) == 0 {
			continue
		}
		row := make(tele.Row, len(labels))
		for i, label := range labels {
			row[i] = markup.Text(label)
		}
		keyboard = append(keyboard, row)
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard. Buttons whose data would be
// rejected by Telegram are dropped with a warning.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			if !btn.Fits() {
				logger.Warn(logger.Background(), "tg", "keyboard.data_too_long",
					slog.String("cb_key", btn.Unique),
					slog.Int("count", len(btn.Data)),
				)
				continue
			}
			buttons = append(buttons, *markup.Data(btn.Text, btn.Unique, btn.Data).Inline())
		}
		if len(buttons) > 0 {
			inline = append(inline, buttons)
		}
	}
	markup.InlineKeyboard = inline
	return markup
}
