package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/forgebot/core/logger"
	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
)

// AdminOptions configure AdminOnlyMiddleware. A zero AdminID lets everyone
// through; OnReject answers everybody else and may be nil.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender of c is adminID.
func IsAdmin(c tele.Context, adminID int64) bool {
	user := c.Sender()
	return adminID != 0 && user != nil && user.ID == adminID
}

// AdminOnlyMiddleware restricts downstream handlers to the configured admin.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID == 0 || IsAdmin(c, opts.AdminID) {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "access.denied",
				slog.String("status", "skip"),
				slog.String("payload", logger.SanitizeLimit(c.Text(), 64)),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
