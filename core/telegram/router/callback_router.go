package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/callbacks"
	"github.com/m3rciful/forgebot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers unknown keys when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the OnCallback route dispatching on the unique key
// of the pressed button.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return serve(c, name, start, h, slog.String("cb_key", key))
		}

		notFound := reg.CallbackNotFound()
		if notFound == nil {
			notFound = opts.NotFound
		}
		if notFound == nil {
			skipped(c, name, start)
			return c.Respond()
		}
		return serve(c, name, start, notFound,
			slog.String("cb_key", key),
			slog.String("reason", "not_found"),
		)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
