package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/forgebot/core/logger"
	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes builds one route per registered slash command. Admin-only
// commands are gated before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	defs := reg.Commands()
	routes := make([]tg.Route, 0, len(defs))
	for text, def := range defs {
		h := def.Handler
		if def.AdminOnly {
			h = guard(h)
		}
		name := normalizeHandlerName(text)
		handler := func(c tele.Context) error {
			return serve(c, name, time.Now(), h)
		}
		routes = append(routes, tg.Route{
			Endpoint: text,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		})
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "wire.complete",
		slog.Int("commands", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
