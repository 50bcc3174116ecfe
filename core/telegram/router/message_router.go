package router

import (
	"time"

	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for an FSM manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls alias gating and fallbacks for text and media updates.
type TextOptions struct {
	// AdminID and OnAdminReject guard aliases of admin-only commands.
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	UnknownText   tele.HandlerFunc
	// UnknownMedia answers non-text messages sent outside a flow.
	UnknownMedia tele.HandlerFunc
}

// MediaEndpoints lists the non-text updates routed to the FSM.
var MediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideo,
	tele.OnVideoNote,
	tele.OnAudio,
	tele.OnAnimation,
	tele.OnContact,
	tele.OnLocation,
}

func inFlow(fsmMgr FSM, c tele.Context) bool {
	if fsmMgr == nil || c.Sender() == nil {
		return false
	}
	return fsmMgr.InProgress(c.Sender().ID)
}

// TextRoutes builds the OnText route and one route per media endpoint.
// An active flow sees every message first; otherwise text resolves to a
// command alias, then the registry fallback, then opts.UnknownText.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	handler := func(c tele.Context) error {
		start := time.Now()

		if inFlow(fsmMgr, c) {
			return serve(c, "fsm", start, fsmMgr.ManagerHandler)
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				h := cmd.Handler
				if cmd.AdminOnly {
					h = guard(h)
				}
				return serve(c, normalizeHandlerName(key), start, h)
			}
			if fb := reg.TextFallback(); fb != nil {
				return serve(c, "fallback", start, fb)
			}
		}

		if opts.UnknownText != nil {
			return serve(c, "unknown_text", start, opts.UnknownText)
		}

		skipped(c, "unknown_text", start)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if inFlow(fsmMgr, c) {
			return serve(c, "fsm_media", start, fsmMgr.ManagerHandler)
		}
		if opts.UnknownMedia != nil {
			return serve(c, "unexpected_media", start, opts.UnknownMedia)
		}
		skipped(c, "unexpected_media", start)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	routes := make([]tg.Route, 0, len(MediaEndpoints)+1)
	routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: wrap(handler)})
	media := wrap(mediaHandler)
	for _, endpoint := range MediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: media})
	}
	return routes
}
