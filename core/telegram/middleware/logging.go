package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
)

// seenUpdates remembers update ids for ttl so an update routed through
// several wrapped branches is logged once.
type seenUpdates struct {
	mu        sync.Mutex
	ttl       time.Duration
	ids       map[int]time.Time
	lastSweep time.Time
}

var receipts = &seenUpdates{ttl: 10 * time.Second, ids: make(map[int]time.Time)}

// firstSeen records id and reports whether it was new.
func (s *seenUpdates) firstSeen(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, at := range s.ids {
			if now.Sub(at) > s.ttl {
				delete(s.ids, k)
			}
		}
		s.lastSweep = now
	}
	if at, ok := s.ids[id]; ok && now.Sub(at) <= s.ttl {
		return false
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware assigns the update its rid and context and writes one
// sampled "update.received" debug line per update id.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewUpdateContext(c)
		if logger.ShouldSampleDebug() && receipts.firstSeen(c.Update().ID, time.Now()) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the sender and the payload of the update; ids
// come from the context scope.
func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := upd.Message.Text; t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
