package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/forgebot/core/config"
	"github.com/m3rciful/forgebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the global chain: recover, per-user rate limit
// (the admin is exempt), then update logging and reply metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}

	if limiter := rateLimit(cfg, onLimited); limiter != nil {
		mws = append(mws, Middleware{Name: "rate_limit", Use: limiter})
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	exempt := map[int64]struct{}{}
	if cfg.Telegram.AdminID != 0 {
		exempt[cfg.Telegram.AdminID] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   exclude,
		Exempt:    exempt,
		OnLimited: onLimited,
	})
}
