package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/forgebot/core/logger"
	"golang.org/x/time/rate"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	Burst    int
	Exclude  map[string]struct{}
	// Exempt lists users that are never limited, such as the admin.
	Exempt    map[int64]struct{}
	OnLimited tele.HandlerFunc
}

type userBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// idleBucketTTL is how long an untouched bucket is kept before it is dropped.
const idleBucketTTL = 30 * time.Minute

// RateLimitMiddleware returns a middleware that gives every user a token bucket
// refilled once per Interval and holding up to Burst tokens.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	var (
		buckets   = make(map[int64]*userBucket)
		bucketsMu sync.Mutex
		lastPrune time.Time
	)

	allow := func(userID int64, now time.Time) bool {
		bucketsMu.Lock()
		defer bucketsMu.Unlock()
		if now.Sub(lastPrune) > idleBucketTTL {
			for id, b := range buckets {
				if now.Sub(b.lastSeen) > idleBucketTTL {
					delete(buckets, id)
				}
			}
			lastPrune = now
		}
		b, ok := buckets[userID]
		if !ok {
			b = &userBucket{lim: rate.NewLimiter(rate.Every(opts.Interval), burst)}
			buckets[userID] = b
		}
		b.lastSeen = now
		return b.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, ok := opts.Exempt[user.ID]; ok {
				return next(c)
			}

			// Determine update kind and apply configured exclusions
			upd := c.Update()
			kind := "other"
			switch {
			case upd.Callback != nil:
				kind = "callback"
			case upd.Message != nil:
				kind = "message"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if allow(user.ID, time.Now()) {
				return next(c)
			}

			attrs := []slog.Attr{
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.LogEvent(logger.Background(), logger.Component("tg"), slog.LevelWarn, "tg.rate_limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
