// Package notify sends messages to third parties without blocking the caller's flow.
package notify

import (
	"context"
	"log/slog"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
)

// Notifier delivers a text message to an identity.
type Notifier interface {
	Notify(ctx context.Context, to domain.Identity, text string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, to domain.Identity, text string) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, to domain.Identity, text string) error {
	return f(ctx, to, text)
}

// BestEffort sends through n and logs a failure instead of returning it.
// It reports whether the message was handed off.
func BestEffort(ctx context.Context, n Notifier, component string, to domain.Identity, text string) bool {
	if n == nil {
		return false
	}
	if err := n.Notify(ctx, to, text); err != nil {
		logger.Warn(ctx, component, "notify.failed",
			slog.Int64("target_id", int64(to)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return false
	}
	return true
}
