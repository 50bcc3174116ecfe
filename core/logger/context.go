package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type ctxKey int

const (
	scopeKey ctxKey = iota
	loggerKey
)

// Scope identifies the update a log line belongs to. Zero fields are omitted
// from output.
type Scope struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
}

// NewScope builds the scope of a single update with its rid derived from
// the update, chat and user ids.
func NewScope(updateID int, chatID, userID int64) Scope {
	return Scope{
		RID:      BuildRID(updateID, chatID, userID),
		UpdateID: updateID,
		UserID:   userID,
		ChatID:   chatID,
	}
}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFrom returns the scope stored in ctx or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey).(Scope)
	return s
}

// WithHandler names the handler serving the update in ctx.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	s := ScopeFrom(ctx)
	s.Handler = handler
	return WithScope(ctx, s)
}

// RIDFrom is shorthand for ScopeFrom(ctx).RID.
func RIDFrom(ctx context.Context) string { return ScopeFrom(ctx).RID }

// ChatIDFrom is shorthand for ScopeFrom(ctx).ChatID.
func ChatIDFrom(ctx context.Context) int64 { return ScopeFrom(ctx).ChatID }

// WithLogger stores log in ctx for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext extracts the logger from ctx or returns the global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// fill copies the non-zero scope fields into fields without overriding
// values the caller logged explicitly.
func (s Scope) fill(fields map[string]any) {
	set := func(key string, v any, zero bool) {
		if zero {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = v
		}
	}
	set("rid", s.RID, s.RID == "")
	set("user_id", s.UserID, s.UserID == 0)
	set("update_id", s.UpdateID, s.UpdateID == 0)
	set("chat_id", s.ChatID, s.ChatID == 0)
	set("handler", s.Handler, s.Handler == "")
}
