package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/forgebot/core/logger"
	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
	"github.com/m3rciful/forgebot/core/telegram/middleware"
)

// serve runs h as the named handler and writes its "handler.handled" line.
func serve(c tele.Context, name string, start time.Time, h tele.HandlerFunc, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := h(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	logHandled(c, name, start, status, err, extras...)
	return err
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string, start time.Time) {
	logHandled(c, name, start, "skip", nil)
}

func logHandled(c tele.Context, name string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	replies := middleware.Counters(c)
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", replies.Messages()),
		slog.Bool("kb", replies.Keyboard),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if replies.Edited > 0 {
		attrs = append(attrs, slog.Int("edited", replies.Edited))
	}
	if replies.Answered > 0 {
		attrs = append(attrs, slog.Int("answered", replies.Answered))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a Code() anywhere in the chain, then telebot and
// context errors, then the concrete type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	var tgErr *tele.Error
	switch {
	case errors.As(err, &tgErr):
		return "TELEGRAM_API"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
