package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/forgebot/core/logger"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

const (
	// postgres in compose setups often starts after the bot
	postgresReadyTimeout = 30 * time.Second
	sqliteReadyTimeout   = 5 * time.Second
	readyRetryInterval   = 2 * time.Second
)

// Connect opens the database, waits until it answers pings and configures the pool.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}
	timeout := postgresReadyTimeout
	if cfg.Driver == DriverSQLite {
		timeout = sqliteReadyTimeout
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	attempts, err := waitReady(ctx, db)
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Target()),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		_ = db.Close()
		return nil, fmt.Errorf("db connect: %w", err)
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return db, nil
}

// waitReady pings db until it answers or ctx expires.
func waitReady(ctx context.Context, db *sqlx.DB) (int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return attempt, nil
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.ping"),
			slog.Int("attempt", attempt),
			slog.String("err", lastErr.Error()),
		)
		timer := time.NewTimer(readyRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
}
