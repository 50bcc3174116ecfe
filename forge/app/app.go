// Package app assembles forgebot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/forgebot/core/logger"
	coretelegram "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/router"
	"github.com/m3rciful/forgebot/forge/admin"
	"github.com/m3rciful/forgebot/forge/bans"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/config"
	"github.com/m3rciful/forgebot/forge/dialogue"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/session"
	"github.com/m3rciful/forgebot/forge/store"
	"github.com/m3rciful/forgebot/forge/tgbot"
)

const redisPingTimeout = 5 * time.Second

// App owns every long-lived component of the bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	sessions session.Store
	memory   *session.Memory
	redis    *redis.Client
	notifier *tgbot.Notifier
	bot      *tgbot.Bot

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
	closeOnce   sync.Once
}

// New wires the domain services over db.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if db == nil {
		return nil, fmt.Errorf("app: nil database")
	}
	a := &App{cfg: cfg, db: db, notifier: &tgbot.Notifier{}}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if err := a.openSessions(); err != nil {
		return nil, err
	}

	st := store.New(db)
	registry := bans.NewRegistry(st)
	gate := challenge.NewGate(st, registry, challenge.WithThreshold(cfg.Challenge.MaxAttempts))
	adminID := domain.Identity(cfg.Telegram.AdminID)

	engine, err := dialogue.New(dialogue.Deps{
		Sessions: a.sessions,
		Bans:     registry,
		Gate:     gate,
		Orders:   st,
		Appeals:  st,
		Catalog:  cat,
		Notifier: a.notifier,
		AdminID:  adminID,
	})
	if err != nil {
		_ = a.closeSessions()
		return nil, err
	}
	svc := admin.NewService(st, registry, a.notifier, adminID, cfg.Orders.PageSize)
	a.bot = tgbot.New(engine, admin.NewConsole(svc, cat))

	logger.Info(logger.Background(), "app", "app.wired",
		slog.String("session_backend", cfg.Session.Backend),
		slog.Int("services", len(cat.Services)),
		slog.Int("max_attempts", gate.Threshold()),
	)
	return a, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return cat, nil
}

func (a *App) openSessions() error {
	sc := a.cfg.Session
	switch sc.Backend {
	case config.SessionRedis:
		cli := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := cli.Ping(ctx).Err(); err != nil {
			_ = cli.Close()
			return fmt.Errorf("app: redis ping %s: %w", sc.Redis.Addr, err)
		}
		a.redis = cli
		a.sessions = session.NewRedis(cli, sc.TTL)
	default:
		a.memory = session.NewMemory(sc.TTL)
		a.sessions = a.memory
	}
	return nil
}

func (a *App) closeSessions() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *App) startSweeper() {
	if a.memory == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	a.sweepWG.Add(1)
	go func() {
		defer a.sweepWG.Done()
		a.memory.RunSweeper(ctx, a.cfg.Session.SweepInterval)
	}()
}

// TelegramRunOptions builds the routes and lifecycle hooks for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.bot.OnAdminReject,
	})
	routes = append(routes, router.TextRoutes(a.bot.FSM(), reg, router.TextOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.bot.OnAdminReject,
		UnknownMedia:  a.bot.OnMedia,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.bot.OnLimited),
		Routes:      routes,
		Synchronous: true,
		OnError:     a.bot.OnError,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			if rt.Bot == nil {
				return fmt.Errorf("app: runtime without bot")
			}
			a.notifier.Attach(rt.Bot)
			a.startSweeper()
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close stops background work and releases connections. It is safe to call twice.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.sweepCancel != nil {
			a.sweepCancel()
			a.sweepWG.Wait()
		}
		err = errors.Join(a.closeSessions(), a.db.Close())
	})
	return err
}
