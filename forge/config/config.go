// Package config loads forgebot configuration on top of the core bot config.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/forgebot/core/config"
	coredatabase "github.com/m3rciful/forgebot/core/database"
	"github.com/m3rciful/forgebot/forge/admin"
	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/session"
)

const (
	// SessionMemory keeps sessions in process memory.
	SessionMemory = "memory"
	// SessionRedis keeps sessions in Redis with key TTLs.
	SessionRedis = "redis"
)

// RedisConfig addresses the Redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// SessionConfig selects and tunes the conversation session store.
type SessionConfig struct {
	Backend string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTL     time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	// SweepInterval is how often the memory backend drops expired sessions.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
	Redis         RedisConfig   `yaml:"redis"`
}

// OrdersConfig tunes the admin triage list.
type OrdersConfig struct {
	PageSize int `yaml:"page_size" envconfig:"ORDERS_PAGE_SIZE"`
}

// ChallengeConfig tunes the bot-deterrence gate.
type ChallengeConfig struct {
	MaxAttempts int `yaml:"max_attempts" envconfig:"CHALLENGE_MAX_ATTEMPTS"`
}

// Config is the full forgebot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database    coredatabase.Config `yaml:"database"`
	Session     SessionConfig       `yaml:"session"`
	Orders      OrdersConfig        `yaml:"orders"`
	Challenge   ChallengeConfig     `yaml:"challenge"`
	CatalogPath string              `yaml:"catalog_path" envconfig:"CATALOG_PATH"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads YAML from path, applies environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if cfg.Telegram.AdminID <= 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	s := &cfg.Session
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = SessionMemory
	}
	switch s.Backend {
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return fmt.Errorf("session.redis.addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", s.Backend)
	}
	if s.TTL < 0 {
		return fmt.Errorf("session.ttl must be >= 0")
	}
	if s.TTL == 0 {
		s.TTL = session.DefaultTTL
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = 10 * time.Minute
	}

	if cfg.Orders.PageSize <= 0 {
		cfg.Orders.PageSize = admin.DefaultPageSize
	}
	if cfg.Challenge.MaxAttempts <= 0 {
		cfg.Challenge.MaxAttempts = challenge.DefaultThreshold
	}
	cfg.CatalogPath = strings.TrimSpace(cfg.CatalogPath)
	return nil
}
