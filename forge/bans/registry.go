// Package bans answers whether an identity may use the bot.
package bans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
)

// Repository is the storage the registry needs.
type Repository interface {
	Ban(ctx context.Context, who domain.Identity) (*domain.BanRecord, error)
	UpsertBan(ctx context.Context, who domain.Identity, reason string) error
	DeactivateBan(ctx context.Context, who domain.Identity) error
	ActiveBans(ctx context.Context) ([]domain.BanRecord, error)
}

// Registry tracks banned identities.
type Registry struct {
	repo Repository
}

// NewRegistry builds a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

func (r *Registry) active(ctx context.Context, who domain.Identity) (*domain.BanRecord, error) {
	b, err := r.repo.Ban(ctx, who)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ban %d: %w", who, err)
	}
	if !b.Active {
		return nil, nil
	}
	return b, nil
}

// IsBanned reports whether who has an active ban.
func (r *Registry) IsBanned(ctx context.Context, who domain.Identity) (bool, error) {
	b, err := r.active(ctx, who)
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// Reason returns the reason of the active ban. The flag is false when who is not banned.
func (r *Registry) Reason(ctx context.Context, who domain.Identity) (string, bool, error) {
	b, err := r.active(ctx, who)
	if err != nil || b == nil {
		return "", false, err
	}
	return b.Reason, true, nil
}

// Ban activates a ban for who, replacing any previous reason.
func (r *Registry) Ban(ctx context.Context, who domain.Identity, reason string) error {
	if err := r.repo.UpsertBan(ctx, who, reason); err != nil {
		return err
	}
	logger.Info(ctx, logger.ComponentBans, "ban.applied",
		slog.Int64("target_id", int64(who)),
		slog.String("reason", logger.SanitizeLimit(reason, 128)),
	)
	return nil
}

// Unban lifts the ban of who. Unbanning an identity that is not banned is a no-op.
func (r *Registry) Unban(ctx context.Context, who domain.Identity) error {
	if err := r.repo.DeactivateBan(ctx, who); err != nil {
		return err
	}
	logger.Info(ctx, logger.ComponentBans, "ban.lifted",
		slog.Int64("target_id", int64(who)),
	)
	return nil
}

// Active lists active bans, newest first.
func (r *Registry) Active(ctx context.Context) ([]domain.BanRecord, error) {
	return r.repo.ActiveBans(ctx)
}
