package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
)

func TestBestEffort(t *testing.T) {
	ctx := context.Background()
	var got []domain.Identity
	ok := BestEffort(ctx, Func(func(_ context.Context, to domain.Identity, _ string) error {
		got = append(got, to)
		return nil
	}), logger.ComponentAdmin, 3, "hi")
	require.True(t, ok)
	require.Equal(t, []domain.Identity{3}, got)

	ok = BestEffort(ctx, Func(func(context.Context, domain.Identity, string) error {
		return errors.New("blocked by user")
	}), logger.ComponentAdmin, 3, "hi")
	require.False(t, ok)

	require.False(t, BestEffort(ctx, nil, logger.ComponentAdmin, 3, "hi"))
}
