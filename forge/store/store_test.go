package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/store"
	"github.com/m3rciful/forgebot/forge/store/storetest"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	clock := &tick{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	return storetest.New(t, store.WithClock(clock.now))
}

func ptr(s string) *string { return &s }

func TestUpsertClientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1, err := s.UpsertClient(ctx, domain.Client{Identity: 42, DisplayName: "Ivan"})
	require.NoError(t, err)
	id2, err := s.UpsertClient(ctx, domain.Client{Identity: 42, DisplayName: "Ivan P.", Username: ptr("ivanp")})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	c, err := s.ClientByIdentity(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "Ivan P.", c.DisplayName)
	require.NotNil(t, c.Username)
	require.Equal(t, "ivanp", *c.Username)

	_, err = s.ClientByIdentity(ctx, 43)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	clientID, err := s.UpsertClient(ctx, domain.Client{Identity: 7, DisplayName: "Olga", Username: ptr("olga")})
	require.NoError(t, err)

	id, err := s.CreateOrder(ctx, domain.Order{
		ClientID:      clientID,
		Kind:          domain.KindCatalog,
		ServiceCode:   ptr("gates"),
		Description:   "fence repair",
		ContactMethod: domain.ContactEmail,
		ContactValue:  "a@b.com",
	})
	require.NoError(t, err)

	got, err := s.Order(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, got.Status)
	require.Equal(t, domain.KindCatalog, got.Kind)
	require.Equal(t, "gates", *got.ServiceCode)
	require.Nil(t, got.Title)
	require.Equal(t, "Olga", *got.ClientName)
	require.Equal(t, domain.Identity(7), *got.ClientIdentity)
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.SetOrderStatus(ctx, id, domain.StatusInProgress))
	got, err = s.Order(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, got.Status)

	require.ErrorIs(t, s.SetOrderStatus(ctx, id+100, domain.StatusDone), domain.ErrNotFound)
	_, err = s.Order(ctx, id+100)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActiveOrdersExcludeClosed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	clientID, err := s.UpsertClient(ctx, domain.Client{Identity: 1, DisplayName: "A"})
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.CreateOrder(ctx, domain.Order{
			ClientID:      clientID,
			Kind:          domain.KindCustom,
			Title:         ptr("bench"),
			ContactMethod: domain.ContactPhone,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.SetOrderStatus(ctx, ids[1], domain.StatusDone))
	require.NoError(t, s.SetOrderStatus(ctx, ids[3], domain.StatusCancelled))
	require.NoError(t, s.SetOrderStatus(ctx, ids[4], domain.StatusInProgress))

	n, err := s.CountActiveOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	page, err := s.ActiveOrders(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[4], page[0].ID)
	require.Equal(t, ids[2], page[1].ID)

	page, err = s.ActiveOrders(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[0], page[0].ID)

	stats, err := s.OrderStats(ctx)
	require.NoError(t, err)
	counts := map[domain.OrderStatus]int{}
	for _, sc := range stats {
		counts[sc.Status] = sc.Count
	}
	require.Equal(t, map[domain.OrderStatus]int{
		domain.StatusNew:        2,
		domain.StatusInProgress: 1,
		domain.StatusDone:       1,
		domain.StatusCancelled:  1,
	}, counts)
}

func TestBanUpsertAndDeactivate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Ban(ctx, 9)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpsertBan(ctx, 9, "spam"))
	require.NoError(t, s.UpsertBan(ctx, 10, "failed verification 5 times"))
	require.NoError(t, s.UpsertBan(ctx, 9, "spam again"))

	b, err := s.Ban(ctx, 9)
	require.NoError(t, err)
	require.True(t, b.Active)
	require.Equal(t, "spam again", b.Reason)

	active, err := s.ActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, domain.Identity(9), active[0].Identity)
	require.Equal(t, domain.Identity(10), active[1].Identity)

	require.NoError(t, s.DeactivateBan(ctx, 9))
	require.NoError(t, s.DeactivateBan(ctx, 12345))

	b, err = s.Ban(ctx, 9)
	require.NoError(t, err)
	require.False(t, b.Active)

	active, err = s.ActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestAttemptCounter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.Attempts(ctx, 5)
	require.NoError(t, err)
	require.Zero(t, n)

	for want := 1; want <= 3; want++ {
		n, err = s.IncrementAttempts(ctx, 5, at)
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	n, err = s.Attempts(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, s.ResetAttempts(ctx, 5))
	n, err = s.Attempts(ctx, 5)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.IncrementAttempts(ctx, 5, at)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUnbanRequestDecision(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	pending, err := s.HasPendingUnbanRequest(ctx, 3)
	require.NoError(t, err)
	require.False(t, pending)

	id, err := s.CreateUnbanRequest(ctx, 3, "it was my cat")
	require.NoError(t, err)
	other, err := s.CreateUnbanRequest(ctx, 4, "sorry")
	require.NoError(t, err)

	pending, err = s.HasPendingUnbanRequest(ctx, 3)
	require.NoError(t, err)
	require.True(t, pending)

	list, err := s.UnbanRequests(ctx, domain.UnbanPending)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, other, list[0].ID)

	require.NoError(t, s.DecideUnbanRequest(ctx, id, domain.UnbanApproved))
	require.ErrorIs(t, s.DecideUnbanRequest(ctx, id, domain.UnbanRejected), domain.ErrAlreadyDecided)
	require.ErrorIs(t, s.DecideUnbanRequest(ctx, id+100, domain.UnbanRejected), domain.ErrNotFound)

	r, err := s.UnbanRequest(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.UnbanApproved, r.Status)
	require.Equal(t, "it was my cat", r.Reason)

	list, err = s.UnbanRequests(ctx, domain.UnbanPending)
	require.NoError(t, err)
	require.Len(t, list, 1)

	pending, err = s.HasPendingUnbanRequest(ctx, 3)
	require.NoError(t, err)
	require.False(t, pending)
}
