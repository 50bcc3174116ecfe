package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/bans"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/notify"
	"github.com/m3rciful/forgebot/forge/reply"
	"github.com/m3rciful/forgebot/forge/store"
	"github.com/m3rciful/forgebot/forge/store/storetest"
)

const adminID domain.Identity = 500

type outbox struct {
	to   []domain.Identity
	text []string
	err  error
}

func (o *outbox) Notify(_ context.Context, to domain.Identity, text string) error {
	if o.err != nil {
		return o.err
	}
	o.to = append(o.to, to)
	o.text = append(o.text, text)
	return nil
}

var _ notify.Notifier = (*outbox)(nil)

type fixture struct {
	st      *store.Store
	bans    *bans.Registry
	out     *outbox
	svc     *Service
	console *Console
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New(t)
	reg := bans.NewRegistry(st)
	cat, err := catalog.Default()
	require.NoError(t, err)
	out := &outbox{}
	svc := NewService(st, reg, out, adminID, 0)
	return &fixture{st: st, bans: reg, out: out, svc: svc, console: NewConsole(svc, cat)}
}

func (f *fixture) order(t *testing.T, who domain.Identity, code string) int64 {
	t.Helper()
	ctx := context.Background()
	clientID, err := f.st.UpsertClient(ctx, domain.Client{Identity: who, DisplayName: "Client"})
	require.NoError(t, err)
	id, err := f.st.CreateOrder(ctx, domain.Order{
		ClientID:      clientID,
		Kind:          domain.KindCatalog,
		ServiceCode:   &code,
		Description:   "please",
		ContactMethod: domain.ContactPhone,
		ContactValue:  "+1 555",
	})
	require.NoError(t, err)
	return id
}

func TestNonAdminIsDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.order(t, 1, "gates")

	_, err := f.svc.ListOrders(ctx, 1, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.SetOrderStatus(ctx, 1, id, domain.StatusDone)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	r, err := f.console.HandleAction(ctx, 1, action.Token{Kind: action.AdminStatus, ID: id, Arg: string(domain.StatusDone)})
	require.NoError(t, err)
	require.Equal(t, reply.Result{}, r)

	r, err = f.console.HandleMenu(ctx, 1, ScreenOrders)
	require.NoError(t, err)
	require.Equal(t, msgDenied, r.Messages[0].Text)

	o, err := f.st.Order(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, o.Status)
}

func TestListOrdersPaginatesActiveOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []int64
	for i := 0; i < 6; i++ {
		ids = append(ids, f.order(t, domain.Identity(10+i), "fence"))
	}
	require.NoError(t, f.st.SetOrderStatus(ctx, ids[0], domain.StatusDone))

	p, err := f.svc.ListOrders(ctx, adminID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 2, p.Pages)
	require.Equal(t, 5, p.Total)
	require.Len(t, p.Orders, 3)
	require.Equal(t, ids[5], p.Orders[0].ID)

	p, err = f.svc.ListOrders(ctx, adminID, 99)
	require.NoError(t, err)
	require.Equal(t, 2, p.Page)
	require.Len(t, p.Orders, 2)
	for _, o := range p.Orders {
		require.NotEqual(t, ids[0], o.ID)
	}

	r, err := f.console.HandleAction(ctx, adminID, action.New(action.AdminPage, 2))
	require.NoError(t, err)
	msg := r.Messages[0]
	require.True(t, msg.Edit)
	require.Contains(t, msg.Text, "Page 2 of 2")
	require.Len(t, msg.Buttons, 4)
	require.Equal(t, action.AdminPage, msg.Buttons[2][0].Action.Kind)
	require.Equal(t, int64(1), msg.Buttons[2][0].Action.ID)
}

func TestSetOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.order(t, 77, "gates")

	r, err := f.console.HandleAction(ctx, adminID, action.Token{Kind: action.AdminStatus, ID: id, Arg: string(domain.StatusInProgress)})
	require.NoError(t, err)
	require.True(t, r.Messages[0].Edit)
	require.Contains(t, r.Messages[0].Text, "🟡 In progress")
	require.Equal(t, []domain.Identity{77}, f.out.to)
	require.Equal(t, StatusNotice(id, domain.StatusInProgress), f.out.text[0])

	r, err = f.console.HandleAction(ctx, adminID, action.Token{Kind: action.AdminStatus, ID: id, Arg: string(domain.StatusDone)})
	require.NoError(t, err)
	require.Equal(t, msgOrderDone, r.Messages[0].Text)
	require.Equal(t, reply.MenuAdmin, r.Messages[1].Menu)
	require.Len(t, f.out.to, 2)

	r, err = f.console.HandleAction(ctx, adminID, action.Token{Kind: action.AdminStatus, ID: id, Arg: string(domain.StatusCancelled)})
	require.NoError(t, err)
	require.Equal(t, msgBadTransition, r.Notice)

	_, err = f.svc.SetOrderStatus(ctx, adminID, id, domain.StatusCancelled)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	r, err = f.console.HandleAction(ctx, adminID, action.New(action.AdminOrder, id+50))
	require.NoError(t, err)
	require.Equal(t, msgOrderNotFound, r.Notice)

	st, err := f.svc.Stats(ctx, adminID)
	require.NoError(t, err)
	require.Equal(t, 1, st.Counts[domain.StatusDone])
	require.Equal(t, 1, st.Total)
}

func TestApproveWithFailingNotifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.out.err = errors.New("bot was blocked by the user")

	const w domain.Identity = 9
	require.NoError(t, f.bans.Ban(ctx, w, "failed verification 5 times"))
	id, err := f.st.CreateUnbanRequest(ctx, w, "my cat pressed the buttons")
	require.NoError(t, err)

	r, err := f.console.HandleAction(ctx, adminID, action.New(action.AdminApprove, id))
	require.NoError(t, err)
	require.Contains(t, r.Messages[0].Text, "approved")

	banned, err := f.bans.IsBanned(ctx, w)
	require.NoError(t, err)
	require.False(t, banned)

	req, err := f.st.UnbanRequest(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.UnbanApproved, req.Status)

	r, err = f.console.HandleAction(ctx, adminID, action.New(action.AdminReject, id))
	require.NoError(t, err)
	require.Equal(t, msgAlreadyDecided, r.Notice)

	req, err = f.st.UnbanRequest(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.UnbanApproved, req.Status)
}

func TestRejectKeepsBan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const w domain.Identity = 12
	require.NoError(t, f.bans.Ban(ctx, w, "spam"))
	id, err := f.st.CreateUnbanRequest(ctx, w, "sorry")
	require.NoError(t, err)

	r, err := f.console.HandleMenu(ctx, adminID, ScreenUnbans)
	require.NoError(t, err)
	require.Equal(t, action.AdminUnban, r.Messages[0].Buttons[0][0].Action.Kind)

	r, err = f.console.HandleAction(ctx, adminID, action.New(action.AdminUnban, id))
	require.NoError(t, err)
	require.Contains(t, r.Messages[0].Text, "sorry")
	require.Equal(t, action.AdminApprove, r.Messages[0].Buttons[0][0].Action.Kind)
	require.Equal(t, action.AdminReject, r.Messages[0].Buttons[0][1].Action.Kind)

	_, err = f.svc.Reject(ctx, adminID, id)
	require.NoError(t, err)

	banned, err := f.bans.IsBanned(ctx, w)
	require.NoError(t, err)
	require.True(t, banned)
	require.Equal(t, []string{msgUnbanRejected}, f.out.text)

	list, err := f.svc.ListUnbanRequests(ctx, adminID)
	require.NoError(t, err)
	require.Empty(t, list)

	r, err = f.console.HandleMenu(ctx, adminID, ScreenBlacklist)
	require.NoError(t, err)
	require.Contains(t, r.Messages[0].Text, "spam")

	r, err = f.console.HandleAction(ctx, adminID, action.New(action.AdminApprove, id+10))
	require.NoError(t, err)
	require.Equal(t, msgRequestNotFound, r.Notice)
}
