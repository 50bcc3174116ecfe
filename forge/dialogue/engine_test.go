package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/bans"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/reply"
	"github.com/m3rciful/forgebot/forge/session"
	"github.com/m3rciful/forgebot/forge/store"
	"github.com/m3rciful/forgebot/forge/store/storetest"
)

const adminID domain.Identity = 1000

type sent struct {
	to   domain.Identity
	text string
}

type recorder struct {
	msgs []sent
	err  error
}

func (r *recorder) Notify(_ context.Context, to domain.Identity, text string) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, sent{to: to, text: text})
	return nil
}

type harness struct {
	e        *Engine
	st       *store.Store
	bans     *bans.Registry
	sessions *session.Memory
	notes    *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := storetest.New(t)
	reg := bans.NewRegistry(st)
	cat, err := catalog.Default()
	require.NoError(t, err)

	h := &harness{
		st:       st,
		bans:     reg,
		sessions: session.NewMemory(session.DefaultTTL),
		notes:    &recorder{},
	}
	h.e, err = New(Deps{
		Sessions: h.sessions,
		Bans:     reg,
		Gate:     challenge.NewGate(st, reg, challenge.WithRand(func(int) int { return 0 })),
		Orders:   st,
		Appeals:  st,
		Catalog:  cat,
		Notifier: h.notes,
		AdminID:  adminID,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) act(t *testing.T, u User, tok action.Token) reply.Result {
	t.Helper()
	r, err := h.e.HandleAction(context.Background(), u, tok)
	require.NoError(t, err)
	return r
}

func (h *harness) text(t *testing.T, u User, text string) reply.Result {
	t.Helper()
	r, err := h.e.HandleText(context.Background(), u, text)
	require.NoError(t, err)
	return r
}

func (h *harness) step(t *testing.T, who domain.Identity) session.Step {
	t.Helper()
	s, ok, err := h.sessions.Get(context.Background(), who)
	require.NoError(t, err)
	if !ok {
		return session.StepNone
	}
	return s.Step
}

func answer(i int64) action.Token { return action.New(action.ChallengeAnswer, i) }

// passEntry runs /start and answers the entry challenge correctly.
func (h *harness) passEntry(t *testing.T, u User) {
	t.Helper()
	_, err := h.e.Start(context.Background(), u)
	require.NoError(t, err)
	r := h.act(t, u, answer(0))
	require.Equal(t, msgCorrect, r.Notice)
	require.Equal(t, session.StepNone, h.step(t, u.ID))
}

func lastText(r reply.Result) string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Text
}

func TestCatalogOrderWithPreConfirmRetries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 11, Username: "ivan"}

	r, err := h.e.Start(ctx, u)
	require.NoError(t, err)
	require.Len(t, r.Messages, 1)
	require.Len(t, r.Messages[0].Buttons, 2)
	require.Equal(t, session.StepEntryChallenge, h.step(t, u.ID))

	r = h.act(t, u, answer(0))
	require.Equal(t, msgCorrect, r.Notice)
	require.Equal(t, reply.MenuClient, r.Messages[len(r.Messages)-1].Menu)

	r, err = h.e.BeginCatalog(ctx, u)
	require.NoError(t, err)
	require.Len(t, r.Messages[0].Buttons, 4)

	h.act(t, u, action.WithArg(action.PickService, "gates"))
	require.Equal(t, session.StepCatalogDesc, h.step(t, u.ID))

	r = h.text(t, u, "fence repair")
	require.NotEmpty(t, r.Messages[0].Buttons)
	require.Equal(t, session.StepContactMethod, h.step(t, u.ID))

	r = h.act(t, u, action.WithArg(action.PickContact, string(domain.ContactEmail)))
	require.Equal(t, contactPrompts[domain.ContactEmail], lastText(r))

	h.text(t, u, "a@b.com")
	require.Equal(t, session.StepPreConfirmChallenge, h.step(t, u.ID))

	for i := 1; i <= 4; i++ {
		r = h.act(t, u, answer(1))
		require.Contains(t, r.Messages[0].Text, "Remaining")
		require.Equal(t, session.StepPreConfirmChallenge, h.step(t, u.ID))
		n, err := h.st.Attempts(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	r = h.act(t, u, answer(0))
	require.Equal(t, msgAskName, lastText(r))
	require.Equal(t, session.StepName, h.step(t, u.ID))

	r = h.text(t, u, "Ivan")
	require.Equal(t, session.StepConfirm, h.step(t, u.ID))
	summary := lastText(r)
	require.Contains(t, summary, "Forged gates")
	require.Contains(t, summary, "a@b.com")

	r = h.act(t, u, action.WithArg(action.Confirm, "yes"))
	require.True(t, r.Messages[0].Edit)
	require.Equal(t, msgOrderSent, r.Messages[0].Text)
	require.Equal(t, session.StepNone, h.step(t, u.ID))

	orders, err := h.st.ActiveOrders(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	require.Equal(t, domain.KindCatalog, o.Kind)
	require.Equal(t, "gates", *o.ServiceCode)
	require.Equal(t, domain.StatusNew, o.Status)
	require.Equal(t, domain.ContactEmail, o.ContactMethod)
	require.Equal(t, "a@b.com", o.ContactValue)
	require.Equal(t, "fence repair", o.Description)
	require.Nil(t, o.Title)

	c, err := h.st.ClientByIdentity(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Ivan", c.DisplayName)

	n, err := h.st.Attempts(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Len(t, h.notes.msgs, 1)
	require.Equal(t, adminID, h.notes.msgs[0].to)
	require.Contains(t, h.notes.msgs[0].text, "@ivan")
}

func TestEntryFailuresBan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 22}

	_, err := h.e.Start(ctx, u)
	require.NoError(t, err)

	var r reply.Result
	for i := 0; i < 4; i++ {
		r = h.act(t, u, answer(3))
		require.Len(t, r.Messages, 2)
	}
	r = h.act(t, u, answer(3))
	require.Equal(t, msgBannedNotice, r.Notice)
	require.Len(t, r.Messages, 1)
	require.Contains(t, r.Messages[0].Text, "5 times")
	require.Equal(t, action.Appeal, r.Messages[0].Buttons[0][0].Action.Kind)

	reason, banned, err := h.bans.Reason(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, banned)
	require.Equal(t, "failed verification 5 times", reason)
	require.Zero(t, h.sessions.Len())

	n, err := h.st.Attempts(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	r, err = h.e.Start(ctx, u)
	require.NoError(t, err)
	require.Len(t, r.Messages, 1)
	require.Contains(t, r.Messages[0].Text, "failed verification 5 times")
	require.Equal(t, action.Appeal, r.Messages[0].Buttons[0][0].Action.Kind)
	require.Zero(t, h.sessions.Len())
	require.False(t, h.e.InProgress(ctx, u.ID))
}

func TestStartDiscardsProgressButKeepsAttempts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 33}
	h.passEntry(t, u)

	_, err := h.e.BeginCustom(ctx, u)
	require.NoError(t, err)
	h.text(t, u, "bench")
	h.text(t, u, "garden bench")
	require.Equal(t, session.StepCustomBudget, h.step(t, u.ID))
	require.True(t, h.e.InProgress(ctx, u.ID))

	_, err = h.e.Start(ctx, u)
	require.NoError(t, err)
	require.Equal(t, session.StepEntryChallenge, h.step(t, u.ID))
	s, _, err := h.sessions.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, s.Fields)
	require.False(t, s.Verified)

	h.act(t, u, answer(2))
	_, err = h.e.Start(ctx, u)
	require.NoError(t, err)
	n, err := h.st.Attempts(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCustomOrderRejectWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 44}
	h.passEntry(t, u)

	_, err := h.e.BeginCustom(ctx, u)
	require.NoError(t, err)
	for _, in := range []string{"bench", "oak bench", "300", "May"} {
		h.text(t, u, in)
	}
	require.Equal(t, session.StepContactMethod, h.step(t, u.ID))

	r := h.text(t, u, "ignored")
	require.Equal(t, msgPickContact, lastText(r))

	h.act(t, u, action.WithArg(action.PickContact, string(domain.ContactPhone)))
	h.text(t, u, "+1 555")
	h.act(t, u, answer(0))
	r = h.text(t, u, "Olga")
	require.Contains(t, lastText(r), "oak bench")

	r = h.act(t, u, action.WithArg(action.Confirm, "no"))
	require.Equal(t, msgOrderCancelled, r.Messages[0].Text)
	require.Equal(t, session.StepNone, h.step(t, u.ID))

	n, err := h.st.CountActiveOrders(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = h.st.ClientByIdentity(ctx, u.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, h.notes.msgs)
}

func TestCustomOrderFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.notes.err = errors.New("chat not found")
	u := User{ID: 55}
	h.passEntry(t, u)

	_, err := h.e.BeginCustom(ctx, u)
	require.NoError(t, err)
	for _, in := range []string{"gate <b>", "with roses", "", "asap"} {
		h.text(t, u, in)
	}
	h.act(t, u, action.WithArg(action.PickContact, string(domain.ContactTelegram)))
	h.text(t, u, "@olga")
	h.act(t, u, answer(0))
	h.text(t, u, "Olga")
	h.act(t, u, action.WithArg(action.Confirm, "yes"))

	orders, err := h.st.ActiveOrders(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	require.Equal(t, domain.KindCustom, o.Kind)
	require.Nil(t, o.ServiceCode)
	require.Equal(t, "gate &lt;b&gt;", *o.Title)
	require.Equal(t, "", *o.Budget)
	require.Equal(t, "asap", *o.Deadline)
	require.Equal(t, domain.ContactTelegram, o.ContactMethod)
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 66}

	r, err := h.e.BeginCatalog(ctx, u)
	require.NoError(t, err)
	require.Equal(t, session.StepEntryChallenge, h.step(t, u.ID))
	require.Contains(t, r.Messages[0].Text, msgEntryGreeting)

	r = h.text(t, u, "hello")
	require.Equal(t, msgPickOption, lastText(r))

	h.act(t, u, answer(0))

	r = h.act(t, u, answer(0))
	require.Equal(t, msgNothingToVerify, r.Notice)

	r = h.act(t, u, action.WithArg(action.Confirm, "yes"))
	require.Equal(t, msgStaleButton, r.Notice)

	r = h.act(t, u, action.WithArg(action.PickService, "anvils"))
	require.Equal(t, msgServiceNotFound, r.Notice)
	require.True(t, r.Alert)
	require.Equal(t, session.StepNone, h.step(t, u.ID))

	r = h.act(t, u, action.WithArg(action.PickContact, "pigeon"))
	require.Equal(t, msgStaleButton, r.Notice)

	r, err = h.e.Fallback(ctx, u)
	require.NoError(t, err)
	require.Equal(t, msgUnknownCommand, lastText(r))

	_, err = h.e.ClientMode(ctx, u)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBanMidFlowAbandonsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 77}
	h.passEntry(t, u)

	_, err := h.e.BeginCustom(ctx, u)
	require.NoError(t, err)
	require.NoError(t, h.bans.Ban(ctx, u.ID, "spam"))

	r := h.text(t, u, "title")
	require.Contains(t, lastText(r), "spam")
	require.Zero(t, h.sessions.Len())
}

func TestAppealFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 88}

	r := h.act(t, u, action.New(action.Appeal, 0))
	require.Equal(t, msgNotBanned, r.Notice)

	require.NoError(t, h.bans.Ban(ctx, u.ID, "spam"))

	r = h.act(t, u, action.New(action.WhyBanned, 0))
	require.Contains(t, lastText(r), "spam")

	r = h.act(t, u, action.New(action.Appeal, 0))
	require.Equal(t, msgAppealPrompt, lastText(r))
	require.True(t, h.e.InProgress(ctx, u.ID))

	r = h.text(t, u, "it was my <cat>")
	require.Equal(t, msgAppealSent, lastText(r))
	require.False(t, h.e.InProgress(ctx, u.ID))

	list, err := h.st.UnbanRequests(ctx, domain.UnbanPending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "it was my &lt;cat&gt;", list[0].Reason)

	require.Len(t, h.notes.msgs, 1)
	require.Equal(t, adminID, h.notes.msgs[0].to)
	require.True(t, strings.Contains(h.notes.msgs[0].text, "unban request"))

	r = h.act(t, u, action.New(action.Appeal, 0))
	require.Equal(t, msgAppealPending, r.Notice)
	require.True(t, r.Alert)
}

func TestAdminSkipsEntryChallenge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := User{ID: adminID}

	r, err := h.e.ClientMode(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, reply.MenuAdminClient, r.Messages[0].Menu)

	r, err = h.e.BeginCatalog(ctx, admin)
	require.NoError(t, err)
	require.Len(t, r.Messages[0].Buttons, 4)

	r, err = h.e.Fallback(ctx, admin)
	require.NoError(t, err)
	require.Empty(t, r.Messages)
}

func TestInfoLabelLeavesFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := User{ID: 99}
	h.passEntry(t, u)

	_, err := h.e.BeginCustom(ctx, u)
	require.NoError(t, err)
	h.text(t, u, "title")
	require.Equal(t, session.StepCustomDesc, h.step(t, u.ID))

	r, err := h.e.About(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, lastText(r))
	require.Equal(t, session.StepNone, h.step(t, u.ID))
	require.False(t, h.e.InProgress(ctx, u.ID))

	r, err = h.e.BeginCatalog(ctx, u)
	require.NoError(t, err)
	require.Len(t, r.Messages[0].Buttons, 4)
	require.NotEqual(t, session.StepEntryChallenge, h.step(t, u.ID))
}
