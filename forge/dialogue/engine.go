// Package dialogue runs the per-identity order intake conversation.
//
// The Engine owns every read and write of conversation sessions. Each entry point
// checks the ban registry, consults the step table in machine.go, mutates the
// session and returns a transport-neutral reply.Result.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/core/telegram/format"
	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/notify"
	"github.com/m3rciful/forgebot/forge/reply"
	"github.com/m3rciful/forgebot/forge/session"
)

// User identifies the sender of an update.
type User struct {
	ID       domain.Identity
	Username string
}

// BanChecker answers ban queries.
type BanChecker interface {
	IsBanned(ctx context.Context, who domain.Identity) (bool, error)
	Reason(ctx context.Context, who domain.Identity) (string, bool, error)
}

// Challenger issues and verifies challenges.
type Challenger interface {
	Issue(purpose challenge.Purpose, carried domain.OrderKind) challenge.Issued
	Verify(ctx context.Context, who domain.Identity, p *challenge.Pending, chosen int) (challenge.Verdict, error)
	Threshold() int
}

// OrderWriter persists confirmed orders.
type OrderWriter interface {
	UpsertClient(ctx context.Context, c domain.Client) (int64, error)
	CreateOrder(ctx context.Context, o domain.Order) (int64, error)
}

// AppealWriter persists unban requests.
type AppealWriter interface {
	CreateUnbanRequest(ctx context.Context, who domain.Identity, reason string) (int64, error)
	HasPendingUnbanRequest(ctx context.Context, who domain.Identity) (bool, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Sessions session.Store
	Bans     BanChecker
	Gate     Challenger
	Orders   OrderWriter
	Appeals  AppealWriter
	Catalog  *catalog.Catalog
	Notifier notify.Notifier
	AdminID  domain.Identity
	// Clean sanitizes free text; format.Clean when nil.
	Clean func(string) string
}

// Engine is the conversation state machine.
type Engine struct {
	mu sync.Mutex

	sessions session.Store
	bans     BanChecker
	gate     Challenger
	orders   OrderWriter
	appeals  AppealWriter
	catalog  *catalog.Catalog
	notifier notify.Notifier
	adminID  domain.Identity
	clean    func(string) string
}

// New builds an Engine.
func New(d Deps) (*Engine, error) {
	if d.Sessions == nil || d.Bans == nil || d.Gate == nil || d.Orders == nil || d.Appeals == nil || d.Catalog == nil {
		return nil, errors.New("dialogue: missing dependency")
	}
	clean := d.Clean
	if clean == nil {
		clean = format.Clean
	}
	return &Engine{
		sessions: d.Sessions,
		bans:     d.Bans,
		gate:     d.Gate,
		orders:   d.Orders,
		appeals:  d.Appeals,
		catalog:  d.Catalog,
		notifier: d.Notifier,
		adminID:  d.AdminID,
		clean:    clean,
	}, nil
}

func (e *Engine) isAdmin(who domain.Identity) bool {
	return e.adminID != 0 && who == e.adminID
}

func (e *Engine) menuFor(who domain.Identity) reply.Menu {
	if e.isAdmin(who) {
		return reply.MenuAdminClient
	}
	return reply.MenuClient
}

func (e *Engine) mainMenu(who domain.Identity) reply.Message {
	return reply.Message{Text: msgChooseAction, Menu: e.menuFor(who)}
}

func (e *Engine) load(ctx context.Context, who domain.Identity) (*session.Session, error) {
	s, ok, err := e.sessions.Get(ctx, who)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return session.New(who), nil
	}
	return s, nil
}

func (e *Engine) save(ctx context.Context, s *session.Session) error {
	if err := e.sessions.Put(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (e *Engine) drop(ctx context.Context, who domain.Identity) error {
	if err := e.sessions.Delete(ctx, who); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// banGate returns the ban notice and drops the session when who is banned.
func (e *Engine) banGate(ctx context.Context, who domain.Identity) (reply.Result, bool, error) {
	banned, err := e.bans.IsBanned(ctx, who)
	if err != nil {
		return reply.Result{}, false, fmt.Errorf("ban check: %w", err)
	}
	if !banned {
		return reply.Result{}, false, nil
	}
	reason, _, err := e.bans.Reason(ctx, who)
	if err != nil {
		return reply.Result{}, false, fmt.Errorf("ban reason: %w", err)
	}
	if err := e.drop(ctx, who); err != nil {
		return reply.Result{}, false, err
	}
	logger.Debug(ctx, logger.ComponentBans, "ban.blocked",
		slog.Int64("target_id", int64(who)),
	)
	var r reply.Result
	r.Add(banNotice(reason))
	return r, true, nil
}

// entryChallenge moves s into ENTRY_CHALLENGE with a fresh challenge.
func (e *Engine) entryChallenge(ctx context.Context, s *session.Session) (reply.Result, error) {
	s.Reset()
	s.Verified = false
	if err := advance(ctx, s, evStart); err != nil {
		return reply.Result{}, err
	}
	is := e.gate.Issue(challenge.PurposeEntry, "")
	s.Challenge = &is.Pending
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	var r reply.Result
	r.Add(challengeMessage(msgEntryGreeting, is))
	return r, nil
}

// Start discards any session and begins the entry challenge, or shows the ban notice.
func (e *Engine) Start(ctx context.Context, u User) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.drop(ctx, u.ID); err != nil {
		return reply.Result{}, err
	}
	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return r, err
	}
	return e.entryChallenge(ctx, session.New(u.ID))
}

// Reset discards the session of who without starting anything new. The
// admin panel uses it in place of Start.
func (e *Engine) Reset(ctx context.Context, who domain.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drop(ctx, who)
}

// InProgress reports whether who is in the middle of a flow.
func (e *Engine) InProgress(ctx context.Context, who domain.Identity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok, err := e.sessions.Get(ctx, who)
	if err != nil {
		logger.Warn(ctx, logger.ComponentSessions, "session.lookup_failed",
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok && s.Step != session.StepNone
}

// verifiedSession loads the session for a branch start. Unverified users get a new entry challenge.
func (e *Engine) verifiedSession(ctx context.Context, u User) (*session.Session, *reply.Result, error) {
	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return nil, &r, err
	}
	s, err := e.load(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	if !s.Verified && !e.isAdmin(u.ID) {
		r, err := e.entryChallenge(ctx, s)
		return nil, &r, err
	}
	if s.Step != session.StepNone {
		s.Reset()
	}
	return s, nil, nil
}

// BeginCatalog shows the service picker.
func (e *Engine) BeginCatalog(ctx context.Context, u User) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, early, err := e.verifiedSession(ctx, u)
	if early != nil || err != nil {
		return derefResult(early), err
	}
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	var r reply.Result
	r.Add(reply.Message{Text: msgChooseService, Buttons: servicesKeyboard(e.catalog)})
	return r, nil
}

// BeginCustom starts the custom order branch.
func (e *Engine) BeginCustom(ctx context.Context, u User) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, early, err := e.verifiedSession(ctx, u)
	if early != nil || err != nil {
		return derefResult(early), err
	}
	if err := advance(ctx, s, evBeginCustom); err != nil {
		return reply.Result{}, err
	}
	s.Kind = domain.KindCustom
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return reply.Text(msgCustomTitle), nil
}

func derefResult(r *reply.Result) reply.Result {
	if r == nil {
		return reply.Result{}
	}
	return *r
}

func (e *Engine) info(ctx context.Context, u User, text string) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return r, err
	}
	// an info label typed mid-flow abandons the flow, verified flag kept
	s, ok, err := e.sessions.Get(ctx, u.ID)
	if err != nil {
		return reply.Result{}, fmt.Errorf("load session: %w", err)
	}
	if ok && s.Step != session.StepNone {
		s.Reset()
		if err := e.save(ctx, s); err != nil {
			return reply.Result{}, err
		}
	}
	return reply.Text(text), nil
}

// Services lists the catalog.
func (e *Engine) Services(ctx context.Context, u User) (reply.Result, error) {
	return e.info(ctx, u, servicesText(e.catalog))
}

// About shows the workshop description.
func (e *Engine) About(ctx context.Context, u User) (reply.Result, error) {
	return e.info(ctx, u, aboutText(e.catalog))
}

// Contacts shows the workshop contacts.
func (e *Engine) Contacts(ctx context.Context, u User) (reply.Result, error) {
	return e.info(ctx, u, contactsText(e.catalog))
}

// ClientMode lets the administrator use the client menu without an entry challenge.
func (e *Engine) ClientMode(ctx context.Context, u User) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(u.ID) {
		return reply.Result{}, domain.ErrUnauthorized
	}
	s, err := e.load(ctx, u.ID)
	if err != nil {
		return reply.Result{}, err
	}
	s.Reset()
	s.Verified = true
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return reply.WithMenu(msgClientMode, reply.MenuAdminClient), nil
}

// Fallback answers text that matched nothing.
func (e *Engine) Fallback(ctx context.Context, u User) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isAdmin(u.ID) {
		return reply.Result{}, nil
	}
	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return r, err
	}
	return reply.WithMenu(msgUnknownCommand, e.menuFor(u.ID)), nil
}

// HandleText processes free text for the current step.
func (e *Engine) HandleText(ctx context.Context, u User, text string) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.load(ctx, u.ID)
	if err != nil {
		return reply.Result{}, err
	}
	if s.Step == session.StepAppealReason {
		return e.submitAppeal(ctx, s, text)
	}
	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return r, err
	}

	switch s.Step {
	case session.StepEntryChallenge, session.StepPreConfirmChallenge:
		return reply.Text(msgPickOption), nil
	case session.StepContactMethod:
		return reply.Text(msgPickContact), nil
	case session.StepConfirm:
		return reply.Text(msgPickConfirm), nil
	case session.StepNone:
		if e.isAdmin(u.ID) {
			return reply.Result{}, nil
		}
		return reply.WithMenu(msgUnknownCommand, e.menuFor(u.ID)), nil
	}

	value := e.clean(text)
	var r reply.Result
	switch s.Step {
	case session.StepCatalogDesc:
		s.SetField(FieldDescription, value)
		r.Add(reply.Message{Text: msgChooseContact, Buttons: contactKeyboard()})
	case session.StepCustomTitle:
		s.SetField(FieldTitle, value)
		r.Say(msgCustomDesc)
	case session.StepCustomDesc:
		s.SetField(FieldDescription, value)
		r.Say(msgCustomBudget)
	case session.StepCustomBudget:
		s.SetField(FieldBudget, value)
		r.Say(msgCustomDeadline)
	case session.StepCustomDeadline:
		s.SetField(FieldDeadline, value)
		r.Add(reply.Message{Text: msgChooseContact, Buttons: contactKeyboard()})
	case session.StepContactValue:
		s.SetField(FieldContactValue, value)
		is := e.gate.Issue(challenge.PurposePreConfirm, s.Kind)
		s.Challenge = &is.Pending
		r.Add(challengeMessage(msgPreConfirmIntro, is))
	case session.StepName:
		s.SetField(FieldName, value)
	default:
		return reply.Result{}, fmt.Errorf("dialogue: text in unexpected step %s", s.Step)
	}

	if err := advance(ctx, s, evSubmit); err != nil {
		return reply.Result{}, err
	}
	if s.Step == session.StepConfirm {
		r.Add(reply.Message{Text: e.summaryText(s), Buttons: confirmKeyboard()})
	}
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return r, nil
}

// HandleAction processes an inline button press.
func (e *Engine) HandleAction(ctx context.Context, u User, tok action.Token) (reply.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch tok.Kind {
	case action.Appeal:
		return e.beginAppeal(ctx, u)
	case action.WhyBanned:
		return e.whyBanned(ctx, u)
	}

	if r, banned, err := e.banGate(ctx, u.ID); err != nil || banned {
		return r, err
	}
	s, err := e.load(ctx, u.ID)
	if err != nil {
		return reply.Result{}, err
	}

	switch tok.Kind {
	case action.ChallengeAnswer:
		return e.answerChallenge(ctx, s, int(tok.ID))
	case action.PickService:
		return e.pickService(ctx, u, s, tok.Arg)
	case action.PickContact:
		return e.pickContact(ctx, s, domain.ContactMethod(tok.Arg))
	case action.Confirm:
		return e.confirm(ctx, u, s, tok.Arg == "yes")
	}
	return reply.Notice(msgStaleButton), nil
}

func (e *Engine) answerChallenge(ctx context.Context, s *session.Session, chosen int) (reply.Result, error) {
	var pending *challenge.Pending
	if s.Step == session.StepEntryChallenge || s.Step == session.StepPreConfirmChallenge {
		pending = s.Challenge
	}
	v, err := e.gate.Verify(ctx, s.Identity, pending, chosen)
	if err != nil {
		return reply.Result{}, err
	}

	var r reply.Result
	switch v.Outcome {
	case challenge.OutcomeInvalid:
		return reply.Notice(msgNothingToVerify), nil

	case challenge.OutcomeBanned:
		if err := e.drop(ctx, s.Identity); err != nil {
			return reply.Result{}, err
		}
		r.Add(reply.Message{Text: escalationText(e.gate.Threshold()), Buttons: bannedButtons()})
		r.Notice = msgBannedNotice
		return r, nil

	case challenge.OutcomeIncorrect:
		s.Challenge = &v.Next.Pending
		if err := e.save(ctx, s); err != nil {
			return reply.Result{}, err
		}
		r.Say(wrongAnswerText(v.Attempts, e.gate.Threshold(), v.Remaining))
		r.Add(challengeMessage("", *v.Next))
		return r, nil
	}

	s.Challenge = nil
	if v.Purpose == challenge.PurposeEntry {
		if err := advance(ctx, s, evPassEntry); err != nil {
			return reply.Result{}, err
		}
		s.Verified = true
		r.Say(msgEntryPassed)
		r.Add(e.mainMenu(s.Identity))
	} else {
		if err := advance(ctx, s, evPassChallenge); err != nil {
			return reply.Result{}, err
		}
		if v.Carried != "" {
			s.Kind = v.Carried
		}
		r.Say(msgAskName)
	}
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	r.Notice = msgCorrect
	return r, nil
}

func (e *Engine) pickService(ctx context.Context, u User, s *session.Session, code string) (reply.Result, error) {
	if !s.Verified && !e.isAdmin(u.ID) {
		return e.entryChallenge(ctx, s)
	}
	if !can(s, evPickService) {
		return reply.Notice(msgStaleButton), nil
	}
	svc, ok := e.catalog.Lookup(code)
	if !ok {
		logger.Debug(ctx, logger.ComponentOrders, "service.not_found",
			slog.String("service_code", logger.SanitizeLimit(code, 64)),
		)
		return reply.Alert(msgServiceNotFound), nil
	}
	s.Reset()
	if err := advance(ctx, s, evPickService); err != nil {
		return reply.Result{}, err
	}
	s.Kind = domain.KindCatalog
	s.SetField(FieldServiceCode, svc.Code)
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return reply.Text(serviceChosenText(svc)), nil
}

func (e *Engine) pickContact(ctx context.Context, s *session.Session, m domain.ContactMethod) (reply.Result, error) {
	if !m.Valid() || !can(s, evPickContact) {
		return reply.Notice(msgStaleButton), nil
	}
	if err := advance(ctx, s, evPickContact); err != nil {
		return reply.Result{}, err
	}
	s.SetField(FieldContactMethod, string(m))
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return reply.Text(contactPrompts[m]), nil
}

func (e *Engine) confirm(ctx context.Context, u User, s *session.Session, accept bool) (reply.Result, error) {
	if !can(s, evDecide) {
		return reply.Notice(msgStaleButton), nil
	}

	var r reply.Result
	if !accept {
		if err := advance(ctx, s, evDecide); err != nil {
			return reply.Result{}, err
		}
		s.Reset()
		if err := e.save(ctx, s); err != nil {
			return reply.Result{}, err
		}
		r.Add(reply.Message{Text: msgOrderCancelled, Edit: true})
		r.Add(e.mainMenu(u.ID))
		return r, nil
	}

	id, err := e.commit(ctx, u, s)
	if err != nil {
		return reply.Result{}, err
	}
	notify.BestEffort(ctx, e.notifier, logger.ComponentOrders, e.adminID, e.adminOrderText(id, u, s))

	if err := advance(ctx, s, evDecide); err != nil {
		return reply.Result{}, err
	}
	s.Reset()
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	r.Add(reply.Message{Text: msgOrderSent, Edit: true})
	r.Add(e.mainMenu(u.ID))
	return r, nil
}

// commit writes the client then the order.
func (e *Engine) commit(ctx context.Context, u User, s *session.Session) (int64, error) {
	clientID, err := e.orders.UpsertClient(ctx, domain.Client{
		Identity:    u.ID,
		DisplayName: s.Field(FieldName),
		Username:    format.OptionalString(u.Username),
	})
	if err != nil {
		return 0, fmt.Errorf("upsert client: %w", err)
	}

	o := domain.Order{
		ClientID:      clientID,
		Kind:          s.Kind,
		Description:   s.Field(FieldDescription),
		ContactMethod: domain.ContactMethod(s.Field(FieldContactMethod)),
		ContactValue:  s.Field(FieldContactValue),
		Status:        domain.StatusNew,
	}
	if s.Kind == domain.KindCustom {
		title, budget, deadline := s.Field(FieldTitle), s.Field(FieldBudget), s.Field(FieldDeadline)
		o.Title, o.Budget, o.Deadline = &title, &budget, &deadline
	} else {
		o.Kind = domain.KindCatalog
		code := s.Field(FieldServiceCode)
		o.ServiceCode = &code
	}

	id, err := e.orders.CreateOrder(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "order.created",
		slog.Int64("order_id", id),
		slog.String("kind", string(o.Kind)),
	)
	return id, nil
}

func (e *Engine) beginAppeal(ctx context.Context, u User) (reply.Result, error) {
	banned, err := e.bans.IsBanned(ctx, u.ID)
	if err != nil {
		return reply.Result{}, fmt.Errorf("ban check: %w", err)
	}
	if !banned {
		return reply.Notice(msgNotBanned), nil
	}
	pending, err := e.appeals.HasPendingUnbanRequest(ctx, u.ID)
	if err != nil {
		return reply.Result{}, fmt.Errorf("pending appeals: %w", err)
	}
	if pending {
		return reply.Alert(msgAppealPending), nil
	}
	s := session.New(u.ID)
	if err := advance(ctx, s, evAppeal); err != nil {
		return reply.Result{}, err
	}
	if err := e.save(ctx, s); err != nil {
		return reply.Result{}, err
	}
	return reply.Text(msgAppealPrompt), nil
}

func (e *Engine) submitAppeal(ctx context.Context, s *session.Session, text string) (reply.Result, error) {
	banned, err := e.bans.IsBanned(ctx, s.Identity)
	if err != nil {
		return reply.Result{}, fmt.Errorf("ban check: %w", err)
	}
	if !banned {
		if err := e.drop(ctx, s.Identity); err != nil {
			return reply.Result{}, err
		}
		return reply.Text(msgNotBanned), nil
	}
	pending, err := e.appeals.HasPendingUnbanRequest(ctx, s.Identity)
	if err != nil {
		return reply.Result{}, fmt.Errorf("pending appeals: %w", err)
	}
	if pending {
		if err := e.drop(ctx, s.Identity); err != nil {
			return reply.Result{}, err
		}
		return reply.Text(msgAppealPending), nil
	}

	reason := e.clean(text)
	id, err := e.appeals.CreateUnbanRequest(ctx, s.Identity, reason)
	if err != nil {
		return reply.Result{}, fmt.Errorf("create unban request: %w", err)
	}
	logger.Info(ctx, logger.ComponentBans, "appeal.created",
		slog.Int64("request_id", id),
		slog.Int64("target_id", int64(s.Identity)),
	)
	if err := advance(ctx, s, evAppealSent); err != nil {
		return reply.Result{}, err
	}
	if err := e.drop(ctx, s.Identity); err != nil {
		return reply.Result{}, err
	}
	notify.BestEffort(ctx, e.notifier, logger.ComponentBans, e.adminID, appealAdminText(id, s.Identity, reason))
	return reply.Text(msgAppealSent), nil
}

func (e *Engine) whyBanned(ctx context.Context, u User) (reply.Result, error) {
	reason, banned, err := e.bans.Reason(ctx, u.ID)
	if err != nil {
		return reply.Result{}, fmt.Errorf("ban reason: %w", err)
	}
	if !banned {
		return reply.Notice(msgNotBanned), nil
	}
	if reason == "" {
		reason = msgNoReason
	}
	return reply.Text("Ban reason:\n\n<b>" + reason + "</b>"), nil
}
