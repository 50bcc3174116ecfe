package admin

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/core/telegram/format"
	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/reply"
)

// Screen is an admin menu entry.
type Screen int

const (
	ScreenPanel Screen = iota
	ScreenOrders
	ScreenStats
	ScreenBlacklist
	ScreenUnbans
)

const (
	msgPanel           = "⚙️ Admin panel"
	msgChooseSection   = "Choose a section:"
	msgDenied          = "Insufficient permissions."
	msgNoOrders        = "No active orders."
	msgOrderNotFound   = "Order not found"
	msgRequestNotFound = "Request not found"
	msgBadTransition   = "This status change is not allowed."
	msgAlreadyDecided  = "This request has already been decided."
	msgOrderDone       = "🏁 Order completed and moved to statistics."
	msgStatusUpdated   = "Status updated"
	msgNoBans          = "The blacklist is empty."
	msgNoRequests      = "No pending unban requests."
	msgUnbanApproved   = "✅ Your ban was lifted. You can use the bot again, send /start."
	msgUnbanRejected   = "❌ Your unban request was rejected."
	timeLayout         = "2006-01-02 15:04"
)

var statusLabels = map[domain.OrderStatus]string{
	domain.StatusNew:        "🆕 New",
	domain.StatusInProgress: "🟡 In progress",
	domain.StatusDone:       "🟢 Done",
	domain.StatusCancelled:  "❌ Cancelled",
}

// StatusLabel returns the display label of s.
func StatusLabel(s domain.OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// StatusNotice is the message sent to a client whose order changed status.
func StatusNotice(id int64, s domain.OrderStatus) string {
	return fmt.Sprintf("Your order #%d was updated. New status: %s", id, StatusLabel(s))
}

// Console renders admin screens on top of Service.
type Console struct {
	svc     *Service
	catalog *catalog.Catalog
}

// NewConsole builds a console.
func NewConsole(svc *Service, cat *catalog.Catalog) *Console {
	return &Console{svc: svc, catalog: cat}
}

// IsAdmin reports whether who is the administrator.
func (c *Console) IsAdmin(who domain.Identity) bool {
	return c.svc.IsAdmin(who)
}

// HandleMenu renders a menu screen as new messages.
// Non-admin callers get a neutral denial.
func (c *Console) HandleMenu(ctx context.Context, caller domain.Identity, screen Screen) (reply.Result, error) {
	var (
		msg reply.Message
		err error
	)
	switch screen {
	case ScreenPanel:
		if !c.svc.IsAdmin(caller) {
			err = domain.ErrUnauthorized
			break
		}
		msg = reply.Message{Text: msgPanel, Menu: reply.MenuAdmin}
	case ScreenOrders:
		msg, err = c.ordersPage(ctx, caller, 1)
	case ScreenStats:
		msg, err = c.stats(ctx, caller)
	case ScreenBlacklist:
		msg, err = c.blacklist(ctx, caller)
	case ScreenUnbans:
		msg, err = c.unbans(ctx, caller)
	default:
		return reply.Result{}, fmt.Errorf("admin: unknown screen %d", screen)
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return reply.Text(msgDenied), nil
	}
	if err != nil {
		return reply.Result{}, err
	}
	var r reply.Result
	r.Add(msg)
	return r, nil
}

// HandleAction processes an admin inline button. Non-admin callers get a bare
// acknowledgement and nothing else.
func (c *Console) HandleAction(ctx context.Context, caller domain.Identity, tok action.Token) (reply.Result, error) {
	r, err := c.handleAction(ctx, caller, tok)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, domain.ErrUnauthorized):
		return reply.Result{}, nil
	case errors.Is(err, domain.ErrNotFound):
		logger.Debug(ctx, logger.ComponentAdmin, "admin.not_found",
			slog.String("kind", string(tok.Kind)),
			slog.Int64("id", tok.ID),
		)
		if tok.Kind == action.AdminUnban || tok.Kind == action.AdminApprove || tok.Kind == action.AdminReject {
			return reply.Notice(msgRequestNotFound), nil
		}
		return reply.Notice(msgOrderNotFound), nil
	case errors.Is(err, domain.ErrInvalidTransition):
		return reply.Notice(msgBadTransition), nil
	case errors.Is(err, domain.ErrAlreadyDecided):
		return reply.Notice(msgAlreadyDecided), nil
	}
	return reply.Result{}, err
}

func (c *Console) handleAction(ctx context.Context, caller domain.Identity, tok action.Token) (reply.Result, error) {
	var (
		r   reply.Result
		msg reply.Message
		err error
	)
	switch tok.Kind {
	case action.AdminMenu:
		if !c.svc.IsAdmin(caller) {
			return r, domain.ErrUnauthorized
		}
		r.Add(reply.Message{Text: msgPanel, Edit: true})
		r.Add(reply.Message{Text: msgChooseSection, Menu: reply.MenuAdmin})
		return r, nil
	case action.AdminPage:
		msg, err = c.ordersPage(ctx, caller, int(tok.ID))
	case action.AdminOrder:
		msg, err = c.orderCard(ctx, caller, tok.ID)
	case action.AdminStatus:
		return c.setStatus(ctx, caller, tok.ID, domain.OrderStatus(tok.Arg))
	case action.AdminUnbans:
		msg, err = c.unbans(ctx, caller)
	case action.AdminUnban:
		msg, err = c.unbanCard(ctx, caller, tok.ID)
	case action.AdminApprove:
		return c.decide(ctx, caller, tok.ID, true)
	case action.AdminReject:
		return c.decide(ctx, caller, tok.ID, false)
	default:
		return r, fmt.Errorf("admin: unexpected action %s", tok)
	}
	if err != nil {
		return r, err
	}
	msg.Edit = true
	r.Add(msg)
	return r, nil
}

func (c *Console) ordersPage(ctx context.Context, caller domain.Identity, page int) (reply.Message, error) {
	p, err := c.svc.ListOrders(ctx, caller, page)
	if err != nil {
		return reply.Message{}, err
	}
	back := []reply.Button{reply.Btn("⬅️ Back to menu", action.New(action.AdminMenu, 0))}
	if len(p.Orders) == 0 {
		return reply.Message{Text: msgNoOrders, Buttons: [][]reply.Button{back}}, nil
	}

	rows := make([][]reply.Button, 0, len(p.Orders)+2)
	for _, o := range p.Orders {
		label := fmt.Sprintf("#%d · %s (%s)", o.ID, html.UnescapeString(c.orderTitle(&o)), StatusLabel(o.Status))
		rows = append(rows, []reply.Button{reply.Btn(label, action.New(action.AdminOrder, o.ID))})
	}
	var nav []reply.Button
	if p.Page > 1 {
		nav = append(nav, reply.Btn("◀️ Prev", action.New(action.AdminPage, int64(p.Page-1))))
	}
	if p.Page < p.Pages {
		nav = append(nav, reply.Btn("Next ▶️", action.New(action.AdminPage, int64(p.Page+1))))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, back)

	text := fmt.Sprintf("📥 <b>Active orders</b>: %d\nPage %d of %d", p.Total, p.Page, p.Pages)
	return reply.Message{Text: text, Buttons: rows}, nil
}

func (c *Console) orderTitle(o *domain.OrderView) string {
	if o.Kind == domain.KindCustom {
		if o.Title != nil && *o.Title != "" {
			return *o.Title
		}
		return "Custom order"
	}
	if o.ServiceCode != nil {
		if s, ok := c.catalog.Lookup(*o.ServiceCode); ok {
			return s.Name
		}
		return *o.ServiceCode
	}
	return "Order"
}

func (c *Console) orderText(o *domain.OrderView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>Order #%d</b>\n", o.ID)
	fmt.Fprintf(&b, "Status: %s\n", StatusLabel(o.Status))
	fmt.Fprintf(&b, "Created: %s\n\n", o.CreatedAt.Format(timeLayout))

	client := format.DerefString(o.ClientName, "-")
	if o.ClientUsername != nil && *o.ClientUsername != "" {
		client += " (@" + *o.ClientUsername + ")"
	}
	if o.ClientIdentity != nil {
		client += fmt.Sprintf(", ID: <code>%d</code>", *o.ClientIdentity)
	}
	fmt.Fprintf(&b, "👤 Client: %s\n\n", client)

	if o.Kind == domain.KindCustom {
		fmt.Fprintf(&b, "Title: <b>%s</b>\n", format.DerefString(o.Title, "-"))
		fmt.Fprintf(&b, "Description: %s\n", o.Description)
		fmt.Fprintf(&b, "Budget: %s\n", format.DerefString(o.Budget, "-"))
		fmt.Fprintf(&b, "Deadline: %s\n", format.DerefString(o.Deadline, "-"))
	} else {
		fmt.Fprintf(&b, "Service: <b>%s</b>\n", c.orderTitle(o))
		fmt.Fprintf(&b, "Description: %s\n", o.Description)
	}
	fmt.Fprintf(&b, "Contact (%s): %s", o.ContactMethod, o.ContactValue)
	return b.String()
}

func statusToken(id int64, s domain.OrderStatus) action.Token {
	return action.Token{Kind: action.AdminStatus, ID: id, Arg: string(s)}
}

func (c *Console) orderButtons(o *domain.OrderView) [][]reply.Button {
	var rows [][]reply.Button
	if o.Status.Active() {
		var row []reply.Button
		if o.Status != domain.StatusInProgress {
			row = append(row, reply.Btn(statusLabels[domain.StatusInProgress], statusToken(o.ID, domain.StatusInProgress)))
		}
		row = append(row,
			reply.Btn(statusLabels[domain.StatusDone], statusToken(o.ID, domain.StatusDone)),
			reply.Btn(statusLabels[domain.StatusCancelled], statusToken(o.ID, domain.StatusCancelled)),
		)
		rows = append(rows, row)
	}
	rows = append(rows, []reply.Button{reply.Btn("⬅️ Back", action.New(action.AdminPage, 1))})
	return rows
}

func (c *Console) orderCard(ctx context.Context, caller domain.Identity, id int64) (reply.Message, error) {
	o, err := c.svc.OpenOrder(ctx, caller, id)
	if err != nil {
		return reply.Message{}, err
	}
	return reply.Message{Text: c.orderText(o), Buttons: c.orderButtons(o)}, nil
}

func (c *Console) setStatus(ctx context.Context, caller domain.Identity, id int64, next domain.OrderStatus) (reply.Result, error) {
	o, err := c.svc.SetOrderStatus(ctx, caller, id, next)
	if err != nil {
		return reply.Result{}, err
	}
	var r reply.Result
	if next == domain.StatusDone {
		r.Add(reply.Message{Text: msgOrderDone, Edit: true})
		r.Add(reply.Message{Text: msgChooseSection, Menu: reply.MenuAdmin})
		return r, nil
	}
	r.Add(reply.Message{Text: c.orderText(o), Buttons: c.orderButtons(o), Edit: true})
	r.Notice = msgStatusUpdated
	return r, nil
}

func (c *Console) stats(ctx context.Context, caller domain.Identity) (reply.Message, error) {
	st, err := c.svc.Stats(ctx, caller)
	if err != nil {
		return reply.Message{}, err
	}
	var b strings.Builder
	b.WriteString("📊 <b>Statistics</b>\n\n")
	for _, s := range domain.AllStatuses {
		fmt.Fprintf(&b, "%s: %d\n", StatusLabel(s), st.Counts[s])
	}
	fmt.Fprintf(&b, "\nTotal: <b>%d</b>", st.Total)
	return reply.Message{Text: b.String()}, nil
}

func (c *Console) blacklist(ctx context.Context, caller domain.Identity) (reply.Message, error) {
	list, err := c.svc.ListBanned(ctx, caller)
	if err != nil {
		return reply.Message{}, err
	}
	if len(list) == 0 {
		return reply.Message{Text: msgNoBans}, nil
	}
	var b strings.Builder
	b.WriteString("🚫 <b>Blacklist</b>\n")
	for _, ban := range list {
		fmt.Fprintf(&b, "\n• <code>%d</code> %s\n  %s", ban.Identity, ban.CreatedAt.Format(timeLayout), format.DerefString(&ban.Reason, "-"))
	}
	return reply.Message{Text: b.String()}, nil
}

func (c *Console) unbans(ctx context.Context, caller domain.Identity) (reply.Message, error) {
	list, err := c.svc.ListUnbanRequests(ctx, caller)
	if err != nil {
		return reply.Message{}, err
	}
	if len(list) == 0 {
		return reply.Message{Text: msgNoRequests}, nil
	}
	rows := make([][]reply.Button, 0, len(list))
	for _, req := range list {
		label := fmt.Sprintf("#%d · ID %d · %s", req.ID, req.Identity, req.CreatedAt.Format(timeLayout))
		rows = append(rows, []reply.Button{reply.Btn(label, action.New(action.AdminUnban, req.ID))})
	}
	return reply.Message{Text: fmt.Sprintf("📨 <b>Unban requests</b>: %d", len(list)), Buttons: rows}, nil
}

func (c *Console) unbanCard(ctx context.Context, caller domain.Identity, id int64) (reply.Message, error) {
	req, err := c.svc.OpenUnbanRequest(ctx, caller, id)
	if err != nil {
		return reply.Message{}, err
	}
	text := fmt.Sprintf("📨 <b>Unban request #%d</b>\n\nTG ID: <code>%d</code>\nStatus: %s\nCreated: %s\n\nReason:\n%s",
		req.ID, req.Identity, req.Status, req.CreatedAt.Format(timeLayout), format.DerefString(&req.Reason, "-"))
	var rows [][]reply.Button
	if req.Status == domain.UnbanPending {
		rows = append(rows, []reply.Button{
			reply.Btn("✅ Approve", action.New(action.AdminApprove, req.ID)),
			reply.Btn("❌ Reject", action.New(action.AdminReject, req.ID)),
		})
	}
	rows = append(rows, []reply.Button{reply.Btn("⬅️ Back", action.New(action.AdminUnbans, 0))})
	return reply.Message{Text: text, Buttons: rows}, nil
}

func (c *Console) decide(ctx context.Context, caller domain.Identity, id int64, approve bool) (reply.Result, error) {
	var (
		req  *domain.UnbanRequest
		err  error
		text string
	)
	if approve {
		req, err = c.svc.Approve(ctx, caller, id)
		text = "✅ Request #%d approved. User <code>%d</code> was unbanned."
	} else {
		req, err = c.svc.Reject(ctx, caller, id)
		text = "❌ Request #%d rejected. User <code>%d</code> stays banned."
	}
	if err != nil {
		return reply.Result{}, err
	}
	back := [][]reply.Button{{reply.Btn("⬅️ Back", action.New(action.AdminUnbans, 0))}}
	var r reply.Result
	r.Add(reply.Message{Text: fmt.Sprintf(text, req.ID, req.Identity), Buttons: back, Edit: true})
	return r, nil
}
