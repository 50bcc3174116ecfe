// Package tgbot connects the order dialogue and the admin console to Telegram.
package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/forgebot/core/logger"
	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/callbacks"
	"github.com/m3rciful/forgebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/forgebot/core/telegram/helpers"
	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/admin"
	"github.com/m3rciful/forgebot/forge/dialogue"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/reply"

	tele "gopkg.in/telebot.v4"
)

const (
	msgApology    = "Something went wrong. Please try again later."
	msgSlowDown   = "Too many requests, please slow down."
	msgDenied     = "Insufficient permissions."
	msgTextOnly   = "Please send a text message."
	msgStale      = "This button is no longer active."
	msgBadPayload = "Unsupported action"
)

// Conversation is the client-facing order dialogue.
type Conversation interface {
	Start(ctx context.Context, u dialogue.User) (reply.Result, error)
	InProgress(ctx context.Context, who domain.Identity) bool
	BeginCatalog(ctx context.Context, u dialogue.User) (reply.Result, error)
	BeginCustom(ctx context.Context, u dialogue.User) (reply.Result, error)
	Services(ctx context.Context, u dialogue.User) (reply.Result, error)
	About(ctx context.Context, u dialogue.User) (reply.Result, error)
	Contacts(ctx context.Context, u dialogue.User) (reply.Result, error)
	ClientMode(ctx context.Context, u dialogue.User) (reply.Result, error)
	Reset(ctx context.Context, who domain.Identity) error
	Fallback(ctx context.Context, u dialogue.User) (reply.Result, error)
	HandleText(ctx context.Context, u dialogue.User, text string) (reply.Result, error)
	HandleAction(ctx context.Context, u dialogue.User, tok action.Token) (reply.Result, error)
}

// Console is the administrator's screen set.
type Console interface {
	IsAdmin(who domain.Identity) bool
	HandleMenu(ctx context.Context, caller domain.Identity, screen admin.Screen) (reply.Result, error)
	HandleAction(ctx context.Context, caller domain.Identity, tok action.Token) (reply.Result, error)
}

type step func(ctx context.Context, u dialogue.User) (reply.Result, error)

// Bot maps Telegram updates onto the conversation and the console.
type Bot struct {
	conv    Conversation
	console Console
	// labels maps reply keyboard labels to their handlers.
	labels map[string]tele.HandlerFunc
}

// New builds the adapter.
func New(conv Conversation, console Console) *Bot {
	return &Bot{conv: conv, console: console, labels: make(map[string]tele.HandlerFunc)}
}

func userOf(c tele.Context) dialogue.User {
	s := c.Sender()
	if s == nil {
		return dialogue.User{}
	}
	return dialogue.User{ID: domain.Identity(s.ID), Username: s.Username}
}

// run executes fn for the sender and renders its result.
func (b *Bot) run(c tele.Context, fn step) error {
	ctx := tghelpers.BuildContext(c)
	u := userOf(c)
	if u.ID == 0 {
		return nil
	}
	r, err := fn(ctx, u)
	if errors.Is(err, domain.ErrUnauthorized) {
		r, err = reply.Text(msgDenied), nil
	}
	if err != nil {
		return err
	}
	return render(c, r)
}

func (b *Bot) screen(s admin.Screen) step {
	return func(ctx context.Context, u dialogue.User) (reply.Result, error) {
		return b.console.HandleMenu(ctx, u.ID, s)
	}
}

// adminPanel discards the administrator's conversation, including a client
// mode order in progress, and shows the panel.
func (b *Bot) adminPanel(ctx context.Context, u dialogue.User) (reply.Result, error) {
	if !b.console.IsAdmin(u.ID) {
		return reply.Result{}, domain.ErrUnauthorized
	}
	if err := b.conv.Reset(ctx, u.ID); err != nil {
		return reply.Result{}, err
	}
	return b.console.HandleMenu(ctx, u.ID, admin.ScreenPanel)
}

func (b *Bot) start(c tele.Context) error {
	return b.run(c, func(ctx context.Context, u dialogue.User) (reply.Result, error) {
		if b.console.IsAdmin(u.ID) {
			return b.adminPanel(ctx, u)
		}
		return b.conv.Start(ctx, u)
	})
}

type menuEntry struct {
	name      string
	desc      string
	label     string
	adminOnly bool
	fn        step
}

func (b *Bot) menu() []menuEntry {
	return []menuEntry{
		{name: "/order", desc: "Make an order", label: reply.LabelMakeOrder, fn: b.conv.BeginCatalog},
		{name: "/services", desc: "Our services", label: reply.LabelServices, fn: b.conv.Services},
		{name: "/custom", desc: "Custom order", label: reply.LabelCustomOrder, fn: b.conv.BeginCustom},
		{name: "/about", desc: "About us", label: reply.LabelAbout, fn: b.conv.About},
		{name: "/contacts", desc: "Contacts", label: reply.LabelContacts, fn: b.conv.Contacts},

		{name: "/orders", desc: "All orders", label: reply.LabelAllOrders, adminOnly: true, fn: b.screen(admin.ScreenOrders)},
		{name: "/stats", desc: "Statistics", label: reply.LabelStats, adminOnly: true, fn: b.screen(admin.ScreenStats)},
		{name: "/blacklist", desc: "Blacklist", label: reply.LabelBlacklist, adminOnly: true, fn: b.screen(admin.ScreenBlacklist)},
		{name: "/unbans", desc: "Unban requests", label: reply.LabelUnbans, adminOnly: true, fn: b.screen(admin.ScreenUnbans)},
		{name: "/client", desc: "Client mode", label: reply.LabelClientMode, adminOnly: true, fn: b.conv.ClientMode},
		{name: "/admin", desc: "Admin panel", label: reply.LabelBackToAdmin, adminOnly: true, fn: b.adminPanel},
	}
}

// Register wires commands, menu labels, callbacks and the text fallback into reg.
func (b *Bot) Register(reg *tg.Registry) error {
	if reg == nil {
		return fmt.Errorf("tgbot: nil registry")
	}
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     b.start,
		Description: "Start the bot",
	}); err != nil {
		return err
	}
	for _, m := range b.menu() {
		fn := m.fn
		h := func(c tele.Context) error { return b.run(c, fn) }
		b.labels[m.label] = h
		if err := reg.RegisterCommand(m.name, commands.Command{
			Handler:     h,
			Description: m.desc,
			AdminOnly:   m.adminOnly,
			Hidden:      true,
			Aliases:     []string{m.label},
		}); err != nil {
			return err
		}
	}

	for _, k := range action.ClientKinds {
		if err := reg.RegisterCallback(string(k), b.clientAction); err != nil {
			return err
		}
	}
	for _, k := range action.AdminKinds {
		if err := reg.RegisterCallback(string(k), b.adminAction); err != nil {
			return err
		}
	}
	if err := reg.RegisterCallback(string(action.Noop), b.noop); err != nil {
		return err
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return render(c, reply.Notice(msgStale))
	})
	reg.SetTextFallback(func(c tele.Context) error {
		return b.run(c, b.conv.Fallback)
	})
	return nil
}

func (b *Bot) decode(c tele.Context) (action.Token, bool) {
	key, payload := callbacks.ParseCallbackData(c.Callback())
	tok, err := action.Decode(key, payload)
	if err != nil {
		logger.Debug(tghelpers.BuildContext(c), component, "callback.bad_payload",
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
			slog.String("err", err.Error()),
		)
		return action.Token{}, false
	}
	return tok, true
}

func (b *Bot) clientAction(c tele.Context) error {
	tok, ok := b.decode(c)
	if !ok {
		return render(c, reply.Notice(msgBadPayload))
	}
	return b.run(c, func(ctx context.Context, u dialogue.User) (reply.Result, error) {
		return b.conv.HandleAction(ctx, u, tok)
	})
}

func (b *Bot) adminAction(c tele.Context) error {
	tok, ok := b.decode(c)
	if !ok {
		return render(c, reply.Notice(msgBadPayload))
	}
	return b.run(c, func(ctx context.Context, u dialogue.User) (reply.Result, error) {
		return b.console.HandleAction(ctx, u.ID, tok)
	})
}

func (b *Bot) noop(c tele.Context) error {
	return render(c, reply.Result{})
}

// FSM exposes the conversation to the text router.
func (b *Bot) FSM() *FlowRouter {
	return &FlowRouter{bot: b}
}

// FlowRouter sends text to the conversation while a flow is in progress.
// Menu labels still open their screens and abandon the flow.
type FlowRouter struct {
	bot *Bot
}

// InProgress reports whether userID is inside a flow.
func (f *FlowRouter) InProgress(userID int64) bool {
	return f.bot.conv.InProgress(logger.Background(), domain.Identity(userID))
}

// ManagerHandler feeds the message into the current flow step.
func (f *FlowRouter) ManagerHandler(c tele.Context) error {
	text := c.Text()
	if h, ok := f.bot.labels[text]; ok {
		return h(c)
	}
	if text == "" {
		return render(c, reply.Text(msgTextOnly))
	}
	return f.bot.run(c, func(ctx context.Context, u dialogue.User) (reply.Result, error) {
		return f.bot.conv.HandleText(ctx, u, text)
	})
}

// OnError answers the user after a handler failed.
func (b *Bot) OnError(err error, c tele.Context) {
	if c == nil {
		logger.Error(logger.Background(), component, "handler.error",
			slog.String("err", logger.SanitizeLimit(fmt.Sprint(err), 256)),
		)
		return
	}
	ctx := tghelpers.BuildContext(c)
	logger.Error(ctx, component, "handler.error",
		slog.String("err", logger.SanitizeLimit(fmt.Sprint(err), 256)),
	)
	var sendErr error
	if c.Callback() != nil {
		sendErr = c.Respond(&tele.CallbackResponse{Text: msgApology, ShowAlert: true})
	} else {
		sendErr = tghelpers.SendHTML(c, msgApology, nil)
	}
	if sendErr != nil {
		logger.Debug(ctx, component, "apology.failed",
			slog.String("err", logger.SanitizeLimit(sendErr.Error(), 256)),
		)
	}
}

// OnLimited tells a throttled user to slow down.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgSlowDown})
	}
	return tghelpers.SendHTML(c, msgSlowDown, nil)
}

// OnMedia answers a non-text message sent outside any flow.
func (b *Bot) OnMedia(c tele.Context) error {
	return b.run(c, b.conv.Fallback)
}

// OnAdminReject answers a non-admin who typed an admin command.
func (b *Bot) OnAdminReject(c tele.Context) error {
	return render(c, reply.Text(msgDenied))
}
