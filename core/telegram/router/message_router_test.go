package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type msgContext struct {
	tele.Context
	sender *tele.User
	text   string
	cb     *tele.Callback
	store  map[string]interface{}
	acks   int
}

func newMsg(userID int64, text string) *msgContext {
	return &msgContext{sender: &tele.User{ID: userID}, text: text, store: map[string]interface{}{}}
}

func (m *msgContext) Update() tele.Update         { return tele.Update{ID: 1} }
func (m *msgContext) Sender() *tele.User          { return m.sender }
func (m *msgContext) Chat() *tele.Chat            { return nil }
func (m *msgContext) Text() string                { return m.text }
func (m *msgContext) Get(k string) interface{}    { return m.store[k] }
func (m *msgContext) Set(k string, v interface{}) { m.store[k] = v }
func (m *msgContext) Callback() *tele.Callback    { return m.cb }

func (m *msgContext) Respond(...*tele.CallbackResponse) error {
	m.acks++
	return nil
}

type flow struct {
	active map[int64]bool
	seen   []string
}

func (f *flow) InProgress(userID int64) bool { return f.active[userID] }
func (f *flow) ManagerHandler(c tele.Context) error {
	f.seen = append(f.seen, c.Text())
	return nil
}

func routeFor(routes []tg.Route, endpoint string) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutesDispatch(t *testing.T) {
	var hits []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			hits = append(hits, name)
			return nil
		}
	}

	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/about", commands.Command{
		Handler: record("about"), Description: "About", Aliases: []string{"About us"},
	}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Handler: record("stats"), Description: "Stats", AdminOnly: true, Aliases: []string{"Statistics"},
	}))
	reg.SetTextFallback(record("fallback"))

	fsm := &flow{active: map[int64]bool{5: true}}
	routes := TextRoutes(fsm, reg, TextOptions{
		AdminID:       1,
		OnAdminReject: record("denied"),
		UnknownMedia:  record("media"),
	})
	require.Len(t, routes, len(MediaEndpoints)+1)

	text := routeFor(routes, tele.OnText)
	require.NotNil(t, text)

	require.NoError(t, text(newMsg(2, "About us")))
	require.NoError(t, text(newMsg(2, "Statistics")))
	require.NoError(t, text(newMsg(1, "Statistics")))
	require.NoError(t, text(newMsg(2, "hello")))
	require.NoError(t, text(newMsg(5, "About us")))
	require.Equal(t, []string{"about", "denied", "stats", "fallback"}, hits)
	require.Equal(t, []string{"About us"}, fsm.seen)

	photo := routeFor(routes, tele.OnPhoto)
	require.NotNil(t, photo)
	require.NoError(t, photo(newMsg(2, "")))
	require.NoError(t, photo(newMsg(5, "")))
	require.Equal(t, "media", hits[len(hits)-1])
	require.Len(t, fsm.seen, 2)
}

func TestNormalizeHandlerName(t *testing.T) {
	require.Equal(t, "unknown", normalizeHandlerName("  "))
	require.Equal(t, "orders", normalizeHandlerName("/Orders"))
	require.Equal(t, "callback_cat", normalizeHandlerName("callback cat"))
}
