package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/forgebot/core/telegram"
	"github.com/m3rciful/forgebot/core/telegram/commands"
)

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "already decided" }

func TestCommandRoutesGateAdminCommands(t *testing.T) {
	var hits []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			hits = append(hits, name)
			return nil
		}
	}

	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: record("start"), Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/admin", commands.Command{Handler: record("admin"), Description: "Admin", AdminOnly: true}))

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 1, OnAdminReject: record("denied")})
	require.Len(t, routes, 2)

	start := routeFor(routes, "/start")
	admin := routeFor(routes, "/admin")
	require.NotNil(t, start)
	require.NotNil(t, admin)

	require.NoError(t, start(newMsg(2, "/start")))
	require.NoError(t, admin(newMsg(2, "/admin")))
	require.NoError(t, admin(newMsg(1, "/admin")))
	require.Equal(t, []string{"start", "denied", "admin"}, hits)

	require.Nil(t, CommandRoutes(nil, CommandRouteOptions{}))
}

func TestCallbackRouteDispatchesOnUniqueKey(t *testing.T) {
	reg := tg.NewRegistry()
	var payloads []string
	require.NoError(t, reg.RegisterCallback("decide", func(c tele.Context) error {
		payloads = append(payloads, c.Callback().Data)
		return nil
	}))
	route := CallbackRoute(reg, CallbackOptions{})
	require.Equal(t, tele.OnCallback, route.Endpoint)

	c := newMsg(3, "")
	c.cb = &tele.Callback{Sender: c.sender, Data: "\fdecide|approve:7"}
	require.NoError(t, route.Handler(c))
	require.Equal(t, []string{"\fdecide|approve:7"}, payloads)

	unknown := newMsg(3, "")
	unknown.cb = &tele.Callback{Sender: unknown.sender, Data: "\fgone|x"}
	require.NoError(t, route.Handler(unknown))
	require.Equal(t, 1, unknown.acks)

	require.NoError(t, route.Handler(newMsg(3, "")))
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "ALREADY_DECIDED", errorCode(fmt.Errorf("decide: %w", codedErr{})))
	require.Equal(t, "TELEGRAM_API", errorCode(fmt.Errorf("send: %w", &tele.Error{Code: 400})))
	require.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}
