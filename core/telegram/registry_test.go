package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func nop(tele.Context) error { return nil }

func TestRegistryCommandsAndAliases(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: nop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/orders", commands.Command{
		Handler:     nop,
		Description: "All orders",
		AdminOnly:   true,
		Aliases:     []string{"📥 All orders"},
	}))
	require.NoError(t, reg.RegisterCommand("/about", commands.Command{
		Handler:     nop,
		Description: "About",
		Hidden:      true,
		Aliases:     []string{"ℹ️ About us"},
	}))

	require.ErrorIs(t, reg.RegisterCommand("/start", commands.Command{Handler: nop, Description: "again"}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("/stats", commands.Command{
		Handler:     nop,
		Description: "Stats",
		Aliases:     []string{"📥 All orders"},
	}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("start", commands.Command{Handler: nop, Description: "x"}), ErrInvalidCommand)
	require.ErrorIs(t, reg.RegisterCommand("/empty", commands.Command{Description: "x"}), ErrInvalidCommand)

	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"/start", "/start", true},
		{"/start@forge_bot", "/start", true},
		{"/start payload", "/start", true},
		{"📥 All orders", "/orders", true},
		{"  ℹ️ About us ", "/about", true},
		{"All orders", "", false},
		{"start", "", false},
		{"/stats", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		name, _, ok := reg.LookupCommand(tc.text)
		require.Equal(t, tc.ok, ok, tc.text)
		require.Equal(t, tc.want, name, tc.text)
	}

	_, cmd, _ := reg.LookupCommand("📥 All orders")
	require.True(t, cmd.AdminOnly)

	visible := reg.ListCommands(true)
	require.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, visible)
	require.Len(t, reg.ListCommands(false), 3)
	require.Len(t, reg.Commands(), 3)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("cat", nop))
	require.NoError(t, reg.RegisterCallback("adm", nop))
	require.ErrorIs(t, reg.RegisterCallback("cat", nop), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCallback("", nop), ErrInvalidCallback)
	require.ErrorIs(t, reg.RegisterCallback("x", nil), ErrInvalidCallback)

	_, ok := reg.GetCallback("cat")
	require.True(t, ok)
	_, ok = reg.GetCallback("nope")
	require.False(t, ok)
	require.Equal(t, []string{"adm", "cat"}, reg.ListCallbacks())

	require.NotNil(t, reg.CallbackNotFound())
	reg.SetCallbackNotFound(nil)
	require.NotNil(t, reg.CallbackNotFound())

	require.Nil(t, reg.TextFallback())
	reg.SetTextFallback(nop)
	require.NotNil(t, reg.TextFallback())
}
