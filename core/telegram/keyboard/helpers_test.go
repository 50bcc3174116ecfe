package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRowsDropsOversizedData(t *testing.T) {
	ok := InlineBtn{Text: "Approve", Unique: "decide", Data: "approve:12"}
	long := InlineBtn{Text: "Bad", Unique: "decide", Data: strings.Repeat("x", MaxCallbackData)}
	require.True(t, ok.Fits())
	require.False(t, long.Fits())

	markup := InlineButtonsRows([]InlineBtn{ok, long}, []InlineBtn{long})
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	btn := markup.InlineKeyboard[0][0]
	require.Equal(t, "Approve", btn.Text)
	require.Equal(t, "decide", btn.Unique)
}

func TestReplyButtonsSkipsEmptyRows(t *testing.T) {
	markup := ReplyButtons([]string{"Order", "Status"}, nil, []string{"Help"})
	require.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 2)
	require.Equal(t, "Status", markup.ReplyKeyboard[0][1].Text)

	require.True(t, RemoveKeyboard().RemoveKeyboard)
}
