package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanEscapesMarkup(t *testing.T) {
	require.Equal(t, "&lt;b&gt;fence&lt;/b&gt; &amp; gate", Clean("  <b>fence</b> & gate \n"))
}

func TestCleanKeepsEmptyInput(t *testing.T) {
	require.Equal(t, "", Clean("   "))
}

func TestCleanTruncatesLongInput(t *testing.T) {
	raw := strings.Repeat("ж", MaxTextLen+10)
	got := Clean(raw)
	require.True(t, strings.HasSuffix(got, TruncationMarker))
	require.Equal(t, MaxTextLen+len([]rune(TruncationMarker)), len([]rune(got)))
}

func TestSanitizerLimit(t *testing.T) {
	s := Sanitizer{Limit: 3}
	require.Equal(t, "abc...", s.Clean("abcdef"))
	require.Equal(t, "ab", s.Clean("ab"))
}

func TestDerefString(t *testing.T) {
	v := "gates"
	require.Equal(t, "gates", DerefString(&v, "-"))
	require.Equal(t, "-", DerefString(nil, "-"))
}
