package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type updateContext struct {
	tele.Context
	upd   tele.Update
	store map[string]any
}

func (u updateContext) Get(key string) any    { return u.store[key] }
func (u updateContext) Set(key string, v any) { u.store[key] = v }

func (u updateContext) Update() tele.Update { return u.upd }
func (u updateContext) Chat() *tele.Chat    { return nil }

func (u updateContext) Sender() *tele.User {
	switch {
	case u.upd.Callback != nil:
		return u.upd.Callback.Sender
	case u.upd.Message != nil:
		return u.upd.Message.Sender
	}
	return nil
}

func messageFrom(id int64) tele.Context {
	return updateContext{upd: tele.Update{Message: &tele.Message{Sender: &tele.User{ID: id}}}, store: map[string]any{}}
}

func callbackFrom(id int64) tele.Context {
	return updateContext{upd: tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: id}}}, store: map[string]any{}}
}

func TestRateLimitBurstPerUser(t *testing.T) {
	var passed, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Burst:    2,
		OnLimited: func(tele.Context) error {
			limited++
			return nil
		},
	})
	h := mw(func(tele.Context) error {
		passed++
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, h(messageFrom(1)))
	}
	require.Equal(t, 2, passed)
	require.Equal(t, 1, limited)

	require.NoError(t, h(messageFrom(2)))
	require.Equal(t, 3, passed)
}

func TestRateLimitExclusions(t *testing.T) {
	var passed int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Burst:    1,
		Exclude:  map[string]struct{}{"callback": {}},
	})
	h := mw(func(tele.Context) error {
		passed++
		return nil
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, h(callbackFrom(1)))
	}
	require.NoError(t, h(messageFrom(1)))
	require.NoError(t, h(messageFrom(1)))
	require.Equal(t, 5, passed)
}

func TestRateLimitExemptUsers(t *testing.T) {
	var passed int
	h := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Burst:    1,
		Exempt:   map[int64]struct{}{42: {}},
	})(func(tele.Context) error {
		passed++
		return nil
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, h(messageFrom(42)))
		require.NoError(t, h(messageFrom(7)))
	}
	require.Equal(t, 4, passed)
}

func TestRateLimitDisabled(t *testing.T) {
	var passed int
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error {
		passed++
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, h(messageFrom(1)))
	}
	require.Equal(t, 5, passed)
}
