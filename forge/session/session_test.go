package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryRoundTripIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	s := New(5)
	s.Step = StepCatalogDesc
	s.SetField("service_code", "gates")
	s.Challenge = &challenge.Pending{Correct: 1, Options: 4, Purpose: challenge.PurposeEntry}
	require.NoError(t, m.Put(ctx, s))

	s.SetField("service_code", "fence")
	s.Challenge.Correct = 3

	got, ok, err := m.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StepCatalogDesc, got.Step)
	require.Equal(t, "gates", got.Field("service_code"))
	require.Equal(t, 1, got.Challenge.Correct)

	require.NoError(t, m.Delete(ctx, 5))
	_, ok, err = m.Get(ctx, 5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(time.Hour)
	m.now = c.now

	require.NoError(t, m.Put(ctx, New(1)))
	require.NoError(t, m.Put(ctx, New(2)))

	c.t = c.t.Add(30 * time.Minute)
	require.NoError(t, m.Put(ctx, New(2)))

	c.t = c.t.Add(45 * time.Minute)
	_, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = m.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	c.t = c.t.Add(time.Hour)
	require.Equal(t, 1, m.Sweep())
	require.Zero(t, m.Len())
}

func TestResetKeepsVerified(t *testing.T) {
	s := New(1)
	s.Verified = true
	s.Step = StepConfirm
	s.Kind = domain.KindCustom
	s.SetField("title", "bench")
	s.Challenge = &challenge.Pending{}

	s.Reset()
	require.Equal(t, StepNone, s.Step)
	require.Empty(t, s.Kind)
	require.Empty(t, s.Fields)
	require.Nil(t, s.Challenge)
	require.True(t, s.Verified)
}

// fakeRedis implements the handful of commands the store uses.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	n := 0
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(int64(n), nil)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	r := NewRedis(fr, 2*time.Hour)

	_, ok, err := r.Get(ctx, 11)
	require.NoError(t, err)
	require.False(t, ok)

	s := New(11)
	s.Step = StepPreConfirmChallenge
	s.Kind = domain.KindCatalog
	s.Verified = true
	s.SetField("contact_value", "a@b.com")
	s.Challenge = &challenge.Pending{Correct: 2, Options: 4, Purpose: challenge.PurposePreConfirm, Carried: domain.KindCatalog}
	require.NoError(t, r.Put(ctx, s))
	require.Equal(t, 2*time.Hour, fr.ttls["forge:session:11"])

	got, ok, err := r.Get(ctx, 11)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StepPreConfirmChallenge, got.Step)
	require.Equal(t, domain.KindCatalog, got.Challenge.Carried)
	require.Equal(t, "a@b.com", got.Field("contact_value"))
	require.True(t, got.Verified)

	require.NoError(t, r.Delete(ctx, 11))
	_, ok, err = r.Get(ctx, 11)
	require.NoError(t, err)
	require.False(t, ok)
}
