package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/forgebot/forge/domain"
)

const redisKeyPrefix = "forge:session:"

// Redis stores sessions as JSON values whose key TTL is the idle timeout.
type Redis struct {
	cli redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis wraps a go-redis client. A non-positive ttl stores keys without expiry.
func NewRedis(cli redis.Cmdable, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{cli: cli, ttl: ttl, now: time.Now}
}

// Key returns the Redis key of the session for who.
func Key(who domain.Identity) string {
	return redisKeyPrefix + who.String()
}

// Get loads the session for who.
func (r *Redis) Get(ctx context.Context, who domain.Identity) (*Session, bool, error) {
	data, err := r.cli.Get(ctx, Key(who)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session from redis: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	return &s, true, nil
}

// Put saves s and refreshes its TTL.
func (r *Redis) Put(ctx context.Context, s *Session) error {
	s.UpdatedAt = r.now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.cli.Set(ctx, Key(s.Identity), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

// Delete removes the session for who.
func (r *Redis) Delete(ctx context.Context, who domain.Identity) error {
	if err := r.cli.Del(ctx, Key(who)).Err(); err != nil {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	return nil
}
