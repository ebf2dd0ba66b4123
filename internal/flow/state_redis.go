package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nutripipe:"

// RedisStateManager keeps sessions and flags in Redis so they survive restarts.
// Keys expire after the configured TTL.
type RedisStateManager struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStateManager connects to the Redis instance at url (redis://...).
func NewRedisStateManager(ctx context.Context, url string, ttl time.Duration) (*RedisStateManager, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	slog.Debug("RedisStateManager connected", "addr", opts.Addr, "ttl", ttl)
	return &RedisStateManager{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(identity string) string { return redisKeyPrefix + "session:" + identity }
func flagsKey(identity string) string   { return redisKeyPrefix + "flags:" + identity }

func (r *RedisStateManager) GetSession(ctx context.Context, identity string) (*RegistrationSession, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStateManager GetSession failed", "error", err, "identity", identity)
		return nil, err
	}
	var s RegistrationSession
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("RedisStateManager dropping unreadable session", "error", err, "identity", identity)
		r.rdb.Del(ctx, sessionKey(identity))
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStateManager) SaveSession(ctx context.Context, s RegistrationSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(s.Identity), raw, r.ttl).Err(); err != nil {
		slog.Error("RedisStateManager SaveSession failed", "error", err, "identity", s.Identity)
		return err
	}
	return nil
}

func (r *RedisStateManager) DeleteSession(ctx context.Context, identity string) error {
	return r.rdb.Del(ctx, sessionKey(identity)).Err()
}

func (r *RedisStateManager) SetFlags(ctx context.Context, identity string, f Flags) error {
	if !f.Any() {
		return r.rdb.Del(ctx, flagsKey(identity)).Err()
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	return r.rdb.Set(ctx, flagsKey(identity), raw, r.ttl).Err()
}

func (r *RedisStateManager) TakeFlags(ctx context.Context, identity string) (Flags, error) {
	raw, err := r.rdb.GetDel(ctx, flagsKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Flags{}, nil
	}
	if err != nil {
		slog.Error("RedisStateManager TakeFlags failed", "error", err, "identity", identity)
		return Flags{}, err
	}
	var f Flags
	if err := json.Unmarshal(raw, &f); err != nil {
		return Flags{}, nil
	}
	return f, nil
}

// Close closes the Redis connection pool.
func (r *RedisStateManager) Close() error {
	return r.rdb.Close()
}
