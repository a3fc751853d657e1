package xstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xoption/internal/storageopt"
)

const defaultRedisPrefix = "xoption:"

// RedisDriver 每个会话一个 hash（<prefix>session:<id>），会话 ID 记录在 <prefix>sessions 集合中。
type RedisDriver struct {
	client redis.UniversalClient
	prefix string
	owns   bool
	guard  *storageopt.Guard
	closed atomic.Bool
}

var (
	_ Driver        = (*RedisDriver)(nil)
	_ StatsReporter = (*RedisDriver)(nil)
)

// NewRedis 基于已有客户端创建驱动，Close 不会关闭该客户端。
func NewRedis(client redis.UniversalClient, opts ...DriverOption) (*RedisDriver, error) {
	if client == nil {
		return nil, ErrInvalidConfig
	}
	o := applyDriverOptions(defaultRedisPrefix, opts)
	return &RedisDriver{
		client: client,
		prefix: o.keyPrefix,
		owns:   o.ownsClient,
		guard:  newGuard(BackendRedis, o),
	}, nil
}

// Name 返回 "redis"。
func (d *RedisDriver) Name() string { return BackendRedis }

func (d *RedisDriver) sessionKey(session string) string {
	return d.prefix + "session:" + session
}

func (d *RedisDriver) sessionsKey() string {
	return d.prefix + "sessions"
}

func (d *RedisDriver) check() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (d *RedisDriver) Get(ctx context.Context, session, key string) (value []byte, ok bool, err error) {
	if err := d.check(); err != nil {
		return nil, false, err
	}
	err = d.guard.Do(ctx, op("get", session, key), func(ctx context.Context) error {
		v, err := d.client.HGet(ctx, d.sessionKey(session), key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, ok = v, true
		return nil
	})
	return value, ok, err
}

func (d *RedisDriver) Put(ctx context.Context, session, key string, value []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("put", session, key), func(ctx context.Context) error {
		_, err := d.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, d.sessionKey(session), key, value)
			p.SAdd(ctx, d.sessionsKey(), session)
			return nil
		})
		return err
	})
}

func (d *RedisDriver) Delete(ctx context.Context, session, key string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("delete", session, key), func(ctx context.Context) error {
		return d.client.HDel(ctx, d.sessionKey(session), key).Err()
	})
}

func (d *RedisDriver) Scan(ctx context.Context, session, prefix string) (map[string][]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var out map[string][]byte
	err := d.guard.Do(ctx, op("scan", session, prefix), func(ctx context.Context) error {
		all, err := d.client.HGetAll(ctx, d.sessionKey(session)).Result()
		if err != nil {
			return err
		}
		out = make(map[string][]byte, len(all))
		for k, v := range all {
			if strings.HasPrefix(k, prefix) {
				out[k] = []byte(v)
			}
		}
		return nil
	})
	return out, err
}

func (d *RedisDriver) Sessions(ctx context.Context) ([]string, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var ids []string
	err := d.guard.Do(ctx, op("sessions", "", ""), func(ctx context.Context) error {
		members, err := d.client.SMembers(ctx, d.sessionsKey()).Result()
		if err != nil {
			return err
		}
		ids = members
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

func (d *RedisDriver) DropSession(ctx context.Context, session string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("drop_session", session, ""), func(ctx context.Context) error {
		_, err := d.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, d.sessionKey(session))
			p.SRem(ctx, d.sessionsKey(), session)
			return nil
		})
		return err
	})
}

func (d *RedisDriver) Ping(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Ping(ctx, func(ctx context.Context) error {
		return d.client.Ping(ctx).Err()
	})
}

// Close 关闭驱动；仅当客户端由驱动创建时才关闭客户端。
func (d *RedisDriver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.owns {
		return d.client.Close()
	}
	return nil
}

// Stats 返回驱动统计。
func (d *RedisDriver) Stats() DriverStats {
	return d.guard.Stats()
}
