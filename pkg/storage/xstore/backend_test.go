package xstore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvStorage, " Redis ")
	t.Setenv(EnvRedisAddr, "127.0.0.1:6379")
	t.Setenv(EnvBadgerDir, "/tmp/xoption")
	t.Setenv(EnvEtcdEndpoints, "a:2379, ,b:2379")

	cfg := ConfigFromEnv()
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "/tmp/xoption", cfg.Badger.Dir)
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.Etcd.Endpoints)
}

func TestConfigFromEnv_Default(t *testing.T) {
	t.Setenv(EnvStorage, "")
	cfg := ConfigFromEnv()
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestOpenDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		d, err := OpenDriver(ctx, Config{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })
		assert.Equal(t, BackendMemory, d.Name())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		d, err := OpenDriver(ctx, Config{Backend: BackendRedis, KeyPrefix: "test:", Redis: RedisConfig{Addr: mr.Addr()}})
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })
		assert.Equal(t, BackendRedis, d.Name())

		require.NoError(t, d.Put(ctx, "s1", "k", []byte("v")))
		assert.True(t, mr.Exists("test:session:s1"))
		assert.Equal(t, int64(1), d.(StatsReporter).Stats().Pings)
	})

	t.Run("redis missing addr", func(t *testing.T) {
		_, err := OpenDriver(ctx, Config{Backend: BackendRedis})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("badger in memory", func(t *testing.T) {
		d, err := OpenDriver(ctx, Config{Backend: BackendBadger})
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })
		assert.Equal(t, BackendBadger, d.Name())
	})

	t.Run("badger dir", func(t *testing.T) {
		d, err := OpenDriver(ctx, Config{Backend: BackendBadger, Badger: BadgerConfig{Dir: t.TempDir()}})
		require.NoError(t, err)
		require.NoError(t, d.Put(ctx, "s1", "k", []byte("v")))
		require.NoError(t, d.Close())
	})

	t.Run("etcd invalid", func(t *testing.T) {
		_, err := OpenDriver(ctx, Config{Backend: BackendEtcd})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenDriver(ctx, Config{Backend: "sqlite"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
}

func TestSnapshotCodec(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemory())
	t.Cleanup(func() { _ = r.Close(ctx) })

	st, err := r.Open(ctx, "s1", true)
	require.NoError(t, err)
	require.NoError(t, st.Values().SetValue(ctx, "n", -1, 42, "user"))
	require.NoError(t, st.Values().SetValue(ctx, "f", 0, 0.5, "user"))
	require.NoError(t, st.Information().SetInformation(ctx, "", "map", map[string]any{"n": 1}))

	snap, err := st.Exportation(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap))
	got, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
	assert.Equal(t, 42, got.Values["n"][-1].Value)
	assert.Equal(t, map[string]any{"n": 1}, got.Informations[""]["map"])
}

func TestDecodeSnapshot_Corrupted(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader("{not json"))
	assert.ErrorIs(t, err, ErrCorrupted)
}
