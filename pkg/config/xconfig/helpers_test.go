package xconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(xstore.NewRegistry(xstore.NewMemory()), opts...)
	t.Cleanup(func() {
		require.NoError(t, m.Close(context.Background()))
	})
	return m
}

func newTestConfig(t *testing.T, root *xoption.Description, opts ...Option) *Config {
	t.Helper()
	c, err := newTestManager(t).NewConfig(context.Background(), root, opts...)
	require.NoError(t, err)
	return c
}

func newRoot(t *testing.T, children ...xoption.Node) *xoption.Description {
	t.Helper()
	d, err := xoption.NewDescription("root", "", children)
	require.NoError(t, err)
	return d
}

// simpleRoot: name(string, default "a"), port(port), count(int)。
func simpleRoot(t *testing.T) *xoption.Description {
	t.Helper()
	return newRoot(t,
		xoption.Must(xoption.NewString("name", "", xoption.WithDefault("a"))),
		xoption.Must(xoption.NewPort("port", "")),
		xoption.Must(xoption.NewInt("count", "")),
	)
}

// leadershipRoot: lead.ip(int, multi) 为 leader，lead.name(string) 为 follower。
func leadershipRoot(t *testing.T) *xoption.Description {
	t.Helper()
	lead, err := xoption.NewLeadership("lead", "", []xoption.Node{
		xoption.Must(xoption.NewInt("ip", "", xoption.WithMulti())),
		xoption.Must(xoption.NewString("name", "", xoption.WithMulti())),
	})
	require.NoError(t, err)
	return newRoot(t, lead)
}

// valuesOverride 替换存储会话的 ValueStore。
type valuesOverride struct {
	xstore.Storage
	values xstore.ValueStore
}

func (s valuesOverride) Values() xstore.ValueStore {
	return s.values
}

// failingSet 写入值时返回 err，其余操作交给真实存储。
type failingSet struct {
	xstore.ValueStore
	err error
}

func (f failingSet) SetValue(context.Context, string, int, any, xoption.Owner) error {
	return f.err
}

var errStoreDown = errors.New("store down")

// openOverride 在 m 的 Registry 上打开会话并替换其 ValueStore。
func openOverride(t *testing.T, m *Manager, id string, wrap func(xstore.ValueStore) xstore.ValueStore) xstore.Storage {
	t.Helper()
	st, err := m.Registry().Open(context.Background(), id, false)
	require.NoError(t, err)
	return valuesOverride{Storage: st, values: wrap(st.Values())}
}
