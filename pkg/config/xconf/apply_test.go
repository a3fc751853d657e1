package xconf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xoption/pkg/config/xconfig"
	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/storage/xstore"
)

func newConfig(t *testing.T) *xconfig.Config {
	t.Helper()
	ctx := context.Background()
	m := xconfig.NewManager(xstore.NewRegistry(xstore.NewMemory()))
	t.Cleanup(func() {
		require.NoError(t, m.Close(context.Background()))
	})

	lead, err := xoption.NewLeadership("lead", "", []xoption.Node{
		xoption.Must(xoption.NewInt("ip", "", xoption.WithMulti())),
		xoption.Must(xoption.NewString("name", "", xoption.WithMulti())),
	})
	require.NoError(t, err)
	suffixes := xoption.Must(xoption.NewString("suffixes", "", xoption.WithMulti()))
	dyn := xoption.Must(xoption.NewDynDescription("dyn", "", []xoption.Node{
		xoption.Must(xoption.NewString("x", "")),
	}, xoption.NewCalculation("suffixes", func(_ context.Context, args []any, _ map[string]any) (any, error) {
		return args[0], nil
	}, xoption.Args(xoption.ParamOption{Option: suffixes}))))
	server, err := xoption.NewDescription("server", "", []xoption.Node{
		xoption.Must(xoption.NewString("host", "")),
		xoption.Must(xoption.NewPort("port", "")),
	})
	require.NoError(t, err)
	root, err := xoption.NewDescription("root", "", []xoption.Node{server, lead, suffixes, dyn})
	require.NoError(t, err)

	c, err := m.NewConfig(ctx, root)
	require.NoError(t, err)
	return c
}

func get(t *testing.T, c *xconfig.Config, path string) any {
	t.Helper()
	v, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	return v
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"yaml", FormatYAML, `
server:
  host: example.org
  port: 8080
lead:
  name: [null, b]
  ip: [1, 2]
dyna:
  xa: first
suffixes: [a]
`},
		{"json", FormatJSON, `{
  "server": {"host": "example.org", "port": 8080},
  "lead": {"ip": [1, 2], "name": [null, "b"]},
  "dyna": {"xa": "first"},
  "suffixes": ["a"]
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := newConfig(t)
			doc, err := NewFromBytes([]byte(tt.data), tt.format)
			require.NoError(t, err)

			report, err := Apply(ctx, c, doc)
			require.NoError(t, err)
			assert.Len(t, report.Applied, 6)
			assert.Empty(t, report.Skipped)

			assert.Equal(t, "example.org", get(t, c, "server.host"))
			assert.Equal(t, 8080, get(t, c, "server.port"))
			assert.Equal(t, []any{1, 2}, get(t, c, "lead.ip"))
			assert.Equal(t, []any{nil, "b"}, get(t, c, "lead.name"))
			assert.Equal(t, "first", get(t, c, "dyna.xa"))

			owner, err := c.OwnerAt(ctx, "lead.name", 0)
			require.NoError(t, err)
			assert.Equal(t, xoption.OwnerDefault, owner)
		})
	}
}

func TestApply_RoundTripsDict(t *testing.T) {
	ctx := context.Background()
	src := newConfig(t)
	require.NoError(t, src.Set(ctx, "server.host", "a.example.org"))
	require.NoError(t, src.Set(ctx, "lead.ip", []int{7}))
	require.NoError(t, src.SetAt(ctx, "lead.name", 0, "seven"))

	dumped, err := src.Dict(ctx)
	require.NoError(t, err)
	doc, err := NewFromBytes(mustJSON(t, dumped), FormatJSON)
	require.NoError(t, err)

	dst := newConfig(t)
	_, err = Apply(ctx, dst, doc)
	require.NoError(t, err)
	for _, path := range []string{"server.host", "lead.ip", "lead.name"} {
		assert.Equal(t, dumped[path], get(t, dst, path), path)
	}
	isDefault, err := dst.IsDefault(ctx, "server.port")
	require.NoError(t, err)
	assert.True(t, isDefault)
}

func TestApply_UnknownKeys(t *testing.T) {
	ctx := context.Background()
	data := []byte("server:\n  host: h\nmissing: 1\n")

	t.Run("skipped by default", func(t *testing.T) {
		c := newConfig(t)
		doc, err := NewFromBytes(data, FormatYAML)
		require.NoError(t, err)
		report, err := Apply(ctx, c, doc)
		require.NoError(t, err)
		assert.Equal(t, []string{"server.host"}, report.Applied)
		assert.Equal(t, []string{"missing"}, report.Skipped)
	})

	t.Run("strict", func(t *testing.T) {
		c := newConfig(t)
		doc, err := NewFromBytes(data, FormatYAML)
		require.NoError(t, err)
		report, err := Apply(ctx, c, doc, Strict())
		assert.ErrorIs(t, err, ErrUnknownKey)
		assert.ErrorIs(t, err, xoption.ErrUnknownOption)
		assert.Equal(t, []string{"server.host"}, report.Applied)
		assert.Equal(t, "h", get(t, c, "server.host"))
	})
}

func TestApply_InvalidValueDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	c := newConfig(t)
	doc, err := NewFromBytes([]byte(`{"server": {"host": "h", "port": "not a port"}}`), FormatJSON)
	require.NoError(t, err)

	report, err := Apply(ctx, c, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, xoption.ErrValue)
	assert.Contains(t, err.Error(), "server.port")
	assert.Equal(t, []string{"server.host"}, report.Applied)
}

func TestApply_Prefix(t *testing.T) {
	ctx := context.Background()
	c := newConfig(t)
	doc, err := NewFromBytes([]byte(testYAML), FormatYAML)
	require.NoError(t, err)

	report, err := Apply(ctx, c, doc, WithPrefix("values"))
	require.NoError(t, err)
	assert.Equal(t, []string{"lead.ip"}, report.Applied)
	assert.Equal(t, []string{"name"}, report.Skipped)
	assert.Equal(t, []any{1, 2}, get(t, c, "lead.ip"))
}

func TestApply_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newConfig(t)
	doc, err := NewFromBytes([]byte("server:\n  host: h\n"), FormatYAML)
	require.NoError(t, err)

	_, err = Apply(ctx, c, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
