package xconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendSettings struct {
	Backend string `koanf:"backend"`
	Redis   struct {
		Addr string `koanf:"addr"`
		DB   int    `koanf:"db"`
	} `koanf:"redis"`
}

const testYAML = `
backend: redis
redis:
  addr: localhost:6379
  db: 2
values:
  name: test
  lead:
    ip: [1, 2]
`

const testJSON = `{
  "backend": "redis",
  "redis": {"addr": "localhost:6379", "db": 2},
  "values": {"name": "test", "lead": {"ip": [1, 2]}}
}`

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		format  Format
	}{
		{"yaml", "values.yaml", testYAML, FormatYAML},
		{"yml", "values.yml", testYAML, FormatYAML},
		{"json", "values.json", testJSON, FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempFile(t, tt.file, tt.content)
			doc, err := New(path)
			require.NoError(t, err)
			assert.Equal(t, path, doc.Path())
			assert.Equal(t, tt.format, doc.Format())
			assert.Equal(t, "redis", doc.Client().String("backend"))
			assert.Equal(t, 2, doc.Client().Int("redis.db"))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		path  func(t *testing.T) string
		isErr error
	}{
		{"empty path", func(*testing.T) string { return "" }, ErrEmptyPath},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") }, ErrLoadFailed},
		{"unsupported extension", func(t *testing.T) string { return createTempFile(t, "values.toml", "a = 1") }, ErrUnsupportedFormat},
		{"invalid yaml", func(t *testing.T) string { return createTempFile(t, "values.yaml", "a: [1, 2") }, ErrParseFailed},
		{"invalid json", func(t *testing.T) string { return createTempFile(t, "values.json", "{") }, ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.path(t))
			assert.ErrorIs(t, err, tt.isErr)
		})
	}
}

func TestNewFromBytes(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		doc, err := NewFromBytes([]byte(testJSON), FormatJSON)
		require.NoError(t, err)
		assert.Empty(t, doc.Path())
		assert.Equal(t, "test", doc.Client().String("values.name"))
	})

	t.Run("empty data", func(t *testing.T) {
		doc, err := NewFromBytes(nil, FormatYAML)
		require.NoError(t, err)
		assert.Empty(t, doc.Values())
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := NewFromBytes([]byte("a = 1"), Format("toml"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("reload", func(t *testing.T) {
		doc, err := NewFromBytes([]byte(testYAML), FormatYAML)
		require.NoError(t, err)
		assert.ErrorIs(t, doc.Reload(), ErrNotFromFile)
	})
}

func TestDocument_Values(t *testing.T) {
	doc, err := NewFromBytes([]byte(testYAML), FormatYAML)
	require.NoError(t, err)

	values := doc.Values()
	assert.Equal(t, "test", values["values.name"])
	assert.Len(t, values["values.lead.ip"], 2)
	assert.NotContains(t, values, "values.lead")
}

func TestDocument_Unmarshal(t *testing.T) {
	doc, err := NewFromBytes([]byte(testYAML), FormatYAML)
	require.NoError(t, err)

	var s backendSettings
	require.NoError(t, doc.Unmarshal("", &s))
	assert.Equal(t, "redis", s.Backend)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.Equal(t, 2, s.Redis.DB)

	var partial struct {
		Addr string `koanf:"addr"`
	}
	require.NoError(t, doc.Unmarshal("redis", &partial))
	assert.Equal(t, "localhost:6379", partial.Addr)

	t.Run("must", func(t *testing.T) {
		var out backendSettings
		assert.NotPanics(t, func() { MustUnmarshal(doc, "", &out) })
		var bad struct {
			Backend int `koanf:"backend"`
		}
		assert.Panics(t, func() { MustUnmarshal(doc, "", &bad) })
	})
}

func TestDocument_Reload(t *testing.T) {
	path := createTempFile(t, "values.yaml", "name: a\n")
	doc, err := New(path)
	require.NoError(t, err)
	old := doc.Client()

	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o600))
	require.NoError(t, doc.Reload())
	assert.Equal(t, "b", doc.Client().String("name"))
	// 旧实例保持快照。
	assert.Equal(t, "a", old.String("name"))

	t.Run("invalid content keeps the previous document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("name: [b"), 0o600))
		assert.ErrorIs(t, doc.Reload(), ErrParseFailed)
		assert.Equal(t, "b", doc.Client().String("name"))
	})

	t.Run("file deleted", func(t *testing.T) {
		require.NoError(t, os.Remove(path))
		assert.ErrorIs(t, doc.Reload(), ErrLoadFailed)
	})
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.yaml", FormatYAML, false},
		{"a.YML", FormatYAML, false},
		{"/etc/a.json", FormatJSON, false},
		{"a.toml", "", true},
		{"a", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := detectFormat(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
