package xconf

import "testing"

// FuzzNewFromBytes 解析成功的文档可以展平与反序列化。
func FuzzNewFromBytes(f *testing.F) {
	f.Add([]byte("server:\n  host: h\n"), false)
	f.Add([]byte(`{"lead": {"ip": [1, 2]}}`), true)

	f.Fuzz(func(t *testing.T, data []byte, asJSON bool) {
		format := FormatYAML
		if asJSON {
			format = FormatJSON
		}
		doc, err := NewFromBytes(data, format)
		if err != nil {
			return
		}
		_ = doc.Values()
		var out map[string]any
		if err := doc.Unmarshal("", &out); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
	})
}
