package xstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xstore: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return nil
}

// normalizeNumbers 把 json.Number 还原为 int 或 float64。
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeNumbers(item)
		}
		return x
	}
	return v
}

func (s ValueSnapshot) normalize() {
	for _, entries := range s {
		for idx, e := range entries {
			e.Value = normalizeNumbers(e.Value)
			entries[idx] = e
		}
	}
}

func (s InformationSnapshot) normalize() {
	for _, items := range s {
		for k, v := range items {
			items[k] = normalizeNumbers(v)
		}
	}
}

// EncodeSnapshot 以缩进 JSON 写出快照。
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("xstore: encode snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot 读取 EncodeSnapshot 写出的快照。
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	snap.Values.normalize()
	snap.Informations.normalize()
	return &snap, nil
}
