package xstore

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryDriver 进程内驱动，进程退出即丢失。
type MemoryDriver struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

var _ Driver = (*MemoryDriver)(nil)

// NewMemory 创建内存驱动。
func NewMemory() *MemoryDriver {
	return &MemoryDriver{data: make(map[string]map[string][]byte)}
}

// Name 返回 "memory"。
func (d *MemoryDriver) Name() string { return BackendMemory }

func (d *MemoryDriver) Get(_ context.Context, session, key string) ([]byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, false, ErrClosed
	}
	v, ok := d.data[session][key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (d *MemoryDriver) Put(_ context.Context, session, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	bucket, ok := d.data[session]
	if !ok {
		bucket = make(map[string][]byte)
		d.data[session] = bucket
	}
	bucket[key] = slices.Clone(value)
	return nil
}

func (d *MemoryDriver) Delete(_ context.Context, session, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	bucket := d.data[session]
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(d.data, session)
	}
	return nil
}

func (d *MemoryDriver) Scan(_ context.Context, session, prefix string) (map[string][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	out := make(map[string][]byte)
	for k, v := range d.data[session] {
		if strings.HasPrefix(k, prefix) {
			out[k] = slices.Clone(v)
		}
	}
	return out, nil
}

func (d *MemoryDriver) Sessions(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(d.data))
	for id := range d.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (d *MemoryDriver) DropSession(_ context.Context, session string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	delete(d.data, session)
	return nil
}

func (d *MemoryDriver) Ping(context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Close 丢弃全部数据，重复调用无副作用。
func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	return nil
}
