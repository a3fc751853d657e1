package xstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/omeyang/xoption/internal/storageopt"
)

// BadgerDriver 本地嵌入式驱动，键布局为 <session>/<key>。
type BadgerDriver struct {
	db     *badger.DB
	owns   bool
	guard  *storageopt.Guard
	closed atomic.Bool
}

var (
	_ Driver        = (*BadgerDriver)(nil)
	_ StatsReporter = (*BadgerDriver)(nil)
)

// NewBadger 基于已打开的数据库创建驱动，Close 不会关闭该数据库。
func NewBadger(db *badger.DB, opts ...DriverOption) (*BadgerDriver, error) {
	if db == nil {
		return nil, ErrInvalidConfig
	}
	o := applyDriverOptions("", opts)
	return &BadgerDriver{db: db, owns: o.ownsClient, guard: newGuard(BackendBadger, o)}, nil
}

// OpenBadger 在 dir 打开数据库；dir 为空时使用内存模式。驱动关闭时一并关闭数据库。
func OpenBadger(dir string, opts ...DriverOption) (*BadgerDriver, error) {
	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("xstore: create badger dir %s: %w", dir, err)
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	db, err := badger.Open(bopts.WithNumVersionsToKeep(1).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("xstore: open badger: %w", err)
	}
	return NewBadger(db, append(opts, withOwnedClient())...)
}

// Name 返回 "badger"。
func (d *BadgerDriver) Name() string { return BackendBadger }

func badgerKey(session, key string) []byte {
	return []byte(session + "/" + key)
}

func (d *BadgerDriver) check() error {
	if d.closed.Load() || d.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (d *BadgerDriver) Get(ctx context.Context, session, key string) (value []byte, ok bool, err error) {
	if err := d.check(); err != nil {
		return nil, false, err
	}
	err = d.guard.Do(ctx, op("get", session, key), func(context.Context) error {
		return d.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(badgerKey(session, key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			value, err = item.ValueCopy(nil)
			ok = err == nil
			return err
		})
	})
	return value, ok, err
}

func (d *BadgerDriver) Put(ctx context.Context, session, key string, value []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("put", session, key), func(context.Context) error {
		return d.db.Update(func(txn *badger.Txn) error {
			return txn.Set(badgerKey(session, key), slices.Clone(value))
		})
	})
}

func (d *BadgerDriver) Delete(ctx context.Context, session, key string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("delete", session, key), func(context.Context) error {
		return d.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(badgerKey(session, key))
		})
	})
}

func (d *BadgerDriver) Scan(ctx context.Context, session, prefix string) (map[string][]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var out map[string][]byte
	err := d.guard.Do(ctx, op("scan", session, prefix), func(context.Context) error {
		out = make(map[string][]byte)
		base := session + "/"
		return d.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			p := []byte(base + prefix)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				item := it.Item()
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				out[strings.TrimPrefix(string(item.Key()), base)] = v
			}
			return nil
		})
	})
	return out, err
}

func (d *BadgerDriver) Sessions(ctx context.Context) ([]string, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var ids []string
	err := d.guard.Do(ctx, op("sessions", "", ""), func(context.Context) error {
		ids = ids[:0]
		return d.db.View(func(txn *badger.Txn) error {
			itOpts := badger.DefaultIteratorOptions
			itOpts.PrefetchValues = false
			it := txn.NewIterator(itOpts)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				session, _, found := strings.Cut(string(it.Item().Key()), "/")
				if found && (len(ids) == 0 || ids[len(ids)-1] != session) {
					ids = append(ids, session)
				}
			}
			return nil
		})
	})
	slices.Sort(ids)
	return ids, err
}

func (d *BadgerDriver) DropSession(ctx context.Context, session string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("drop_session", session, ""), func(context.Context) error {
		return d.db.DropPrefix([]byte(session + "/"))
	})
}

func (d *BadgerDriver) Ping(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Ping(ctx, func(context.Context) error {
		return d.check()
	})
}

// Close 关闭驱动；仅当数据库由 OpenBadger 打开时才关闭数据库。
func (d *BadgerDriver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.owns {
		return d.db.Close()
	}
	return nil
}

// Stats 返回驱动统计。
func (d *BadgerDriver) Stats() DriverStats {
	return d.guard.Stats()
}
