package xstore

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/omeyang/xoption/internal/storageopt"
)

const defaultEtcdRoot = "/xoption"

// etcdKV 驱动需要的 etcd KV 操作，方法与 clientv3.KV 一致。
type etcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

var _ etcdKV = (*clientv3.Client)(nil)

// EtcdConfig etcd 连接配置。
type EtcdConfig struct {
	// Endpoints 服务端点列表，必填。
	Endpoints []string `koanf:"endpoints" json:"endpoints" yaml:"endpoints"`

	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"password" yaml:"password"`

	// DialTimeout 连接超时，默认 5 秒。
	DialTimeout time.Duration `koanf:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`

	// KeepAliveTime gRPC keepalive 探测间隔，默认 10 秒。
	KeepAliveTime time.Duration `koanf:"keepalive_time" json:"keepalive_time" yaml:"keepalive_time"`

	// KeepAliveTimeout gRPC keepalive 超时，默认 3 秒。
	KeepAliveTimeout time.Duration `koanf:"keepalive_timeout" json:"keepalive_timeout" yaml:"keepalive_timeout"`
}

const (
	defaultEtcdDialTimeout      = 5 * time.Second
	defaultEtcdKeepAliveTime    = 10 * time.Second
	defaultEtcdKeepAliveTimeout = 3 * time.Second
)

// Validate 检查配置。
func (c EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: etcd endpoints required", ErrInvalidConfig)
	}
	for _, ep := range c.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return fmt.Errorf("%w: empty etcd endpoint", ErrInvalidConfig)
		}
	}
	return nil
}

func (c EtcdConfig) withDefaults() EtcdConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultEtcdDialTimeout
	}
	if c.KeepAliveTime <= 0 {
		c.KeepAliveTime = defaultEtcdKeepAliveTime
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = defaultEtcdKeepAliveTimeout
	}
	return c
}

// EtcdDriver 键布局为 <root>/<session>/<key>。
type EtcdDriver struct {
	kv     etcdKV
	closer io.Closer
	root   string
	guard  *storageopt.Guard
	closed atomic.Bool
}

var (
	_ Driver        = (*EtcdDriver)(nil)
	_ StatsReporter = (*EtcdDriver)(nil)
)

// DialEtcd 按配置连接 etcd，驱动关闭时一并关闭客户端。
func DialEtcd(cfg EtcdConfig, opts ...DriverOption) (*EtcdDriver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.KeepAliveTime,
				Timeout:             cfg.KeepAliveTimeout,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xstore: create etcd client: %w", err)
	}
	return newEtcdDriver(client, client, opts), nil
}

// NewEtcd 基于已有客户端创建驱动，Close 不会关闭该客户端。
func NewEtcd(client *clientv3.Client, opts ...DriverOption) (*EtcdDriver, error) {
	if client == nil {
		return nil, ErrInvalidConfig
	}
	return newEtcdDriver(client, nil, opts), nil
}

func newEtcdDriver(kv etcdKV, closer io.Closer, opts []DriverOption) *EtcdDriver {
	o := applyDriverOptions(defaultEtcdRoot, opts)
	return &EtcdDriver{
		kv:     kv,
		closer: closer,
		root:   strings.TrimSuffix(o.keyPrefix, "/"),
		guard:  newGuard(BackendEtcd, o),
	}
}

// Name 返回 "etcd"。
func (d *EtcdDriver) Name() string { return BackendEtcd }

func (d *EtcdDriver) sessionPrefix(session string) string {
	return d.root + "/" + session + "/"
}

func (d *EtcdDriver) check() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (d *EtcdDriver) Get(ctx context.Context, session, key string) (value []byte, ok bool, err error) {
	if err := d.check(); err != nil {
		return nil, false, err
	}
	err = d.guard.Do(ctx, op("get", session, key), func(ctx context.Context) error {
		resp, err := d.kv.Get(ctx, d.sessionPrefix(session)+key)
		if err != nil {
			return err
		}
		if len(resp.Kvs) == 0 {
			return nil
		}
		value, ok = resp.Kvs[0].Value, true
		return nil
	})
	return value, ok, err
}

func (d *EtcdDriver) Put(ctx context.Context, session, key string, value []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("put", session, key), func(ctx context.Context) error {
		_, err := d.kv.Put(ctx, d.sessionPrefix(session)+key, string(value))
		return err
	})
}

func (d *EtcdDriver) Delete(ctx context.Context, session, key string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("delete", session, key), func(ctx context.Context) error {
		_, err := d.kv.Delete(ctx, d.sessionPrefix(session)+key)
		return err
	})
}

func (d *EtcdDriver) Scan(ctx context.Context, session, prefix string) (map[string][]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var out map[string][]byte
	err := d.guard.Do(ctx, op("scan", session, prefix), func(ctx context.Context) error {
		base := d.sessionPrefix(session)
		resp, err := d.kv.Get(ctx, base+prefix, clientv3.WithPrefix())
		if err != nil {
			return err
		}
		out = make(map[string][]byte, len(resp.Kvs))
		for _, kv := range resp.Kvs {
			out[strings.TrimPrefix(string(kv.Key), base)] = kv.Value
		}
		return nil
	})
	return out, err
}

func (d *EtcdDriver) Sessions(ctx context.Context) ([]string, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var ids []string
	err := d.guard.Do(ctx, op("sessions", "", ""), func(ctx context.Context) error {
		resp, err := d.kv.Get(ctx, d.root+"/", clientv3.WithPrefix(), clientv3.WithKeysOnly())
		if err != nil {
			return err
		}
		seen := make(map[string]struct{})
		ids = ids[:0]
		for _, kv := range resp.Kvs {
			rest := strings.TrimPrefix(string(kv.Key), d.root+"/")
			session, _, found := strings.Cut(rest, "/")
			if _, dup := seen[session]; found && !dup {
				seen[session] = struct{}{}
				ids = append(ids, session)
			}
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

func (d *EtcdDriver) DropSession(ctx context.Context, session string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Do(ctx, op("drop_session", session, ""), func(ctx context.Context) error {
		_, err := d.kv.Delete(ctx, d.sessionPrefix(session), clientv3.WithPrefix())
		return err
	})
}

func (d *EtcdDriver) Ping(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.guard.Ping(ctx, func(ctx context.Context) error {
		_, err := d.kv.Get(ctx, d.root+"/", clientv3.WithPrefix(), clientv3.WithCountOnly())
		return err
	})
}

// Close 关闭驱动；仅当客户端由 DialEtcd 创建时才关闭客户端。
func (d *EtcdDriver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// Stats 返回驱动统计。
func (d *EtcdDriver) Stats() DriverStats {
	return d.guard.Stats()
}
