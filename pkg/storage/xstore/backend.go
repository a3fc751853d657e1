package xstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

// 后端名称。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendEtcd   = "etcd"
)

// 环境变量。
const (
	EnvStorage       = "XOPTION_STORAGE"
	EnvRedisAddr     = "XOPTION_REDIS_ADDR"
	EnvBadgerDir     = "XOPTION_BADGER_DIR"
	EnvEtcdEndpoints = "XOPTION_ETCD_ENDPOINTS"
)

// RedisConfig redis 连接配置。
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr" yaml:"addr"`
	Password string `koanf:"password" json:"password" yaml:"password"`
	DB       int    `koanf:"db" json:"db" yaml:"db"`
}

// BadgerConfig badger 配置，Dir 为空时使用内存模式。
type BadgerConfig struct {
	Dir string `koanf:"dir" json:"dir" yaml:"dir"`
}

// Config 后端选择与连接配置。
type Config struct {
	// Backend 后端名称，默认 memory。
	Backend string `koanf:"backend" json:"backend" yaml:"backend"`
	// KeyPrefix redis 键前缀或 etcd 根目录，为空时使用驱动默认值。
	KeyPrefix string       `koanf:"key_prefix" json:"key_prefix" yaml:"key_prefix"`
	Redis     RedisConfig  `koanf:"redis" json:"redis" yaml:"redis"`
	Badger    BadgerConfig `koanf:"badger" json:"badger" yaml:"badger"`
	Etcd      EtcdConfig   `koanf:"etcd" json:"etcd" yaml:"etcd"`
}

// ConfigFromEnv 从环境变量读取配置，未设置的项保持零值。
func ConfigFromEnv() Config {
	cfg := Config{Backend: BackendMemory}
	cfg.MergeEnv()
	return cfg
}

// MergeEnv 用已设置的环境变量覆盖 cfg。
func (c *Config) MergeEnv() {
	if v, ok := os.LookupEnv(EnvStorage); ok && v != "" {
		c.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvBadgerDir); ok && v != "" {
		c.Badger.Dir = v
	}
	if v, ok := os.LookupEnv(EnvEtcdEndpoints); ok && v != "" {
		var eps []string
		for ep := range strings.SplitSeq(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				eps = append(eps, ep)
			}
		}
		c.Etcd.Endpoints = eps
	}
}

// OpenDriver 按配置创建驱动；远程驱动创建后立即 Ping，失败时关闭并返回错误。
func OpenDriver(ctx context.Context, cfg Config, opts ...DriverOption) (Driver, error) {
	if cfg.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(cfg.KeyPrefix))
	}
	var (
		driver Driver
		err    error
	)
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("%w: redis addr required", ErrInvalidConfig)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		driver, err = NewRedis(client, append(opts, withOwnedClient())...)
	case BackendBadger:
		driver, err = OpenBadger(cfg.Badger.Dir, opts...)
	case BackendEtcd:
		driver, err = DialEtcd(cfg.Etcd, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := driver.Ping(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("xstore: ping %s: %w", driver.Name(), err), driver.Close())
	}
	return driver, nil
}
