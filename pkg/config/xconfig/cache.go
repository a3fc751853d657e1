package xconfig

import (
	"encoding/binary"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// CacheStats 缓存命中统计。
type CacheStats struct {
	ValueHits   uint64
	ValueMisses uint64
	PropHits    uint64
	PropMisses  uint64
}

type cachedValue struct {
	value     any
	stamp     time.Time
	validated bool
}

type cachedProps struct {
	path  string
	index int
	props xoption.Properties
	help  map[string]string
}

// cache 是一个配置的值缓存与属性缓存。
//
// 值缓存以路径为键，一个条目保存该路径所有下标，按路径失效即删除条目。
// 属性缓存的键是 (epoch, 路径代数, 路径, 下标) 的 xxhash：
// 按路径失效只需递增该路径的代数，整体失效递增 epoch，旧条目自然不可达。
type cache struct {
	mu         sync.Mutex
	values     *expirable.LRU[string, map[int]cachedValue]
	props      *ristretto.Cache[uint64, cachedProps]
	gens       map[string]uint64
	epoch      uint64
	expiration time.Duration
	now        func() time.Time

	valueHits, valueMisses atomic.Uint64
	propHits, propMisses   atomic.Uint64
}

func newCache(valuesSize int, propsSize int64, expiration time.Duration) (*cache, error) {
	props, err := ristretto.NewCache(&ristretto.Config[uint64, cachedProps]{
		NumCounters:        propsSize * 10,
		MaxCost:            propsSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &cache{
		// TTL 为 0：不启动后台清理 goroutine，过期由 expire 属性按时间戳判断
		values:     expirable.NewLRU[string, map[int]cachedValue](valuesSize, nil, 0),
		props:      props,
		gens:       make(map[string]uint64),
		expiration: expiration,
		now:        time.Now,
	}, nil
}

// getValue 返回缓存值与是否已校验。ctxProps 不含 cache 时总是未命中；
// 含 expire 时超过 expiration 的条目视为未命中并删除。
func (c *cache) getValue(path string, index int, ctxProps xoption.Properties) (value any, validated, ok bool) {
	if !ctxProps.Has(xoption.PropCache) {
		return nil, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, found := c.values.Get(path)
	e, hit := entries[index]
	if found && hit && ctxProps.Has(xoption.PropExpire) && c.now().Sub(e.stamp) > c.expiration {
		next := maps.Clone(entries)
		delete(next, index)
		c.values.Add(path, next)
		hit = false
	}
	if !found || !hit {
		c.valueMisses.Add(1)
		return nil, false, false
	}
	c.valueHits.Add(1)
	return e.value, e.validated, true
}

func (c *cache) setValue(path string, index int, value any, validated bool, ctxProps xoption.Properties) {
	if !ctxProps.Has(xoption.PropCache) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, _ := c.values.Peek(path)
	next := maps.Clone(entries)
	if next == nil {
		next = make(map[int]cachedValue, 1)
	}
	next[index] = cachedValue{value: xoption.Copy(value), stamp: c.now(), validated: validated}
	c.values.Add(path, next)
}

func (c *cache) propsKey(path string, index int) uint64 {
	gen := c.gens[path]
	buf := make([]byte, 0, 24+len(path))
	buf = binary.LittleEndian.AppendUint64(buf, c.epoch)
	buf = binary.LittleEndian.AppendUint64(buf, gen)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(index)))
	buf = append(buf, path...)
	return xxhash.Sum64(buf)
}

func (c *cache) getProps(path string, index int, ctxProps xoption.Properties) (xoption.Properties, map[string]string, bool) {
	if !ctxProps.Has(xoption.PropCache) {
		return nil, nil, false
	}
	c.mu.Lock()
	key := c.propsKey(path, index)
	c.mu.Unlock()
	e, ok := c.props.Get(key)
	if !ok || e.path != path || e.index != index {
		c.propMisses.Add(1)
		return nil, nil, false
	}
	c.propHits.Add(1)
	return e.props.Clone(), e.help, true
}

func (c *cache) setProps(path string, index int, props xoption.Properties, help map[string]string, ctxProps xoption.Properties) {
	if !ctxProps.Has(xoption.PropCache) {
		return
	}
	c.mu.Lock()
	key := c.propsKey(path, index)
	c.mu.Unlock()
	c.props.Set(key, cachedProps{path: path, index: index, props: props.Clone(), help: help}, 1)
	c.props.Wait()
}

// invalidate 删除 path 所有下标的值与属性缓存。
func (c *cache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.Remove(path)
	c.gens[path]++
}

// reset 清空全部缓存。
func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.Purge()
	c.epoch++
	c.gens = make(map[string]uint64)
	c.props.Clear()
}

func (c *cache) setExpiration(d time.Duration) {
	c.mu.Lock()
	c.expiration = d
	c.mu.Unlock()
}

func (c *cache) getExpiration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiration
}

func (c *cache) stats() CacheStats {
	return CacheStats{
		ValueHits:   c.valueHits.Load(),
		ValueMisses: c.valueMisses.Load(),
		PropHits:    c.propHits.Load(),
		PropMisses:  c.propMisses.Load(),
	}
}

func (c *cache) close() {
	c.props.Close()
}
