package xstore

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// 会话内的键布局。
const (
	keyMeta           = "meta"
	prefixValue       = "v/"
	prefixProperty    = "p/"
	prefixPermissive  = "pm/"
	prefixInformation = "i/"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// ValidSessionID 检查会话 ID 能否作为驱动中的键前缀。
func ValidSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return nil
}

type sessionMeta struct {
	Persistent bool      `json:"persistent"`
	Created    time.Time `json:"created"`
}

// session 基于 Driver 的 Storage 实现。
// 每类记录一把锁，保证同进程内读-改-写不交错。
type session struct {
	id         string
	persistent bool
	driver     Driver
	release    func(id string)
	closed     atomic.Bool

	values      *valueStore
	properties  *propertyStore
	permissives *propertyStore
	information *infoStore
}

var _ Storage = (*session)(nil)

func newSession(id string, persistent bool, driver Driver, release func(string)) *session {
	s := &session{id: id, persistent: persistent, driver: driver, release: release}
	s.values = &valueStore{s: s}
	s.properties = &propertyStore{s: s, prefix: prefixProperty}
	s.permissives = &propertyStore{s: s, prefix: prefixPermissive}
	s.information = &infoStore{s: s}
	return s
}

func (s *session) SessionID() string { return s.id }
func (s *session) Persistent() bool { return s.persistent }
func (s *session) Values() ValueStore { return s.values }
func (s *session) Properties() PropertyStore { return s.properties }
func (s *session) Permissives() PropertyStore { return s.permissives }
func (s *session) Information() InformationStore { return s.information }

func (s *session) check() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: session %q", ErrClosed, s.id)
	}
	return nil
}

func (s *session) load(ctx context.Context, key string, v any) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	data, ok, err := s.driver.Get(ctx, s.id, key)
	if err != nil || !ok {
		return false, err
	}
	if err := decode(data, v); err != nil {
		return false, fmt.Errorf("%w (session %q, key %q)", err, s.id, key)
	}
	return true, nil
}

func (s *session) store(ctx context.Context, key string, v any) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	return s.driver.Put(ctx, s.id, key, data)
}

func (s *session) remove(ctx context.Context, key string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.driver.Delete(ctx, s.id, key)
}

func (s *session) scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.driver.Scan(ctx, s.id, prefix)
}

// replace 让 prefix 下的记录与 records 完全一致。
func (s *session) replace(ctx context.Context, prefix string, records map[string]any) error {
	existing, err := s.scan(ctx, prefix)
	if err != nil {
		return err
	}
	for key := range existing {
		if _, keep := records[key]; keep {
			continue
		}
		if err := s.remove(ctx, key); err != nil {
			return err
		}
	}
	for key, rec := range records {
		if err := s.store(ctx, key, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) Exportation(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Session: s.id}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Values, err = s.values.Exportation(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Properties, err = s.properties.Exportation(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Permissives, err = s.permissives.Exportation(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Informations, err = s.information.Exportation(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *session) Importation(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		snap = &Snapshot{}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.values.Importation(gctx, snap.Values) })
	g.Go(func() error { return s.properties.Importation(gctx, snap.Properties) })
	g.Go(func() error { return s.permissives.Importation(gctx, snap.Permissives) })
	g.Go(func() error { return s.information.Importation(gctx, snap.Informations) })
	return g.Wait()
}

func (s *session) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if !s.persistent {
		err = s.driver.DropSession(ctx, s.id)
	}
	if s.release != nil {
		s.release(s.id)
	}
	return err
}

// =============================================================================
// 值
// =============================================================================

type valueRecord map[int]ValueEntry

type valueStore struct {
	s  *session
	mu sync.Mutex
}

func (v *valueStore) record(ctx context.Context, path string) (valueRecord, error) {
	rec := valueRecord{}
	ok, err := v.s.load(ctx, prefixValue+path, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return valueRecord{}, nil
	}
	for idx, e := range rec {
		e.Value = normalizeNumbers(e.Value)
		rec[idx] = e
	}
	return rec, nil
}

func (v *valueStore) save(ctx context.Context, path string, rec valueRecord) error {
	if len(rec) == 0 {
		return v.s.remove(ctx, prefixValue+path)
	}
	return v.s.store(ctx, prefixValue+path, rec)
}

func (v *valueStore) SetValue(ctx context.Context, path string, index int, value any, owner xoption.Owner) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, err := v.record(ctx, path)
	if err != nil {
		return err
	}
	rec[index] = ValueEntry{Value: value, Owner: owner}
	return v.save(ctx, path, rec)
}

func (v *valueStore) HasValue(ctx context.Context, path string, index int) (bool, error) {
	rec, err := v.record(ctx, path)
	if err != nil {
		return false, err
	}
	if index == xoption.NoIndex {
		return len(rec) > 0, nil
	}
	_, ok := rec[index]
	return ok, nil
}

func (v *valueStore) ResetValue(ctx context.Context, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.s.remove(ctx, prefixValue+path)
}

func (v *valueStore) ResetValueIndex(ctx context.Context, path string, index int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, err := v.record(ctx, path)
	if err != nil {
		return err
	}
	if _, ok := rec[index]; !ok {
		return nil
	}
	delete(rec, index)
	return v.save(ctx, path, rec)
}

func (v *valueStore) ReduceIndex(ctx context.Context, path string, index int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, err := v.record(ctx, path)
	if err != nil {
		return err
	}
	out := make(valueRecord, len(rec))
	for idx, e := range rec {
		switch {
		case idx == xoption.NoIndex || idx < index:
			out[idx] = e
		case idx > index:
			out[idx-1] = e
		}
	}
	return v.save(ctx, path, out)
}

func (v *valueStore) Owner(ctx context.Context, path string, index int) (xoption.Owner, bool, error) {
	rec, err := v.record(ctx, path)
	if err != nil {
		return "", false, err
	}
	e, ok := rec[index]
	return e.Owner, ok, nil
}

func (v *valueStore) Value(ctx context.Context, path string, index int) (any, xoption.Owner, bool, error) {
	rec, err := v.record(ctx, path)
	if err != nil {
		return nil, "", false, err
	}
	e, ok := rec[index]
	return e.Value, e.Owner, ok, nil
}

func (v *valueStore) MaxLength(ctx context.Context, path string) (int, error) {
	rec, err := v.record(ctx, path)
	if err != nil {
		return 0, err
	}
	length := 0
	for idx := range rec {
		if idx >= length {
			length = idx + 1
		}
	}
	return length, nil
}

func (v *valueStore) Exportation(ctx context.Context) (ValueSnapshot, error) {
	raw, err := v.s.scan(ctx, prefixValue)
	if err != nil {
		return nil, err
	}
	snap := make(ValueSnapshot, len(raw))
	for key, data := range raw {
		rec := valueRecord{}
		if err := decode(data, &rec); err != nil {
			return nil, fmt.Errorf("%w (key %q)", err, key)
		}
		snap[strings.TrimPrefix(key, prefixValue)] = rec
	}
	snap.normalize()
	return snap, nil
}

func (v *valueStore) Importation(ctx context.Context, snap ValueSnapshot) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	records := make(map[string]any, len(snap))
	for path, entries := range snap {
		if len(entries) > 0 {
			records[prefixValue+path] = valueRecord(entries)
		}
	}
	return v.s.replace(ctx, prefixValue, records)
}

// =============================================================================
// 属性与 permissive
// =============================================================================

type propertyRecord map[int][]string

type propertyStore struct {
	s      *session
	prefix string
	mu     sync.Mutex
}

func (p *propertyStore) record(ctx context.Context, path string) (propertyRecord, error) {
	rec := propertyRecord{}
	ok, err := p.s.load(ctx, p.prefix+path, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return propertyRecord{}, nil
	}
	return rec, nil
}

func (p *propertyStore) Set(ctx context.Context, path string, index int, props []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, err := p.record(ctx, path)
	if err != nil {
		return err
	}
	sorted := slices.Clone(props)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)
	rec[index] = slices.Compact(sorted)
	return p.s.store(ctx, p.prefix+path, rec)
}

func (p *propertyStore) Get(ctx context.Context, path string, index int) ([]string, bool, error) {
	rec, err := p.record(ctx, path)
	if err != nil {
		return nil, false, err
	}
	props, ok := rec[index]
	return props, ok, nil
}

func (p *propertyStore) Delete(ctx context.Context, path string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, err := p.record(ctx, path)
	if err != nil {
		return err
	}
	if _, ok := rec[index]; !ok {
		return nil
	}
	delete(rec, index)
	if len(rec) == 0 {
		return p.s.remove(ctx, p.prefix+path)
	}
	return p.s.store(ctx, p.prefix+path, rec)
}

func (p *propertyStore) Exportation(ctx context.Context) (PropertySnapshot, error) {
	raw, err := p.s.scan(ctx, p.prefix)
	if err != nil {
		return nil, err
	}
	snap := make(PropertySnapshot, len(raw))
	for key, data := range raw {
		rec := propertyRecord{}
		if err := decode(data, &rec); err != nil {
			return nil, fmt.Errorf("%w (key %q)", err, key)
		}
		snap[strings.TrimPrefix(key, p.prefix)] = rec
	}
	return snap, nil
}

func (p *propertyStore) Importation(ctx context.Context, snap PropertySnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	records := make(map[string]any, len(snap))
	for path, entries := range snap {
		if len(entries) > 0 {
			records[p.prefix+path] = propertyRecord(entries)
		}
	}
	return p.s.replace(ctx, p.prefix, records)
}

// =============================================================================
// 信息
// =============================================================================

type infoStore struct {
	s  *session
	mu sync.Mutex
}

func (i *infoStore) record(ctx context.Context, path string) (map[string]any, error) {
	rec := map[string]any{}
	ok, err := i.s.load(ctx, prefixInformation+path, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	for k, v := range rec {
		rec[k] = normalizeNumbers(v)
	}
	return rec, nil
}

func (i *infoStore) SetInformation(ctx context.Context, path, key string, value any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, err := i.record(ctx, path)
	if err != nil {
		return err
	}
	rec[key] = value
	return i.s.store(ctx, prefixInformation+path, rec)
}

func (i *infoStore) Information(ctx context.Context, path, key string) (any, bool, error) {
	rec, err := i.record(ctx, path)
	if err != nil {
		return nil, false, err
	}
	v, ok := rec[key]
	return v, ok, nil
}

func (i *infoStore) DelInformation(ctx context.Context, path, key string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, err := i.record(ctx, path)
	if err != nil {
		return false, err
	}
	if _, ok := rec[key]; !ok {
		return false, nil
	}
	delete(rec, key)
	if len(rec) == 0 {
		return true, i.s.remove(ctx, prefixInformation+path)
	}
	return true, i.s.store(ctx, prefixInformation+path, rec)
}

func (i *infoStore) ListInformation(ctx context.Context, path string) ([]string, error) {
	rec, err := i.record(ctx, path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (i *infoStore) Exportation(ctx context.Context) (InformationSnapshot, error) {
	raw, err := i.s.scan(ctx, prefixInformation)
	if err != nil {
		return nil, err
	}
	snap := make(InformationSnapshot, len(raw))
	for key, data := range raw {
		rec := map[string]any{}
		if err := decode(data, &rec); err != nil {
			return nil, fmt.Errorf("%w (key %q)", err, key)
		}
		snap[strings.TrimPrefix(key, prefixInformation)] = rec
	}
	snap.normalize()
	return snap, nil
}

func (i *infoStore) Importation(ctx context.Context, snap InformationSnapshot) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	records := make(map[string]any, len(snap))
	for path, items := range snap {
		if len(items) > 0 {
			records[prefixInformation+path] = items
		}
	}
	return i.s.replace(ctx, prefixInformation, records)
}
