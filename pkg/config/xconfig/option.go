package xconfig

import (
	"context"
	"fmt"
	"slices"

	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xmetrics"
)

// OptionRef 配置中一个选项或描述的访问句柄。
//
// 句柄只记录路径与下标，每次调用都重新解析并检查属性。
type OptionRef struct {
	c     *Config
	path  string
	index int
	// indexed 为 true 时调用方显式给出了下标，负数下标不能当作没有下标。
	indexed bool
}

// Option 返回 path 处选项的句柄。
func (c *Config) Option(path string) *OptionRef {
	return &OptionRef{c: c, path: path, index: xoption.NoIndex}
}

// OptionAt 返回 follower 在 index 处的句柄。index 必须非负。
func (c *Config) OptionAt(path string, index int) *OptionRef {
	return &OptionRef{c: c, path: path, index: index, indexed: true}
}

// ref 返回句柄，index 可以是 xoption.NoIndex。
func (c *Config) ref(path string, index int) *OptionRef {
	return &OptionRef{c: c, path: path, index: index}
}

// Path 返回句柄的路径。
func (o *OptionRef) Path() string { return o.path }

// Index 返回句柄的下标，没有下标时为 xoption.NoIndex。
func (o *OptionRef) Index() int { return o.index }

// bag 解析句柄。validate 为 true 时沿途检查描述的属性。
func (o *OptionRef) bag(ctx context.Context, validate bool) (*bag, error) {
	if err := o.c.checkOpen(); err != nil {
		return nil, err
	}
	cb, err := o.c.configBag(ctx)
	if err != nil {
		return nil, err
	}
	return o.bagWith(ctx, cb, validate)
}

func (o *OptionRef) bagWith(ctx context.Context, cb *configBag, validate bool) (*bag, error) {
	b, err := o.c.resolve(ctx, o.path, cb, validate)
	if err != nil {
		return nil, err
	}
	if o.index < 0 && (o.indexed || o.index != xoption.NoIndex) {
		return nil, fmt.Errorf("%w: invalid index %d for %q", xoption.ErrAPI, o.index, o.path)
	}
	if o.index != xoption.NoIndex {
		if !b.isFollower() {
			return nil, fmt.Errorf("%w: index must only be set with a follower option, not for %q", xoption.ErrAPI, o.path)
		}
		b = b.at(o.index)
	}
	if err := o.c.getProperties(ctx, b, true); err != nil {
		return nil, err
	}
	return b, nil
}

func (o *OptionRef) optionBag(ctx context.Context, needIndex bool) (*bag, error) {
	b, err := o.bag(ctx, true)
	if err != nil {
		return nil, err
	}
	if b.opt == nil {
		return nil, fmt.Errorf("%w: %q is an optiondescription", xoption.ErrAPI, o.path)
	}
	if needIndex && b.isFollower() && b.index == xoption.NoIndex {
		return nil, fmt.Errorf("%w: index must be set with the follower option %q", xoption.ErrAPI, o.path)
	}
	return b, nil
}

func (o *OptionRef) start(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, o.c.opts.observer, xmetrics.SpanOptions{
		Component: "xconfig",
		Operation: op,
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("path", o.path), xmetrics.Int("index", o.index)},
	})
}

// =============================================================================
// 值
// =============================================================================

// Get 读取值。follower 没有下标时返回整列，被属性拦截的元素为 *xoption.PropertiesOptionError。
func (o *OptionRef) Get(ctx context.Context) (v any, err error) {
	ctx, span := o.start(ctx, "get")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	b, err := o.optionBag(ctx, false)
	if err != nil {
		return nil, err
	}
	return o.c.getattr(ctx, b)
}

// Set 写入值。follower 必须带下标。
func (o *OptionRef) Set(ctx context.Context, value any) (err error) {
	ctx, span := o.start(ctx, "set")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	b, err := o.optionBag(ctx, true)
	if err != nil {
		return err
	}
	return o.c.setattr(ctx, b, value)
}

// Reset 删除值回到默认。follower 必须带下标。
func (o *OptionRef) Reset(ctx context.Context) (err error) {
	ctx, span := o.start(ctx, "reset")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	b, err := o.optionBag(ctx, true)
	if err != nil {
		return err
	}
	return o.c.delattr(ctx, b)
}

// Pop 删除 leader 的 index 项，follower 对应的值一起删除，之后的下标前移。
func (o *OptionRef) Pop(ctx context.Context, index int) (err error) {
	ctx, span := o.start(ctx, "pop")
	defer func() { span.End(xmetrics.Result{Err: err}) }()
	b, err := o.optionBag(ctx, false)
	if err != nil {
		return err
	}
	if b.link != nil {
		return fmt.Errorf("%w: can't delete a SymLinkOption", xoption.ErrConfig)
	}
	if !b.isLeader() {
		return fmt.Errorf("%w: pop is only allowed for a leader, not for %q", xoption.ErrAPI, o.path)
	}
	if err := o.c.validateProperties(ctx, b); err != nil {
		return err
	}
	return o.c.resetLeadership(ctx, b, index)
}

// Len 返回 leadership 的长度。
func (o *OptionRef) Len(ctx context.Context) (int, error) {
	b, err := o.optionBag(ctx, false)
	if err != nil {
		return 0, err
	}
	if b.opt.Leadership() == nil {
		return 0, fmt.Errorf("%w: %q is not in a leadership", xoption.ErrAPI, o.path)
	}
	if err := o.c.validateProperties(ctx, b); err != nil {
		return 0, err
	}
	return o.c.leadershipLength(ctx, b)
}

// Default 返回默认值（计算默认值或静态默认值），不读取保存的值。
func (o *OptionRef) Default(ctx context.Context) (any, error) {
	b, err := o.optionBag(ctx, false)
	if err != nil {
		return nil, err
	}
	if !b.isFollower() || b.index != xoption.NoIndex {
		return o.c.getDefaultValue(ctx, b)
	}
	length, err := o.c.leadershipLength(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, length)
	for i := range length {
		ib := b.at(i)
		if err := o.c.getProperties(ctx, ib, true); err != nil {
			return nil, err
		}
		v, err := o.c.getDefaultValue(ctx, ib)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// =============================================================================
// owner
// =============================================================================

// Owner 返回值的 owner；没有保存值时沿父配置查找，最终为 default。
func (o *OptionRef) Owner(ctx context.Context) (xoption.Owner, error) {
	b, err := o.optionBag(ctx, true)
	if err != nil {
		return "", err
	}
	return o.c.getOwner(ctx, b, true, false)
}

// SetOwner 修改已保存值的 owner。
func (o *OptionRef) SetOwner(ctx context.Context, owner xoption.Owner) error {
	b, err := o.optionBag(ctx, true)
	if err != nil {
		return err
	}
	if err := o.c.validateProperties(ctx, b); err != nil {
		return err
	}
	return o.c.setOwner(ctx, b, owner)
}

// IsDefault 判断值是否为默认值。
func (o *OptionRef) IsDefault(ctx context.Context) (bool, error) {
	b, err := o.optionBag(ctx, true)
	if err != nil {
		return false, err
	}
	owner, err := o.c.getOwner(ctx, b, true, true)
	if err != nil {
		return false, err
	}
	return owner == xoption.OwnerDefault, nil
}

// =============================================================================
// 选项属性
// =============================================================================

// Properties 返回选项的有效属性（已计算、已减去 permissive）。
func (o *OptionRef) Properties(ctx context.Context) (xoption.Properties, error) {
	b, err := o.bag(ctx, false)
	if err != nil {
		return nil, err
	}
	return b.props.Clone(), nil
}

// AddProperty 为选项加入属性。
func (o *OptionRef) AddProperty(ctx context.Context, prop string) error {
	if forbiddenSetProperties.Has(prop) {
		return fmt.Errorf("%w: cannot add this property: %q", xoption.ErrConfig, prop)
	}
	return o.updateProperties(ctx, func(p xoption.Properties) { p.Add(prop) })
}

// PopProperty 删除选项的属性。
func (o *OptionRef) PopProperty(ctx context.Context, prop string) error {
	return o.updateProperties(ctx, func(p xoption.Properties) { p.Delete(prop) })
}

func (o *OptionRef) updateProperties(ctx context.Context, fn func(xoption.Properties)) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	props, err := o.c.storedProperties(ctx, b.node, b.path, b.index)
	if err != nil {
		return err
	}
	fn(props)
	return o.c.setOptionProperties(ctx, b, props)
}

// ResetProperties 删除为选项保存的属性，回到定义时的属性。
func (o *OptionRef) ResetProperties(ctx context.Context) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	if b.link != nil {
		return fmt.Errorf("%w: can't reset properties to the symlinkoption %q", xoption.ErrConfig, b.link.Name())
	}
	if err := o.c.st.Properties().Delete(ctx, b.path, b.index); err != nil {
		return err
	}
	o.c.resetOptionCache(ctx, b)
	return nil
}

// Permissives 返回为选项保存的 permissive。
func (o *OptionRef) Permissives(ctx context.Context) (xoption.Properties, error) {
	b, err := o.bag(ctx, false)
	if err != nil {
		return nil, err
	}
	perms, _, err := o.c.st.Permissives().Get(ctx, b.path, b.index)
	if err != nil {
		return nil, err
	}
	return xoption.NewProperties(perms...), nil
}

// SetPermissives 替换选项的 permissive。
func (o *OptionRef) SetPermissives(ctx context.Context, perms ...string) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	return o.c.setOptionPermissives(ctx, b, xoption.NewProperties(perms...))
}

// ResetPermissives 删除选项的 permissive。
func (o *OptionRef) ResetPermissives(ctx context.Context) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	if b.link != nil {
		return fmt.Errorf("%w: can't reset permissives to the symlinkoption %q", xoption.ErrConfig, b.link.Name())
	}
	if err := o.c.st.Permissives().Delete(ctx, b.path, b.index); err != nil {
		return err
	}
	o.c.resetOptionCache(ctx, b)
	return nil
}

// =============================================================================
// 选项信息
// =============================================================================

// Information 返回选项信息：先查会话中保存的，再查定义时的，都没有时返回 def。
func (o *OptionRef) Information(ctx context.Context, key string, def any) (any, error) {
	b, err := o.bag(ctx, false)
	if err != nil {
		return nil, err
	}
	v, ok, err := o.c.optionInformation(ctx, b.node, b.path, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// SetInformation 在会话中保存选项信息。
func (o *OptionRef) SetInformation(ctx context.Context, key string, value any) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	if err := o.c.st.Information().SetInformation(ctx, b.path, key, value); err != nil {
		return err
	}
	o.c.resetAllCache()
	return nil
}

// DelInformation 删除会话中保存的选项信息。
func (o *OptionRef) DelInformation(ctx context.Context, key string) error {
	b, err := o.bag(ctx, false)
	if err != nil {
		return err
	}
	ok, err := o.c.st.Information().DelInformation(ctx, b.path, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrInformationNotFound, key)
	}
	o.c.resetAllCache()
	return nil
}

// ListInformation 返回选项信息的键（会话中保存的与定义时的）。
func (o *OptionRef) ListInformation(ctx context.Context) ([]string, error) {
	b, err := o.bag(ctx, false)
	if err != nil {
		return nil, err
	}
	keys, err := o.c.st.Information().ListInformation(ctx, b.path)
	if err != nil {
		return nil, err
	}
	for _, k := range b.node.InformationKeys() {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// =============================================================================
// Config 快捷方法
// =============================================================================

// Get 读取 path 的值。
func (c *Config) Get(ctx context.Context, path string) (any, error) {
	return c.Option(path).Get(ctx)
}

// GetAt 读取 follower 在 index 处的值。
func (c *Config) GetAt(ctx context.Context, path string, index int) (any, error) {
	return c.OptionAt(path, index).Get(ctx)
}

// Set 写入 path 的值。
func (c *Config) Set(ctx context.Context, path string, value any) error {
	return c.Option(path).Set(ctx, value)
}

// SetAt 写入 follower 在 index 处的值。
func (c *Config) SetAt(ctx context.Context, path string, index int, value any) error {
	return c.OptionAt(path, index).Set(ctx, value)
}

// Reset 重置 path 的值。
func (c *Config) Reset(ctx context.Context, path string) error {
	return c.Option(path).Reset(ctx)
}

// ResetAt 重置 follower 在 index 处的值。
func (c *Config) ResetAt(ctx context.Context, path string, index int) error {
	return c.OptionAt(path, index).Reset(ctx)
}

// Pop 删除 leader 的 index 项。
func (c *Config) Pop(ctx context.Context, path string, index int) error {
	return c.Option(path).Pop(ctx, index)
}

// Len 返回 path 所在 leadership 的长度。
func (c *Config) Len(ctx context.Context, path string) (int, error) {
	return c.Option(path).Len(ctx)
}

// Owner 返回 path 的 owner。
func (c *Config) Owner(ctx context.Context, path string) (xoption.Owner, error) {
	return c.Option(path).Owner(ctx)
}

// OwnerAt 返回 follower 在 index 处的 owner。
func (c *Config) OwnerAt(ctx context.Context, path string, index int) (xoption.Owner, error) {
	return c.OptionAt(path, index).Owner(ctx)
}

// SetOwner 修改 path 的 owner。
func (c *Config) SetOwner(ctx context.Context, path string, owner xoption.Owner) error {
	return c.Option(path).SetOwner(ctx, owner)
}

// SetOwnerAt 修改 follower 在 index 处的 owner。
func (c *Config) SetOwnerAt(ctx context.Context, path string, index int, owner xoption.Owner) error {
	return c.OptionAt(path, index).SetOwner(ctx, owner)
}

// IsDefault 判断 path 是否为默认值。
func (c *Config) IsDefault(ctx context.Context, path string) (bool, error) {
	return c.Option(path).IsDefault(ctx)
}
