package xoption

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Type 是叶子选项的值类型。
type Type interface {
	// Name 错误信息中使用的类型名。
	Name() string
	// Validate 检查单个元素，返回的错误只包含原因，由 Option 包装。
	Validate(v any) error
}

// SecondLevelValidator 由带语义检查的类型实现，
// warningsOnly 只影响措辞（should / must）。
type SecondLevelValidator interface {
	SecondLevel(v any, warningsOnly bool) error
}

// Coercer 由需要把存储解码值归一的类型实现。
type Coercer interface {
	Coerce(v any) any
}

// 编译期接口实现检查
var (
	_ Type                 = String{}
	_ Type                 = Password{}
	_ Type                 = Int{}
	_ Coercer              = Int{}
	_ Type                 = Float{}
	_ Coercer              = Float{}
	_ Type                 = Bool{}
	_ Type                 = (*Choice)(nil)
	_ Type                 = Port{}
	_ Coercer              = Port{}
	_ Type                 = Domainname{}
	_ SecondLevelValidator = Domainname{}
	_ Type                 = URL{}
	_ Type                 = Email{}
	_ Type                 = Filename{}
	_ Type                 = Username{}
	_ Type                 = MACAddress{}
	_ Type                 = Date{}
	_ Type                 = Permissions{}
	_ Coercer              = Permissions{}
	_ Type                 = (*Regexp)(nil)
)

var errEmpty = errors.New("")

func mustString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errEmpty
	}
	return s, nil
}

// =============================================================================
// 基础类型
// =============================================================================

// String 字符串。
type String struct{}

func (String) Name() string { return "string" }

func (String) Validate(v any) error {
	_, err := mustString(v)
	return err
}

// Password 字符串，仅类型名不同。
type Password struct{}

func (Password) Name() string { return "password" }

func (Password) Validate(v any) error {
	_, err := mustString(v)
	return err
}

// Int 整数，Min / Max 为 nil 表示不限制。
type Int struct {
	Min *int
	Max *int
}

func (Int) Name() string { return "integer" }

func (t Int) Validate(v any) error {
	n, ok := toInt(v)
	if !ok {
		return errEmpty
	}
	if t.Min != nil && n < *t.Min {
		return fmt.Errorf(`value must be equal or greater than "%d"`, *t.Min)
	}
	if t.Max != nil && n > *t.Max {
		return fmt.Errorf(`value must be equal or less than "%d"`, *t.Max)
	}
	return nil
}

func (Int) Coerce(v any) any {
	if n, ok := toInt(v); ok {
		return n
	}
	return v
}

// toInt 接受所有整数类型以及没有小数部分的 float64 / json.Number。
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case bool:
		return 0, false
	case int:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		return 0, false
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	if f, ok := asFloat(v); ok {
		return int(f), true
	}
	return 0, false
}

// Float 浮点数，整数会被接受并转换。
type Float struct{}

func (Float) Name() string { return "float" }

func (Float) Validate(v any) error {
	if _, ok := v.(bool); ok {
		return errEmpty
	}
	if _, ok := asFloat(v); !ok {
		return errEmpty
	}
	return nil
}

func (Float) Coerce(v any) any {
	if f, ok := asFloat(v); ok {
		return f
	}
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// Bool 布尔值。
type Bool struct{}

func (Bool) Name() string { return "boolean" }

func (Bool) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return errEmpty
	}
	return nil
}

// =============================================================================
// Choice
// =============================================================================

// Choice 取值限定在 Values 中。ValuesCalc 非空时候选值由配置计算，
// 静态校验跳过，由配置层在读写时检查。
type Choice struct {
	Values     []any
	ValuesCalc *Calculation
}

func (*Choice) Name() string { return "choice" }

func (c *Choice) Validate(v any) error {
	if c.ValuesCalc != nil {
		return nil
	}
	return CheckChoice(v, c.Values)
}

// CheckChoice 检查 v 是否在 values 中。
func CheckChoice(v any, values []any) error {
	for _, c := range values {
		if Equal(c, v) {
			return nil
		}
	}
	if len(values) == 1 {
		return fmt.Errorf("only %q is allowed", fmt.Sprint(values[0]))
	}
	items := make([]string, len(values))
	for i, c := range values {
		items[i] = fmt.Sprint(c)
	}
	return fmt.Errorf("only %s are allowed", DisplayList(items, "and", true))
}

// =============================================================================
// Port
// =============================================================================

// 端口段边界。
const (
	portProtocolMax   = 0
	portWellKnownMax  = 1023
	portRegisteredMax = 49151
	portPrivateMax    = 65535
)

// Port 端口号或端口范围（"1000:2000"），值为整数或数字字符串。
type Port struct {
	AllowRange      bool
	AllowZero       bool
	AllowWellKnown  bool
	AllowRegistered bool
	AllowPrivate    bool
	AllowProtocol   bool
}

// DefaultPort 允许 1-49151。
func DefaultPort() Port {
	return Port{AllowWellKnown: true, AllowRegistered: true}
}

func (Port) Name() string { return "port" }

func (p Port) bounds() (int, int) {
	type seg struct {
		allowed  bool
		min, max int
	}
	segs := []seg{
		{p.AllowZero || p.AllowProtocol, 0, portProtocolMax},
		{p.AllowWellKnown, 1, portWellKnownMax},
		{p.AllowRegistered, portWellKnownMax + 1, portRegisteredMax},
		{p.AllowPrivate, portRegisteredMax + 1, portPrivateMax},
	}
	lo, hi := -1, -1
	for _, s := range segs {
		if !s.allowed {
			continue
		}
		if lo == -1 {
			lo = s.min
		}
		hi = s.max
	}
	return lo, hi
}

func (p Port) Validate(v any) error {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		n, ok := toInt(v)
		if !ok {
			return errEmpty
		}
		s = strconv.Itoa(n)
	}
	parts := []string{s}
	if p.AllowRange && strings.Contains(s, ":") {
		parts = strings.Split(s, ":")
		if len(parts) != 2 {
			return errors.New("range must have two values only")
		}
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA == nil && errB == nil && a >= b {
			return errors.New("first port in range must be smaller than the second one")
		}
	}
	lo, hi := p.bounds()
	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return errEmpty
		}
		n, err := strconv.Atoi(part)
		if err != nil || lo == -1 || n < lo || n > hi {
			return fmt.Errorf("must be an integer between %d and %d", max(lo, 0), max(hi, 0))
		}
	}
	return nil
}

func (Port) Coerce(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return int(f)
	}
	return v
}

// =============================================================================
// Domainname / URL / Email
// =============================================================================

// DomainKind 域名校验的种类。
type DomainKind string

const (
	DomainName DomainKind = "domainname"
	HostName   DomainKind = "hostname"
	NetBIOS    DomainKind = "netbios"
)

// Domainname 域名、主机名或 NetBIOS 名。
type Domainname struct {
	Kind             DomainKind
	AllowIP          bool
	AllowCIDRNetwork bool
	AllowWithoutDot  bool
}

func (Domainname) Name() string { return "domain name" }

func (d Domainname) kind() DomainKind {
	if d.Kind == "" {
		return DomainName
	}
	return d.Kind
}

func (d Domainname) maxLen() int {
	switch d.kind() {
	case NetBIOS:
		return 15
	case HostName:
		return 63
	default:
		return 255
	}
}

var (
	labelRegexp   = regexp.MustCompile(`^(?:[a-z0-9]|[a-z0-9][a-z0-9-]*[a-z0-9])$`)
	netbiosRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

func (d Domainname) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if d.AllowIP {
		if _, err := netip.ParseAddr(s); err == nil {
			return nil
		}
	}
	if d.AllowCIDRNetwork {
		if pfx, err := netip.ParsePrefix(s); err == nil && pfx.Masked() == pfx {
			return nil
		}
	}
	if looksLikeIP(s) {
		return errors.New("must not be an IP")
	}
	if len(s) > d.maxLen() {
		return fmt.Errorf("invalid length (max %d)", d.maxLen())
	}
	lower := strings.ToLower(s)
	switch d.kind() {
	case NetBIOS:
		if !netbiosRegexp.MatchString(lower) {
			return errors.New("must start with lowercase characters followed by lowercase characters, number and \"-\"")
		}
	case HostName:
		if !labelRegexp.MatchString(lower) {
			return errors.New(`allowed characters are: a-z, 0-9 and "-"`)
		}
	default:
		if !d.AllowWithoutDot && !strings.Contains(s, ".") {
			return errors.New("must have dot")
		}
		for _, label := range strings.Split(lower, ".") {
			if len(label) > 63 {
				return errors.New("invalid length (max 63)")
			}
			if !labelRegexp.MatchString(label) {
				return errors.New(`allowed characters are: a-z, 0-9, "-" and "."`)
			}
		}
	}
	return nil
}

// SecondLevel 大写字母只在二级校验中提示。
func (d Domainname) SecondLevel(v any, _ bool) error {
	s, ok := v.(string)
	if !ok || strings.ToLower(s) == s {
		return nil
	}
	return errors.New("some characters are uppercase")
}

func looksLikeIP(s string) bool {
	host, _, _ := strings.Cut(s, "/")
	_, err := netip.ParseAddr(host)
	return err == nil
}

// URL http / https 地址。
type URL struct {
	AllowIP         bool
	AllowWithoutDot bool
}

func (URL) Name() string { return "URL" }

var urlPathRegexp = regexp.MustCompile(`^[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]*$`)

func (u URL) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	var rest string
	switch {
	case strings.HasPrefix(s, "http://"):
		rest = strings.TrimPrefix(s, "http://")
	case strings.HasPrefix(s, "https://"):
		rest = strings.TrimPrefix(s, "https://")
	default:
		return errors.New("must start with http:// or https://")
	}
	hostport, path, hasPath := strings.Cut(rest, "/")
	host, port, hasPort := strings.Cut(hostport, ":")
	if hasPort {
		p := Port{AllowWellKnown: true, AllowRegistered: true, AllowPrivate: true}
		if err := p.Validate(port); err != nil {
			return fmt.Errorf("port must be an between 0 and 65536")
		}
	}
	dom := Domainname{AllowIP: u.AllowIP, AllowWithoutDot: u.AllowWithoutDot}
	if err := dom.Validate(host); err != nil {
		return err
	}
	if hasPath && !urlPathRegexp.MatchString(path) {
		return errors.New("must ends with a valid resource name")
	}
	return nil
}

// Email 邮件地址。
type Email struct{}

func (Email) Name() string { return "email address" }

var emailUserRegexp = regexp.MustCompile(`^[\w!#$%&'*+\-/=?^` + "`" + `{|}~.]+$`)

func (Email) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	user, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return errors.New("must contains one @")
	}
	if !emailUserRegexp.MatchString(user) {
		return errors.New("invalid username in email address")
	}
	return Domainname{}.Validate(domain)
}

// =============================================================================
// 模式类型
// =============================================================================

// Filename 绝对路径。
type Filename struct{}

func (Filename) Name() string { return "file name" }

var filenameRegexp = regexp.MustCompile(`^[a-zA-Z0-9\-._~/+]+$`)

func (Filename) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(s, "/") {
		return errors.New(`must starts with "/"`)
	}
	if !filenameRegexp.MatchString(s) {
		return errEmpty
	}
	return nil
}

// Username unix 用户名。
type Username struct{}

func (Username) Name() string { return "unix username" }

var usernameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,30}[$a-z0-9_-]?$`)

func (Username) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !usernameRegexp.MatchString(s) {
		return errEmpty
	}
	return nil
}

// MACAddress 以冒号分隔的 MAC 地址。
type MACAddress struct{}

func (MACAddress) Name() string { return "mac address" }

var macRegexp = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

func (MACAddress) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !macRegexp.MatchString(s) {
		return errEmpty
	}
	return nil
}

// Date YYYY-MM-DD。
type Date struct{}

func (Date) Name() string { return "date" }

func (Date) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return errEmpty
	}
	return nil
}

// Permissions unix 权限，例如 644 或 "0755"。
type Permissions struct{}

func (Permissions) Name() string { return "unix file permissions" }

var permRegexp = regexp.MustCompile(`^[0-7]{3,4}$`)

func (Permissions) Validate(v any) error {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		n, ok := toInt(v)
		if !ok {
			return errEmpty
		}
		s = strconv.Itoa(n)
	}
	if !permRegexp.MatchString(s) {
		return errors.New("only 3 or 4 octal digits are allowed")
	}
	return nil
}

func (Permissions) Coerce(v any) any {
	if n, ok := toInt(v); ok {
		return n
	}
	return v
}

// Regexp 按正则匹配的字符串类型。
type Regexp struct {
	Display string
	Pattern *regexp.Regexp
}

// NewRegexpType 编译 pattern 并返回类型。
func NewRegexpType(display, pattern string) (*Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", ErrConfig, pattern, err)
	}
	return &Regexp{Display: display, Pattern: re}, nil
}

func (r *Regexp) Name() string {
	if r.Display == "" {
		return "regexp"
	}
	return r.Display
}

func (r *Regexp) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if r.Pattern != nil && !r.Pattern.MatchString(s) {
		return errEmpty
	}
	return nil
}
