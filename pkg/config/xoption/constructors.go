package xoption

// 常用类型的快捷构造。

func NewString(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, String{}, opts...)
}

func NewPassword(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Password{}, opts...)
}

func NewInt(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Int{}, opts...)
}

func NewFloat(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Float{}, opts...)
}

func NewBool(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Bool{}, opts...)
}

// NewChoice 创建静态候选值的选择项。
func NewChoice(name, doc string, values []any, opts ...Opt) (*Option, error) {
	return New(name, doc, &Choice{Values: values}, opts...)
}

// NewCalcChoice 创建候选值由计算得出的选择项。
func NewCalcChoice(name, doc string, values *Calculation, opts ...Opt) (*Option, error) {
	return New(name, doc, &Choice{ValuesCalc: values}, opts...)
}

func NewIP(name, doc string, cidr bool, opts ...Opt) (*Option, error) {
	return New(name, doc, IP{CIDR: cidr}, opts...)
}

func NewNetwork(name, doc string, cidr bool, opts ...Opt) (*Option, error) {
	return New(name, doc, Network{CIDR: cidr}, opts...)
}

func NewNetmask(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Netmask{}, opts...)
}

func NewBroadcast(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Broadcast{}, opts...)
}

// NewPort 使用 DefaultPort 的端口段。
func NewPort(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, DefaultPort(), opts...)
}

func NewDomainname(name, doc string, kind DomainKind, opts ...Opt) (*Option, error) {
	return New(name, doc, Domainname{Kind: kind}, opts...)
}

func NewURL(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, URL{}, opts...)
}

func NewEmail(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Email{}, opts...)
}

func NewFilename(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Filename{}, opts...)
}

func NewUsername(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Username{}, opts...)
}

func NewMACAddress(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, MACAddress{}, opts...)
}

func NewDate(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Date{}, opts...)
}

func NewPermissions(name, doc string, opts ...Opt) (*Option, error) {
	return New(name, doc, Permissions{}, opts...)
}

// NewRegexp 创建按 pattern 匹配的字符串选项，display 为错误信息中的类型名。
func NewRegexp(name, doc, display, pattern string, opts ...Opt) (*Option, error) {
	t, err := NewRegexpType(display, pattern)
	if err != nil {
		return nil, err
	}
	return New(name, doc, t, opts...)
}

// Must 在构造失败时 panic，用于静态声明的选项树。
func Must[T Node](n T, err error) T {
	if err != nil {
		panic(err)
	}
	return n
}
