package xmetrics

// Attr 观测属性，Value 支持基本类型、[]string、time.Duration 与 fmt.Stringer，
// 其他类型按 fmt.Sprint 记录。
type Attr struct {
	Key   string
	Value any
}

func String(key, value string) Attr { return Attr{key, value} }

func Bool(key string, value bool) Attr { return Attr{key, value} }

func Int(key string, value int) Attr { return Attr{key, value} }

func Int64(key string, value int64) Attr { return Attr{key, value} }

func Strings(key string, value []string) Attr { return Attr{key, value} }

func Any(key string, value any) Attr { return Attr{key, value} }
