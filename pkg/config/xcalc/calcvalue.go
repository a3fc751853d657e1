package xcalc

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// CalcValue 是通用的值计算函数，可作为默认值、属性或后缀计算使用。
//
// args 为候选值，kwargs 支持：
//   - multi：返回列表
//   - default / default_N：条件不满足或没有值时的默认值
//   - condition / condition_N、expected / expected_N、reverse_condition / reverse_condition_N、
//     condition_operator（AND / OR）、no_condition_is_invalid：条件判断
//   - allow_none：multi 时允许结果中出现 nil
//   - remove_duplicate_value：multi 时去重
//   - join：用分隔符拼接所有值
//   - min_args_len：值少于此数量时使用默认值
//   - operator：add / mul / div / sub
//   - index：follower 下标，结果为列表时取该下标
func CalcValue(_ context.Context, args []any, kwargs map[string]any) (any, error) {
	c := &calcValue{args: args, kwargs: kwargs}
	return c.run()
}

// Value 创建以 CalcValue 为函数的计算。
func Value(params xoption.Params) *xoption.Calculation {
	return xoption.NewCalculation("calc_value", CalcValue, params)
}

type calcValue struct {
	args   []any
	kwargs map[string]any
}

func (c *calcValue) kw(name string) (any, bool) {
	v, ok := c.kwargs[name]
	if !ok {
		return nil, false
	}
	return v, true
}

func (c *calcValue) kwBool(name string) bool {
	v, _ := c.kw(name)
	b, _ := argValue(v).(bool)
	return b
}

func (c *calcValue) kwString(name string) (string, bool) {
	v, ok := c.kw(name)
	if !ok {
		return "", false
	}
	s, ok := argValue(v).(string)
	return s, ok
}

func (c *calcValue) kwInt(name string) (int, bool) {
	v, ok := c.kw(name)
	if !ok {
		return 0, false
	}
	n, ok := toNumber(argValue(v))
	if !ok {
		return 0, false
	}
	return int(n.f), true
}

func (c *calcValue) run() (any, error) {
	value, err := c.value()
	if err != nil {
		return nil, err
	}
	if !c.kwBool("multi") {
		return c.single(value)
	}
	if slices.Contains(value, nil) && !c.kwBool("allow_none") {
		return []any{}, nil
	}
	if c.kwBool("remove_duplicate_value") {
		out := make([]any, 0, len(value))
		for _, v := range value {
			if !slices.ContainsFunc(out, func(o any) bool { return xoption.Equal(o, v) }) {
				out = append(out, v)
			}
		}
		value = out
	}
	return value, nil
}

func (c *calcValue) single(value []any) (any, error) {
	if sep, ok := c.kwString("join"); ok {
		parts := make([]string, len(value))
		for i, v := range value {
			if v == nil {
				return nil, fmt.Errorf("%w: cannot join a None value", ErrCalculation)
			}
			parts[i] = fmt.Sprint(v)
		}
		return strings.Join(parts, sep), nil
	}
	if op, ok := c.kwString("operator"); ok && len(value) > 0 {
		return applyOperator(op, value)
	}
	if len(value) == 0 {
		return nil, nil
	}
	first := value[0]
	if list, ok := first.([]any); ok {
		if idx, ok := c.kwInt("index"); ok {
			if idx < len(list) {
				return list[idx], nil
			}
			return nil, nil
		}
	}
	return first, nil
}

func (c *calcValue) value() ([]any, error) {
	matches, err := c.conditionMatches()
	if err != nil {
		return nil, err
	}
	var value []any
	if matches {
		value = make([]any, len(c.args))
		for i, a := range c.args {
			value[i] = argValue(a)
		}
	}
	if n, ok := c.kwInt("min_args_len"); ok && n > 0 && len(value) < n {
		value = nil
	}
	if len(value) == 0 {
		def, ok := c.fromKwargs("default")
		if ok {
			if list, isList := def.([]any); isList {
				return list, nil
			}
			return []any{def}, nil
		}
		return []any{}, nil
	}
	return value, nil
}

// fromKwargs 返回 name 的值；没有时按 name_0、name_1 … 收集为列表。
func (c *calcValue) fromKwargs(name string) (any, bool) {
	if v, ok := c.kw(name); ok {
		return argValue(v), true
	}
	indexed := c.indexed(name + "_")
	if len(indexed) == 0 {
		return nil, false
	}
	keys := sortedKeys(indexed)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = indexed[k]
	}
	return out, true
}

// indexed 收集 prefix 后跟数字的命名参数。
func (c *calcValue) indexed(prefix string) map[int]any {
	out := make(map[int]any)
	for k, v := range c.kwargs {
		if n, ok := suffixIndex(k, prefix); ok {
			out[n] = argValue(v)
		}
	}
	return out
}

// conditions 返回条件值，未编号的 condition 以 NoIndex 为键。
// 被属性拦截的条件视为不存在。
func (c *calcValue) conditions() (map[int]any, bool) {
	if v, ok := c.kw("condition"); ok {
		if oa, isArg := v.(xoption.OptionArg); !isArg || oa.PropertyErr == nil {
			return map[int]any{xoption.NoIndex: argValue(v)}, true
		}
	}
	indexed := make(map[int]any)
	for k, v := range c.kwargs {
		n, ok := suffixIndex(k, "condition_")
		if !ok {
			continue
		}
		if oa, isArg := v.(xoption.OptionArg); isArg && oa.PropertyErr != nil {
			continue
		}
		indexed[n] = argValue(v)
	}
	if len(indexed) == 0 {
		return nil, false
	}
	return indexed, true
}

func suffixIndex(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(key[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *calcValue) conditionMatches() (bool, error) {
	conds, ok := c.conditions()
	if !ok {
		return !c.kwBool("no_condition_is_invalid"), nil
	}
	op := "AND"
	if s, ok := c.kwString("condition_operator"); ok {
		op = s
	}
	if op != "AND" && op != "OR" {
		return false, fmt.Errorf("%w: unexpected %s condition_operator in calc_value", ErrCalculation, op)
	}
	expected, hasExpected := c.kw("expected")
	expectedIdx := c.indexed("expected_")
	reverseIdx := c.indexed("reverse_condition_")

	var matches *bool
	for _, idx := range sortedKeys(conds) {
		cond := conds[idx]
		var current bool
		switch {
		case hasExpected:
			current = xoption.Equal(cond, argValue(expected))
		case idx != xoption.NoIndex:
			current = xoption.Equal(cond, expectedIdx[idx])
		default:
			for _, e := range expectedIdx {
				if xoption.Equal(cond, e) {
					current = true
					break
				}
			}
		}
		reverse, _ := reverseIdx[idx].(bool)
		m := current
		if matches != nil {
			if op == "AND" {
				m = *matches && current
			} else {
				m = *matches || current
			}
		}
		if reverse {
			m = !m
		}
		matches = &m
		if op == "AND" && !m {
			break
		}
		if op == "OR" && m {
			break
		}
	}
	result := matches != nil && *matches
	if c.kwBool("reverse_condition") {
		result = !result
	}
	return result, nil
}

func sortedKeys(m map[int]any) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// argValue 取出 ToDict 参数中的值。
func argValue(v any) any {
	if oa, ok := v.(xoption.OptionArg); ok {
		return oa.Value
	}
	return v
}

// =============================================================================
// 运算
// =============================================================================

type number struct {
	f       float64
	isFloat bool
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case float32:
		return number{float64(n), true}, true
	case float64:
		return number{n, true}, true
	}
	if f, ok := asFloat(v); ok {
		return number{f, false}, true
	}
	return number{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func applyOperator(op string, values []any) (any, error) {
	if op == "add" {
		if s, ok := values[0].(string); ok {
			var b strings.Builder
			b.WriteString(s)
			for _, v := range values[1:] {
				vs, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("%w: cannot add %v to a string", ErrCalculation, v)
				}
				b.WriteString(vs)
			}
			return b.String(), nil
		}
	}
	acc, ok := toNumber(values[0])
	if !ok {
		return nil, fmt.Errorf("%w: %v is not a number", ErrCalculation, values[0])
	}
	for _, v := range values[1:] {
		n, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a number", ErrCalculation, v)
		}
		switch op {
		case "add":
			acc.f += n.f
		case "sub":
			acc.f -= n.f
		case "mul":
			acc.f *= n.f
		case "div":
			if n.f == 0 {
				return nil, fmt.Errorf("%w: division by zero", ErrCalculation)
			}
			acc.f /= n.f
			acc.isFloat = true
		default:
			return nil, fmt.Errorf("%w: unknown operator %q", ErrCalculation, op)
		}
		acc.isFloat = acc.isFloat || n.isFloat
	}
	if acc.isFloat {
		return acc.f, nil
	}
	return int(acc.f), nil
}
