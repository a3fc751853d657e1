package xcalc

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"github.com/omeyang/xoption/pkg/config/xoption"
)

// 校验函数约定：返回 (nil, nil) 表示通过，返回的错误信息作为校验失败原因。

// namedArg 取出值与展示用的选项名，非 ToDict 参数名字为空。
func namedArg(v any) (any, string) {
	if oa, ok := v.(xoption.OptionArg); ok {
		return oa.Value, oa.Name
	}
	return v, ""
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// parsePrefix 把 network 与 netmask 组合为前缀，netmask 可以是点分掩码或前缀长度。
func parsePrefix(network, netmask string) (netip.Prefix, error) {
	if bits, err := xoption.NetmaskBits(netmask); err == nil {
		netmask = fmt.Sprint(bits)
	}
	return netip.ParsePrefix(network + "/" + netmask)
}

// ValidNetworkNetmask 检查网络地址与掩码是否匹配。参数：network, netmask。
func ValidNetworkNetmask(_ context.Context, args []any, _ map[string]any) (any, error) {
	network, name := namedArg(argAt(args, 0))
	netmask, _ := namedArg(argAt(args, 1))
	if network == nil || netmask == nil {
		return nil, nil
	}
	pfx, err := parsePrefix(fmt.Sprint(network), fmt.Sprint(netmask))
	if err != nil || pfx.Masked() != pfx {
		display := ""
		if name != "" {
			display = "(" + name + ") "
		}
		return nil, fmt.Errorf("network %q %sdoes not match with this netmask", fmt.Sprint(network), display)
	}
	return nil, nil
}

// ValidIPNetmask 检查 IP 在该掩码下不是网络地址或广播地址。参数：ip, netmask。
func ValidIPNetmask(_ context.Context, args []any, _ map[string]any) (any, error) {
	ip, name := namedArg(argAt(args, 0))
	netmask, _ := namedArg(argAt(args, 1))
	if ip == nil || netmask == nil {
		return nil, nil
	}
	pfx, err := parsePrefix(fmt.Sprint(ip), fmt.Sprint(netmask))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid IP %q or netmask %q", ErrCalculation, fmt.Sprint(ip), fmt.Sprint(netmask))
	}
	display := ""
	if name != "" {
		display = "(" + name + ") "
	}
	if pfx.Bits() >= 31 {
		return nil, nil
	}
	switch pfx.Addr() {
	case pfx.Masked().Addr():
		return nil, fmt.Errorf("IP %q %swith this netmask is in fact a network address", fmt.Sprint(ip), display)
	case netipx.PrefixLastIP(pfx):
		return nil, fmt.Errorf("IP %q %swith this netmask is in fact a broadcast address", fmt.Sprint(ip), display)
	}
	return nil, nil
}

// ValidBroadcast 检查广播地址与网络、掩码一致。参数：network, netmask, broadcast。
func ValidBroadcast(_ context.Context, args []any, _ map[string]any) (any, error) {
	network, networkName := namedArg(argAt(args, 0))
	netmask, netmaskName := namedArg(argAt(args, 1))
	broadcast, _ := namedArg(argAt(args, 2))
	if network == nil || netmask == nil || broadcast == nil {
		return nil, nil
	}
	pfx, err := parsePrefix(fmt.Sprint(network), fmt.Sprint(netmask))
	bc, errB := netip.ParseAddr(fmt.Sprint(broadcast))
	if err == nil && errB == nil && netipx.PrefixLastIP(pfx.Masked()) == bc {
		return nil, nil
	}
	return nil, fmt.Errorf("broadcast invalid with network %v%s and netmask %v%s",
		network, withName(networkName), netmask, withName(netmaskName))
}

// ValidInNetwork 检查 IP 属于网络且不是网络地址或广播地址。
// 参数：ip, network[, netmask]；network 带前缀长度时可省略 netmask。
func ValidInNetwork(_ context.Context, args []any, _ map[string]any) (any, error) {
	ip, _ := namedArg(argAt(args, 0))
	network, networkName := namedArg(argAt(args, 1))
	rawNetmask := argAt(args, 2)
	netmask, netmaskName := namedArg(rawNetmask)
	if ip == nil || network == nil {
		return nil, nil
	}
	withMask := len(args) > 2
	nets := fmt.Sprint(network)
	var (
		pfx netip.Prefix
		err error
	)
	if strings.Contains(nets, "/") {
		pfx, err = netip.ParsePrefix(nets)
	} else {
		if netmask == nil {
			return nil, nil
		}
		pfx, err = parsePrefix(nets, fmt.Sprint(netmask))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid network %q", ErrCalculation, nets)
	}
	pfx = pfx.Masked()
	addr, err := netip.ParseAddr(strings.SplitN(fmt.Sprint(ip), "/", 2)[0])
	if err != nil {
		return nil, nil
	}
	if !pfx.Contains(addr) {
		if !withMask {
			return nil, fmt.Errorf("this IP is not in network %s%s", nets, withName(networkName))
		}
		return nil, fmt.Errorf("this IP is not in network %s%s with netmask %v%s",
			nets, withName(networkName), netmask, withName(netmaskName))
	}
	if pfx.Bits() >= 31 {
		return nil, nil
	}
	var what string
	switch addr {
	case pfx.Addr():
		what = "network"
	case netipx.PrefixLastIP(pfx):
		what = "broadcast"
	default:
		return nil, nil
	}
	if !withMask {
		return nil, fmt.Errorf("this IP with the network %s%s is in fact a %s address", nets, withName(networkName), what)
	}
	return nil, fmt.Errorf("this IP with the netmask %v%s is in fact a %s address", netmask, withName(netmaskName), what)
}

// ValidNotEqual 检查第一个值与其余值都不相等，nil 不参与比较。
func ValidNotEqual(_ context.Context, args []any, _ map[string]any) (any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	first, _ := namedArg(args[0])
	if first == nil {
		return nil, nil
	}
	var names []string
	identical := false
	for _, a := range args[1:] {
		if oa, ok := a.(xoption.OptionArg); ok && oa.PropertyErr != nil {
			continue
		}
		v, name := namedArg(a)
		if v == nil || !xoption.Equal(first, v) {
			continue
		}
		if name != "" {
			names = append(names, name)
		} else {
			identical = true
		}
	}
	if len(names) > 0 {
		return nil, fmt.Errorf("value is identical to %s", xoption.DisplayList(names, "and", true))
	}
	if identical {
		return nil, errors.New("value is identical")
	}
	return nil, nil
}

func withName(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}

// =============================================================================
// 计算构造
// =============================================================================

// NetworkNetmask 创建 ValidNetworkNetmask 校验。
func NetworkNetmask(network, netmask xoption.Param) *xoption.Calculation {
	return xoption.NewCalculation("valid_network_netmask", ValidNetworkNetmask, xoption.Args(network, netmask))
}

// IPNetmask 创建 ValidIPNetmask 校验。
func IPNetmask(ip, netmask xoption.Param) *xoption.Calculation {
	return xoption.NewCalculation("valid_ip_netmask", ValidIPNetmask, xoption.Args(ip, netmask))
}

// Broadcast 创建 ValidBroadcast 校验。
func Broadcast(network, netmask, broadcast xoption.Param) *xoption.Calculation {
	return xoption.NewCalculation("valid_broadcast", ValidBroadcast, xoption.Args(network, netmask, broadcast))
}

// InNetwork 创建 ValidInNetwork 校验，netmask 可以为 nil。
func InNetwork(ip, network, netmask xoption.Param) *xoption.Calculation {
	params := xoption.Args(ip, network)
	if netmask != nil {
		params.Args = append(params.Args, netmask)
	}
	return xoption.NewCalculation("valid_in_network", ValidInNetwork, params)
}

// NotEqual 创建 ValidNotEqual 校验，第一个参数通常为 ParamSelfOption。
func NotEqual(params ...xoption.Param) *xoption.Calculation {
	return xoption.NewCalculation("valid_not_equal", ValidNotEqual, xoption.Args(params...))
}
