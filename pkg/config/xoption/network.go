package xoption

import (
	"errors"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// 编译期接口实现检查
var (
	_ Type                 = IP{}
	_ SecondLevelValidator = IP{}
	_ Type                 = Network{}
	_ SecondLevelValidator = Network{}
	_ Type                 = Netmask{}
	_ Type                 = Broadcast{}
)

// reservedV4 是 240.0.0.0/4 保留段。
var reservedV4 = netip.MustParsePrefix("240.0.0.0/4")

// privateV4 覆盖 RFC 1918、回环、链路本地与共享地址段。
var privateV4 = func() *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, p := range []string{
		"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
		"127.0.0.0/8", "169.254.0.0/16", "100.64.0.0/10",
	} {
		b.AddPrefix(netip.MustParsePrefix(p))
	}
	set, _ := b.IPSet()
	return set
}()

// dottedQuad 检查四段点分且没有前导零。
func dottedQuad(s string) bool {
	host, _, _ := strings.Cut(s, "/")
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return false
		}
	}
	return true
}

// IsReservedIP 判断地址是否在保留段内。
func IsReservedIP(a netip.Addr) bool {
	return reservedV4.Contains(a)
}

// IsPrivateIP 判断地址是否为私有地址。
func IsPrivateIP(a netip.Addr) bool {
	return privateV4.Contains(a)
}

// =============================================================================
// IP
// =============================================================================

// IP IPv4 地址。CIDR 为 true 时必须带前缀长度（"192.168.1.1/24"），
// 并且不能是网络地址或广播地址。
type IP struct {
	CIDR          bool
	Private       bool
	AllowReserved bool
}

func (IP) Name() string { return "IP" }

func (t IP) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !dottedQuad(s) {
		return errEmpty
	}
	if !t.CIDR {
		if _, err := netip.ParseAddr(s); err != nil {
			return errEmpty
		}
		return nil
	}
	if !strings.Contains(s, "/") {
		return errors.New("must use CIDR notation")
	}
	pfx, err := netip.ParsePrefix(s)
	if err != nil {
		return errEmpty
	}
	if pfx.Bits() < 31 {
		if pfx.Addr() == pfx.Masked().Addr() {
			return errors.New("it's in fact a network address")
		}
		if pfx.Addr() == netipx.PrefixLastIP(pfx) {
			return errors.New("it's in fact a broadcast address")
		}
	}
	return nil
}

func (t IP) SecondLevel(v any, warningsOnly bool) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	host, _, _ := strings.Cut(s, "/")
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	verb := "mustn't"
	if warningsOnly {
		verb = "shouldn't"
	}
	if !t.AllowReserved && IsReservedIP(addr) {
		return errors.New(verb + " be reserved IP")
	}
	if t.Private && !IsPrivateIP(addr) {
		if warningsOnly {
			return errors.New("should be private IP")
		}
		return errors.New("must be private IP")
	}
	return nil
}

// =============================================================================
// Network / Netmask / Broadcast
// =============================================================================

// Network IPv4 网络地址，主机位必须为 0。
type Network struct {
	CIDR bool
}

func (Network) Name() string { return "network address" }

func (t Network) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !dottedQuad(s) {
		return errEmpty
	}
	if t.CIDR {
		if !strings.Contains(s, "/") {
			return errors.New("must use CIDR notation")
		}
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return errEmpty
		}
		if pfx.Masked() != pfx {
			return errors.New("invalid network address")
		}
		return nil
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return errEmpty
	}
	return nil
}

func (Network) SecondLevel(v any, warningsOnly bool) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	host, _, _ := strings.Cut(s, "/")
	addr, err := netip.ParseAddr(host)
	if err != nil || !IsReservedIP(addr) {
		return nil
	}
	if warningsOnly {
		return errors.New("shouldn't be reserved network")
	}
	return errors.New("mustn't be reserved network")
}

// Netmask 点分形式的连续掩码。
type Netmask struct{}

func (Netmask) Name() string { return "netmask address" }

func (Netmask) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if _, err := NetmaskBits(s); err != nil {
		return err
	}
	return nil
}

// NetmaskBits 把点分掩码转为前缀长度。
func NetmaskBits(s string) (int, error) {
	if !dottedQuad(s) {
		return 0, errEmpty
	}
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return 0, errEmpty
	}
	b := a.As4()
	mask := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	bits := 0
	for mask&(1<<31) != 0 {
		bits++
		mask <<= 1
	}
	if mask != 0 {
		return 0, errEmpty
	}
	return bits, nil
}

// Broadcast 广播地址。
type Broadcast struct{}

func (Broadcast) Name() string { return "broadcast address" }

func (Broadcast) Validate(v any) error {
	s, err := mustString(v)
	if err != nil {
		return err
	}
	if !dottedQuad(s) {
		return errEmpty
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return errEmpty
	}
	return nil
}
