package ipclass

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lukechampine.com/uint128"

	"github.com/ipcheck/ipcheck/internal/hexutil"
)

// Errors returned by the address parsers.
var (
	ErrMalformedIPv4 = errors.New("ipclass: malformed IPv4 address")
	ErrMalformedIPv6 = errors.New("ipclass: malformed IPv6 address")
	ErrMalformedCIDR = errors.New("ipclass: malformed CIDR")
)

// ToUint32 folds a dotted-quad address into a 32-bit integer, most
// significant octet first.
func ToUint32(ip string) (uint32, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedIPv4, ip)
	}
	var v uint32
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedIPv4, ip)
		}
		v = v<<8 | uint32(n)
	}
	return v, nil
}

// Mask4 returns a mask with prefix leading one bits.
func Mask4(prefix int) uint32 {
	switch {
	case prefix <= 0:
		return 0
	case prefix >= 32:
		return ^uint32(0)
	}
	return ^uint32(0) << (32 - prefix)
}

// InCIDR4 reports whether ip lies inside cidr. Malformed input never matches.
func InCIDR4(ip, cidr string) bool {
	base, prefix, err := splitCIDR(cidr, 32)
	if err != nil {
		return false
	}
	addr, err := ToUint32(ip)
	if err != nil {
		return false
	}
	rng, err := ToUint32(base)
	if err != nil {
		return false
	}
	mask := Mask4(prefix)
	return addr&mask == rng&mask
}

// Expand parses an IPv6 address into its eight 16-bit groups, filling a
// "::" gap with zero groups.
func Expand(ip string) ([8]uint16, error) {
	var groups [8]uint16

	var raw []string
	if idx := strings.Index(ip, "::"); idx >= 0 {
		if strings.Contains(ip[idx+2:], "::") {
			return groups, fmt.Errorf("%w: %q", ErrMalformedIPv6, ip)
		}
		pre := nonEmpty(strings.Split(ip[:idx], ":"))
		post := nonEmpty(strings.Split(ip[idx+2:], ":"))
		gap := 8 - len(pre) - len(post)
		if gap < 0 {
			return groups, fmt.Errorf("%w: %q", ErrMalformedIPv6, ip)
		}
		raw = append(raw, pre...)
		for i := 0; i < gap; i++ {
			raw = append(raw, "0")
		}
		raw = append(raw, post...)
	} else {
		raw = strings.Split(ip, ":")
	}
	if len(raw) != 8 {
		return groups, fmt.Errorf("%w: %q", ErrMalformedIPv6, ip)
	}

	for i, g := range raw {
		v, ok := hexutil.ParseUint16(g)
		if !ok {
			return groups, fmt.Errorf("%w: bad group %q in %q", ErrMalformedIPv6, g, ip)
		}
		groups[i] = v
	}
	return groups, nil
}

// ExpandString renders the fully expanded form, e.g. "::1" becomes
// "0000:0000:0000:0000:0000:0000:0000:0001".
func ExpandString(ip string) (string, error) {
	groups, err := Expand(ip)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = hexutil.FormatUint16(g)
	}
	return strings.Join(parts, ":"), nil
}

// ToUint128 folds an IPv6 address into a 128-bit integer, most significant
// group first.
func ToUint128(ip string) (uint128.Uint128, error) {
	groups, err := Expand(ip)
	if err != nil {
		return uint128.Zero, err
	}
	v := uint128.Zero
	for _, g := range groups {
		v = v.Lsh(16).Or64(uint64(g))
	}
	return v, nil
}

// Mask6 returns a 128-bit mask with prefix leading one bits.
func Mask6(prefix int) uint128.Uint128 {
	switch {
	case prefix <= 0:
		return uint128.Zero
	case prefix >= 128:
		return uint128.Max
	}
	return uint128.Max.Lsh(uint(128 - prefix))
}

// InCIDR6 reports whether ip lies inside cidr. Parse failures are treated as
// non-containment.
func InCIDR6(ip, cidr string) bool {
	base, prefix, err := splitCIDR(cidr, 128)
	if err != nil {
		return false
	}
	addr, err := ToUint128(ip)
	if err != nil {
		return false
	}
	rng, err := ToUint128(base)
	if err != nil {
		return false
	}
	mask := Mask6(prefix)
	return addr.And(mask).Equals(rng.And(mask))
}

func splitCIDR(cidr string, bits int) (string, int, error) {
	base, length, ok := strings.Cut(cidr, "/")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedCIDR, cidr)
	}
	prefix, err := strconv.Atoi(length)
	if err != nil || prefix < 0 || prefix > bits {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedCIDR, cidr)
	}
	return base, prefix, nil
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
