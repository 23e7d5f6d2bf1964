// Package ipclass classifies a candidate token as an IPv4 or IPv6 address and
// decides whether it is publicly routable using ordered CIDR exclusion tables.
//
// Classification is pure and total: malformed input yields an invalid result,
// never an error or panic.
package ipclass

import (
	"regexp"
	"strconv"
	"strings"
)

// Type is the scope of a classified token.
type Type string

const (
	Public  Type = "public"
	Private Type = "private"
	Invalid Type = "invalid"
)

// Categories for addresses that match no exclusion entry.
const (
	CategoryPublic4 = "Public IP"
	CategoryPublic6 = "Public IPv6"
)

// Result is the outcome of Classify. Category is set iff Type is not Invalid.
type Result struct {
	Valid    bool   `json:"valid"`
	Type     Type   `json:"type"`
	Category string `json:"category,omitempty"`
}

// Exclusion is one row of an exclusion table.
type Exclusion struct {
	CIDR     string `json:"cidr"`
	Type     Type   `json:"type"`
	Category string `json:"category"`
}

var ipv4Exclusions = []Exclusion{
	{"0.0.0.0/8", Private, "This Network"},
	{"10.0.0.0/8", Private, "Private IP"},
	{"100.64.0.0/10", Private, "Carrier-Grade NAT"},
	{"127.0.0.0/8", Private, "Loopback Address"},
	{"169.254.0.0/16", Private, "Link-Local Address"},
	{"172.16.0.0/12", Private, "Private IP"},
	{"192.168.0.0/16", Private, "Private IP"},
	{"192.0.2.0/24", Private, "Documentation (TEST-NET)"},
	{"198.18.0.0/15", Private, "Benchmarking"},
	{"198.51.100.0/24", Private, "Documentation (TEST-NET)"},
	{"203.0.113.0/24", Private, "Documentation (TEST-NET)"},
	{"224.0.0.0/4", Private, "Multicast Address"},
	{"240.0.0.0/4", Private, "Reserved / Future Use"},
}

var ipv6Exclusions = []Exclusion{
	{"::/128", Private, "Unspecified"},
	{"::1/128", Private, "Loopback Address"},
	{"fc00::/7", Private, "Unique Local Address"},
	{"fe80::/10", Private, "Link-Local Address"},
	{"ff00::/8", Private, "Multicast Address"},
	{"2001:db8::/32", Private, "Documentation Address"},
	{"2001:2::/48", Private, "Benchmarking"},
	{"::ffff:0:0/96", Private, "IPv4-Mapped IPv6"},
	{"0000::/8", Private, "Reserved"},
	{"100::/64", Private, "Discard Prefix"},
}

// Tables returns copies of the IPv4 and IPv6 exclusion tables in match order.
func Tables() (v4, v6 []Exclusion) {
	return append([]Exclusion(nil), ipv4Exclusions...), append([]Exclusion(nil), ipv6Exclusions...)
}

var (
	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

	// 8-group and "::" compressed forms; no embedded IPv4 and no zone index.
	ipv6Pattern = regexp.MustCompile(`^(` +
		`([0-9a-fA-F]{1,4}:){7,7}[0-9a-fA-F]{1,4}|` +
		`([0-9a-fA-F]{1,4}:){1,7}:|` +
		`([0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}|` +
		`([0-9a-fA-F]{1,4}:){1,5}(:[0-9a-fA-F]{1,4}){1,2}|` +
		`([0-9a-fA-F]{1,4}:){1,4}(:[0-9a-fA-F]{1,4}){1,3}|` +
		`([0-9a-fA-F]{1,4}:){1,3}(:[0-9a-fA-F]{1,4}){1,4}|` +
		`([0-9a-fA-F]{1,4}:){1,2}(:[0-9a-fA-F]{1,4}){1,5}|` +
		`[0-9a-fA-F]{1,4}:((:[0-9a-fA-F]{1,4}){1,6})|` +
		`:((:[0-9a-fA-F]{1,4}){1,7}|:)` +
		`)$`)
)

var invalid = Result{Valid: false, Type: Invalid}

// Classify decides whether text is a valid address and, if so, which scope it
// belongs to. The first exclusion entry containing the address wins.
func Classify(text string) Result {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return invalid
	}

	if ipv4Pattern.MatchString(clean) {
		for _, octet := range strings.Split(clean, ".") {
			n, err := strconv.Atoi(octet)
			if err != nil || n > 255 {
				return invalid
			}
		}
		return match(clean, ipv4Exclusions, InCIDR4, CategoryPublic4)
	}

	if strings.Contains(clean, ":") {
		if !ipv6Pattern.MatchString(clean) {
			return invalid
		}
		return match(clean, ipv6Exclusions, InCIDR6, CategoryPublic6)
	}

	return invalid
}

// IsValidIP reports whether text is a public address worth looking up.
func IsValidIP(text string) bool {
	return Classify(text).Type == Public
}

func match(ip string, table []Exclusion, contains func(ip, cidr string) bool, publicCategory string) Result {
	for _, ex := range table {
		if contains(ip, ex.CIDR) {
			return Result{Valid: true, Type: ex.Type, Category: ex.Category}
		}
	}
	return Result{Valid: true, Type: Public, Category: publicCategory}
}
