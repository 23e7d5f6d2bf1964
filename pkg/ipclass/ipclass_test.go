package ipclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIPv4(t *testing.T) {
	tests := []struct {
		in       string
		typ      Type
		category string
	}{
		{"10.0.0.1", Private, "Private IP"},
		{"8.8.8.8", Public, CategoryPublic4},
		{" 1.1.1.1 ", Public, CategoryPublic4},
		{"0.1.2.3", Private, "This Network"},
		{"100.64.1.1", Private, "Carrier-Grade NAT"},
		{"100.128.0.1", Public, CategoryPublic4},
		{"127.0.0.1", Private, "Loopback Address"},
		{"169.254.10.10", Private, "Link-Local Address"},
		{"172.16.0.1", Private, "Private IP"},
		{"172.31.255.255", Private, "Private IP"},
		{"172.32.0.1", Public, CategoryPublic4},
		{"192.168.1.1", Private, "Private IP"},
		{"192.0.2.55", Private, "Documentation (TEST-NET)"},
		{"198.19.255.255", Private, "Benchmarking"},
		{"198.51.100.7", Private, "Documentation (TEST-NET)"},
		{"203.0.113.9", Private, "Documentation (TEST-NET)"},
		{"224.0.0.251", Private, "Multicast Address"},
		{"255.255.255.255", Private, "Reserved / Future Use"},
		{"001.002.003.004", Public, CategoryPublic4},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Classify(tt.in)
			assert.True(t, got.Valid)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestClassifyInvalid(t *testing.T) {
	for _, in := range []string{
		"", "   ", "999.1.1.1", "1.2.3.256", "1.2.3", "1.2.3.4.5", "a.b.c.d",
		"1234.1.1.1", "hello", "gggg::1", "1:2:3", "fe80::1%eth0",
		"::ffff:1.2.3.4", "1::2::3", "1:2:3:4:5:6:7:8:9", "12345::",
	} {
		got := Classify(in)
		assert.Equal(t, Result{Valid: false, Type: Invalid}, got, "input %q", in)
		assert.Empty(t, got.Category)
	}
}

func TestClassifyIPv6(t *testing.T) {
	tests := []struct {
		in       string
		typ      Type
		category string
	}{
		{"::", Private, "Unspecified"},
		{"::1", Private, "Loopback Address"},
		{"fd12:3456::1", Private, "Unique Local Address"},
		{"fc00::", Private, "Unique Local Address"},
		{"fe80::1", Private, "Link-Local Address"},
		{"FE80::ABCD", Private, "Link-Local Address"},
		{"ff02::1", Private, "Multicast Address"},
		{"2001:db8::1", Private, "Documentation Address"},
		{"2001:2::10", Private, "Benchmarking"},
		{"::ffff:c000:280", Private, "IPv4-Mapped IPv6"},
		{"::2", Private, "Reserved"},
		{"100::1", Private, "Discard Prefix"},
		{"100:0:0:1::1", Public, CategoryPublic6},
		{"2001:4860:4860::8888", Public, CategoryPublic6},
		{"2606:4700:4700:0:0:0:0:1111", Public, CategoryPublic6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Classify(tt.in)
			assert.True(t, got.Valid)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestIsValidIPMatchesClassify(t *testing.T) {
	for _, in := range []string{"8.8.8.8", "10.0.0.1", "::1", "2001:4860:4860::8888", "nope", ""} {
		assert.Equal(t, Classify(in).Type == Public, IsValidIP(in), "input %q", in)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	for _, in := range []string{"8.8.8.8", "fe80::1", "bogus"} {
		assert.Equal(t, Classify(in), Classify(in))
	}
}

func TestCategorySetIffValid(t *testing.T) {
	for _, in := range []string{"8.8.8.8", "10.1.1.1", "::1", "2001:4860::1", "x", "300.1.1.1"} {
		got := Classify(in)
		assert.Equal(t, got.Type != Invalid, got.Category != "", "input %q", in)
	}
}

func TestTablesAreCopies(t *testing.T) {
	v4, v6 := Tables()
	require.Len(t, v4, 13)
	require.Len(t, v6, 10)
	v4[0].Category = "mutated"
	again, _ := Tables()
	assert.Equal(t, "This Network", again[0].Category)
}
