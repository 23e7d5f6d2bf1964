// Package hexutil provides table-driven hex digit decoding and encoding for
// address parsing hot paths.
// Uses lookup tables instead of strconv so a 16-bit group decodes without
// allocations.
package hexutil

// Hex character tables
const (
	HexUpper = "0123456789ABCDEF"
	HexLower = "0123456789abcdef"
)

// invalid marks bytes that are not hex digits in the decode table.
const invalid = 0xFF

var (
	// DigitValue maps a byte to its hex digit value, or 0xFF if the byte is
	// not a hex digit. Upper and lower case are both accepted.
	DigitValue [256]byte

	// ByteLower contains the two lowercase hex digits for each byte value.
	ByteLower [256]string
)

func init() {
	for i := range DigitValue {
		DigitValue[i] = invalid
	}
	for i := 0; i < 16; i++ {
		DigitValue[HexLower[i]] = byte(i)
		DigitValue[HexUpper[i]] = byte(i)
	}
	for i := 0; i < 256; i++ {
		ByteLower[i] = string([]byte{HexLower[i>>4], HexLower[i&0x0F]})
	}
}

// ParseUint16 decodes one to four hex digits into a 16-bit value.
// An empty string decodes to zero, matching an omitted group.
func ParseUint16(s string) (uint16, bool) {
	if len(s) > 4 {
		return 0, false
	}
	var v uint16
	for i := 0; i < len(s); i++ {
		d := DigitValue[s[i]]
		if d == invalid {
			return 0, false
		}
		v = v<<4 | uint16(d)
	}
	return v, true
}

// FormatUint16 renders v as four lowercase hex digits.
func FormatUint16(v uint16) string {
	return ByteLower[v>>8] + ByteLower[v&0xFF]
}
