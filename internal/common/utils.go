package common

import (
	"strings"

	"github.com/holiman/uint256"
)

// NormalizeAddress lowercases an address so that equality is case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ExtractFunctionSelector returns the first 4 bytes of call input (0x + 8 hex chars), or "".
func ExtractFunctionSelector(input string) string {
	if len(input) < 10 {
		return ""
	}
	return strings.ToLower(input[0:10])
}

// HasInput reports whether call data carries anything beyond the 0x prefix.
func HasInput(input string) bool {
	return strings.TrimPrefix(input, "0x") != ""
}

// ParseWei parses a hex quantity leniently: empty and "0x" are zero and leading zeros are allowed.
func ParseWei(value string) (*uint256.Int, error) {
	digits := strings.TrimLeft(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "0x"), "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromHex("0x" + digits)
}
