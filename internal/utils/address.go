package utils

import (
	"regexp"
	"strings"
)

var hexAddressPattern = regexp.MustCompile("^[0-9a-fA-F]{40}$")
var hexHash32Pattern = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")

// IsEvmAddress checks whether the string is a 20-byte EVM address
func IsEvmAddress(address string) bool {
	if address == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(address), "0x") {
		return len(address) == 42 && hexAddressPattern.MatchString(address[2:])
	}
	return len(address) == 40 && hexAddressPattern.MatchString(address)
}

// IsHash32 checks whether the string is a 0x-prefixed 32-byte hex value
// (order ids, secret hashes, tx hashes)
func IsHash32(s string) bool {
	return hexHash32Pattern.MatchString(s)
}

// NormalizeAddress lowercases an address and ensures the 0x prefix
func NormalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	addr := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// SameAddress compares two addresses case-insensitively
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
