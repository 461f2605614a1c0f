package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 20-byte account identifier, rendered as 0x-prefixed hex.
type Address = [20]byte

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(raw string) (Address, error) {
	var addr Address
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	trimmed = strings.TrimPrefix(trimmed, "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want %d bytes, got %d", raw, len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// FormatAddress renders an address as 0x-prefixed lower-case hex.
func FormatAddress(addr Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}
