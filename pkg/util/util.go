package util

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Map applies a transformation function to each element of a slice and returns a new slice
// with the transformed values.
//
// Type Parameters:
//   - A: The type of elements in the input slice
//   - B: The type of elements in the output slice
//
// Parameters:
//   - coll: The input slice to transform
//   - mapper: Function that transforms each element and receives the element's index
//
// Returns:
//   - []B: A new slice containing the transformed elements
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}

// StripHexPrefix removes a leading 0x or 0X.
func StripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// EnsureHexPrefix adds a leading 0x unless one is present.
func EnsureHexPrefix(s string) string {
	return "0x" + StripHexPrefix(s)
}

// ParseAddress validates a hex address string.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAddresses validates every element of a list of hex addresses, preserving order.
func ParseAddresses(values []string) ([]common.Address, error) {
	var firstErr error
	addresses := Map(values, func(s string, _ uint64) common.Address {
		address, err := ParseAddress(strings.TrimSpace(s))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return address
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return addresses, nil
}
