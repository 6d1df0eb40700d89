package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// BigInt is a big.Int that decodes from JSON numbers, decimal strings and 0x-prefixed hex strings
type BigInt struct {
	*big.Int
}

// NewBigInt wraps v, copying it
func NewBigInt(v *big.Int) *BigInt {
	if v == nil {
		return &BigInt{Int: new(big.Int)}
	}
	return &BigInt{Int: new(big.Int).Set(v)}
}

// ParseBigInt parses a decimal or 0x-prefixed hex string
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty integer")
	}

	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) == 2 {
			return nil, fmt.Errorf("invalid hex integer %q", s)
		}
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (b *BigInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		b.Int = nil
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}

	v, err := ParseBigInt(s)
	if err != nil {
		return err
	}
	b.Int = v
	return nil
}

// MarshalJSON encodes the value as a decimal string
func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Int.String())
}

// Equal compares values; two nil values are equal
func (b *BigInt) Equal(other *BigInt) bool {
	if b == nil || b.Int == nil {
		return other == nil || other.Int == nil
	}
	if other == nil || other.Int == nil {
		return false
	}
	return b.Int.Cmp(other.Int) == 0
}
