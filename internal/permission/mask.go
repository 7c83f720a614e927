// Package permission holds the two encodings of a grant: the per (module,
// feature) bitmask stored on roles and the nested name map embedded in
// access tokens.
package permission

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxBitPosition is the highest bit a permission type may own. Mask is 64
// bits wide, so at most 64 permission types can be active at once.
const MaxBitPosition = 63

var ErrBitOutOfRange = errors.New("bit position out of range")

// Mask is the permissionValue of a role permission: bit b set means the
// permission type with bitPosition b is granted.
type Mask uint64

func ValidBit(bit int) bool {
	return bit >= 0 && bit <= MaxBitPosition
}

func (m Mask) Has(bit int) bool {
	if !ValidBit(bit) {
		return false
	}
	return m&(Mask(1)<<uint(bit)) != 0
}

// With returns m with bit set. Out of range bits are rejected, never wrapped.
func (m Mask) With(bit int) (Mask, error) {
	if !ValidBit(bit) {
		return m, fmt.Errorf("%w: %d (allowed 0..%d)", ErrBitOutOfRange, bit, MaxBitPosition)
	}
	return m | Mask(1)<<uint(bit), nil
}

func (m Mask) Without(bit int) Mask {
	if !ValidBit(bit) {
		return m
	}
	return m &^ (Mask(1) << uint(bit))
}

// Bits lists the set bit positions in ascending order.
func (m Mask) Bits() []int {
	out := make([]int, 0, bits.OnesCount64(uint64(m)))
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

func (m Mask) IsZero() bool {
	return m == 0
}

// Int64 converts for storage in signed integer columns; bit 63 maps to the
// sign bit and round trips through FromInt64.
func (m Mask) Int64() int64 {
	return int64(m)
}

func FromInt64(v int64) Mask {
	return Mask(uint64(v))
}
