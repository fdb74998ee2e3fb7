package schema

import "fmt"

// Flags256 is the 256-bit integer used for SYS.OBJ$/SYS.TAB$ flag columns,
// grounded on original_source/src/uintX_t.cpp. Per spec.md §9's design
// guidance, it is a fixed-length array with explicit Add/Cmp/bit-test
// methods rather than an operator-overloaded bignum type.
type Flags256 [4]uint64

// SetBit sets bit n (0-255).
func (f *Flags256) SetBit(n uint) {
	f[n/64] |= 1 << (n % 64)
}

// HasBit reports whether bit n (0-255) is set.
func (f Flags256) HasBit(n uint) bool {
	return f[n/64]&(1<<(n%64)) != 0
}

// Add returns f+o with 256-bit wraparound, carrying between limbs.
func (f Flags256) Add(o Flags256) Flags256 {
	var out Flags256
	var carry uint64
	for i := 0; i < 4; i++ {
		var sum = f[i] + o[i] + carry
		if sum < f[i] || (carry == 1 && sum == f[i]) {
			carry = 1
		} else {
			carry = 0
		}
		out[i] = sum
	}
	return out
}

// Cmp returns -1, 0, or 1 comparing f to o, most-significant limb first.
func (f Flags256) Cmp(o Flags256) int {
	for i := 3; i >= 0; i-- {
		if f[i] < o[i] {
			return -1
		}
		if f[i] > o[i] {
			return 1
		}
	}
	return 0
}

func (f Flags256) String() string {
	return fmt.Sprintf("%016x%016x%016x%016x", f[3], f[2], f[1], f[0])
}
