package safetensors

import "math"

// Float32ToFloat16 converts a float32 to IEEE 754 half bits with
// round-to-nearest-even, matching the numpy astype(float16) downcast.
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127
	frac := bits & 0x007fffff

	switch {
	case exp == 128:
		// Inf / NaN.
		if frac == 0 {
			return sign | 0x7c00
		}
		return sign | 0x7c00 | uint16(frac>>13) | 1
	case exp > 15:
		// Overflow → Inf.
		return sign | 0x7c00
	case exp >= -14:
		// Normal. Round to nearest even on the dropped 13 bits.
		half := sign | uint16(exp+15)<<10 | uint16(frac>>13)
		round := frac & 0x1fff
		if round > 0x1000 || (round == 0x1000 && half&1 == 1) {
			half++
		}
		return half
	case exp >= -25:
		// Subnormal. Round to nearest even on the dropped bits; a carry
		// out of the mantissa lands on the smallest normal.
		frac |= 0x00800000
		shift := uint32(-exp - 1) // 14..24 bits dropped
		half := sign | uint16(frac>>shift)
		mid := uint32(1) << (shift - 1)
		rem := frac & (uint32(1)<<shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return half
	default:
		// Underflow → signed zero.
		return sign
	}
}

// Float16ToFloat32 widens IEEE 754 half bits to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x03ff)

	var bits uint32

	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			// Subnormal: normalize.
			e := int32(-14)
			for (frac & 0x0400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x03ff
			exp32 := uint32(e + 127)
			bits = (sign << 31) | (exp32 << 23) | (frac << 13)
		}
	case 0x1f:
		// Inf / NaN.
		bits = (sign << 31) | 0x7f800000 | (frac << 13)
	default:
		exp32 := exp + (127 - 15)
		bits = (sign << 31) | (exp32 << 23) | (frac << 13)
	}

	return math.Float32frombits(bits)
}
