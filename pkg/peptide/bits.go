package peptide

import (
	"github.com/pkg/errors"
)

// Bits is a bit string stored one bit per byte (0 or 1), most significant first.
type Bits []byte

// FromBytes expands data into its bits, most significant bit of each byte first.
func FromBytes(data []byte) Bits {
	out := make(Bits, 0, len(data)*8)
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			out = append(out, (b>>shift)&1)
		}
	}

	return out
}

// Bytes packs the bits into bytes. The length must be a multiple of 8.
func (b Bits) Bytes() ([]byte, error) {
	if len(b)%8 != 0 {
		return nil, errors.Errorf("%d bits do not form whole bytes", len(b))
	}

	out := make([]byte, len(b)/8)
	for i, bit := range b {
		out[i/8] |= (bit & 1) << (7 - i%8)
	}

	return out, nil
}

// Uint reads width bits starting at offset as a big-endian unsigned value.
// Bits past the end read as zero.
func (b Bits) Uint(offset, width int) uint64 {
	var v uint64
	for i := offset; i < offset+width; i++ {
		v <<= 1
		if i < len(b) {
			v |= uint64(b[i] & 1)
		}
	}

	return v
}

// AppendUint appends the width low bits of v, most significant first.
func (b Bits) AppendUint(v uint64, width int) Bits {
	for shift := width - 1; shift >= 0; shift-- {
		b = append(b, byte(v>>uint(shift))&1)
	}

	return b
}
