package fountain

import (
	"github.com/askiada/go-pepstore/pkg/failure"
)

// Decoder is a peeling decoder. Droplets can be added in any order; each
// degree-one equation resolves a symbol, which is XORed out of every pending
// droplet referencing it.
type Decoder struct {
	symbolSize int
	symbols    [][]byte
	resolved   int
	// refs lists, per symbol, the pending equations that reference it.
	refs [][]*equation
}

type equation struct {
	indices []int
	payload []byte
	done    bool
}

// NewDecoder creates a decoder for k source symbols.
func NewDecoder(k, symbolSize int) *Decoder {
	return &Decoder{
		symbolSize: symbolSize,
		symbols:    make([][]byte, k),
		refs:       make([][]*equation, k),
	}
}

// Add feeds one droplet and peels as far as possible.
func (d *Decoder) Add(indices []int, payload []byte) {
	eq := &equation{payload: make([]byte, d.symbolSize)}
	copy(eq.payload, payload)

	for _, idx := range indices {
		if idx < 0 || idx >= len(d.symbols) {
			return
		}

		if sym := d.symbols[idx]; sym != nil {
			xorInto(eq.payload, sym)
			continue
		}

		eq.indices = append(eq.indices, idx)
	}

	switch len(eq.indices) {
	case 0:
		return
	case 1:
		d.peel(eq)
	default:
		for _, idx := range eq.indices {
			d.refs[idx] = append(d.refs[idx], eq)
		}
	}
}

func (d *Decoder) peel(first *equation) {
	queue := []*equation{first}

	for len(queue) > 0 {
		eq := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if eq.done || len(eq.indices) != 1 {
			continue
		}

		eq.done = true
		idx := eq.indices[0]

		if d.symbols[idx] != nil {
			continue
		}

		d.symbols[idx] = eq.payload
		d.resolved++

		for _, other := range d.refs[idx] {
			if other.done {
				continue
			}

			xorInto(other.payload, eq.payload)
			other.indices = remove(other.indices, idx)

			if len(other.indices) == 1 {
				queue = append(queue, other)
			}
		}

		d.refs[idx] = nil
	}
}

// Resolved returns the number of recovered source symbols.
func (d *Decoder) Resolved() int {
	return d.resolved
}

// Done reports whether every source symbol is recovered.
func (d *Decoder) Done() bool {
	return d.resolved == len(d.symbols)
}

// Bytes concatenates the source symbols and truncates to size.
func (d *Decoder) Bytes(size int) ([]byte, error) {
	if !d.Done() {
		return nil, failure.Stallf("resolved %d of %d source symbols", d.resolved, len(d.symbols))
	}

	out := make([]byte, 0, len(d.symbols)*d.symbolSize)
	for _, sym := range d.symbols {
		out = append(out, sym...)
	}

	if size > len(out) {
		return nil, failure.Decodef("declared size %d exceeds %d recovered bytes", size, len(out))
	}

	return out[:size], nil
}

func xorInto(dst, src []byte) {
	for i := range dst {
		if i < len(src) {
			dst[i] ^= src[i]
		}
	}
}

func remove(indices []int, idx int) []int {
	for i, v := range indices {
		if v == idx {
			return append(indices[:i], indices[i+1:]...)
		}
	}

	return indices
}
