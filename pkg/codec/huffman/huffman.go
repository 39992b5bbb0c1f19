// Package huffman is a canonical Huffman codec producing self-describing bit
// streams mapped onto peptides.
//
// Stream layout: symbol count (9 bits), then for each symbol in ascending order
// its value (8 bits) and code length (8 bits), then the number of encoded bytes
// (32 bits), then the code bits.
package huffman

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

const (
	countBits  = 9
	symbolBits = 8
	lengthBits = 8
	sizeBits   = 32
)

// EncodeBits compresses data into a self-describing bit stream.
func EncodeBits(data []byte) (peptide.Bits, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, failure.Configf("huffman input of %d bytes exceeds the 32-bit size field", len(data))
	}

	table := BuildTable(data)

	out := make(peptide.Bits, 0, countBits+len(table.Codes)*(symbolBits+lengthBits)+sizeBits+len(data)*8)
	out = out.AppendUint(uint64(len(table.Codes)), countBits)

	for _, c := range table.Codes {
		out = out.AppendUint(uint64(c.Symbol), symbolBits)
		out = out.AppendUint(uint64(c.Length), lengthBits)
	}

	out = out.AppendUint(uint64(len(data)), sizeBits)

	for _, b := range data {
		c, _ := table.Lookup(b)
		out = out.AppendUint(c.Bits, c.Length)
	}

	return out, nil
}

// Encode compresses data and lays the stream out as peptides.
func Encode(data []byte, layout peptide.Layout) (peptide.Mapping, error) {
	bits, err := EncodeBits(data)
	if err != nil {
		return peptide.Mapping{}, err
	}

	mapping, err := peptide.BitsToPeptides(bits, layout)
	if err != nil {
		return peptide.Mapping{}, errors.Wrap(err, "huffman")
	}

	return mapping, nil
}

// Decode is the inverse of Encode for an intact mapping.
func Decode(mapping peptide.Mapping) ([]byte, error) {
	bits, err := mapping.Bits()
	if err != nil {
		return nil, errors.Wrap(err, "huffman")
	}

	return DecodeBits(bits)
}

// DecodeBits reads a stream written by EncodeBits. Every bit must be consumed.
func DecodeBits(bits peptide.Bits) ([]byte, error) {
	r := &reader{bits: bits}

	count, err := r.read(countBits, "symbol count")
	if err != nil {
		return nil, err
	}

	if count > 256 {
		return nil, failure.Decodef("header declares %d symbols", count)
	}

	codes := make([]Code, count)
	for i := range codes {
		symbol, err := r.read(symbolBits, "symbol")
		if err != nil {
			return nil, err
		}

		length, err := r.read(lengthBits, "code length")
		if err != nil {
			return nil, err
		}

		codes[i] = Code{Symbol: byte(symbol), Length: int(length)}
	}

	size, err := r.read(sizeBits, "byte count")
	if err != nil {
		return nil, err
	}

	if count == 0 {
		if size != 0 {
			return nil, failure.Decodef("empty code table for %d bytes", size)
		}

		return r.finish([]byte{})
	}

	table, err := newTable(codes)
	if err != nil {
		return nil, err
	}

	dec := newDecoder(table)

	if remaining := uint64(len(bits) - r.pos); size > remaining {
		return nil, failure.Decodef("%d bytes declared with %d code bits left", size, remaining)
	}

	out := make([]byte, 0, size)
	for uint64(len(out)) < size {
		b, err := dec.next(r)
		if err != nil {
			return nil, errors.Wrapf(err, "byte %d", len(out))
		}

		out = append(out, b)
	}

	return r.finish(out)
}

type reader struct {
	bits peptide.Bits
	pos  int
}

func (r *reader) read(width int, field string) (uint64, error) {
	if r.pos+width > len(r.bits) {
		return 0, failure.Decodef("header truncated reading %s", field)
	}

	v := r.bits.Uint(r.pos, width)
	r.pos += width

	return v, nil
}

func (r *reader) finish(out []byte) ([]byte, error) {
	if r.pos != len(r.bits) {
		return nil, failure.Decodef("%d trailing bits after the last symbol", len(r.bits)-r.pos)
	}

	return out, nil
}

// decoder walks the canonical code one bit at a time.
type decoder struct {
	maxLength int
	first     [maxCodeLength + 1]uint64
	count     [maxCodeLength + 1]uint64
	offset    [maxCodeLength + 1]int
	symbols   []byte
}

func newDecoder(table *Table) *decoder {
	codes := append([]Code{}, table.Codes...)
	sortByCode(codes)

	dec := &decoder{symbols: make([]byte, len(codes))}
	for i, c := range codes {
		if dec.count[c.Length] == 0 {
			dec.first[c.Length] = c.Bits
			dec.offset[c.Length] = i
		}

		dec.count[c.Length]++
		dec.symbols[i] = c.Symbol

		if c.Length > dec.maxLength {
			dec.maxLength = c.Length
		}
	}

	return dec
}

func (d *decoder) next(r *reader) (byte, error) {
	var code uint64

	for length := 1; length <= d.maxLength; length++ {
		if r.pos >= len(r.bits) {
			return 0, failure.Decodef("input exhausted inside a code")
		}

		code = code<<1 | uint64(r.bits[r.pos]&1)
		r.pos++

		if n := d.count[length]; n > 0 && code >= d.first[length] && code-d.first[length] < n {
			return d.symbols[d.offset[length]+int(code-d.first[length])], nil
		}
	}

	return 0, failure.Decodef("code %b is not in the table", code)
}

func sortByCode(codes []Code) {
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].Length != codes[j].Length {
			return codes[i].Length < codes[j].Length
		}

		return codes[i].Symbol < codes[j].Symbol
	})
}
