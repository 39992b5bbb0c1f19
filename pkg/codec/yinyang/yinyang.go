// Package yinyang encodes two bits per residue with a two-table state machine
// that alternates residue classes along every peptide.
package yinyang

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

const bitsPerResidue = 2

// Metadata is what the decoder needs besides the peptides.
type Metadata struct {
	Layout       peptide.Layout
	PeptideCount int
	// PadBits counts the zero bits filling the last peptide.
	PadBits      int
	OriginalSize int
}

// Encoded is the output of Encode.
type Encoded struct {
	Peptides []string
	Metadata
}

// Encode maps data onto peptides. The payload residues of every peptide follow
// the state machine from Yin; unused residues of the last peptide encode 00.
func Encode(data []byte, layout peptide.Layout) (Encoded, error) {
	enc := Encoded{Metadata: Metadata{Layout: layout, OriginalSize: len(data)}}

	for _, table := range tables {
		for i := 0; i < len(table); i++ {
			if !layout.Alphabet.Contains(table[i]) {
				return enc, failure.Configf("alphabet %s lacks yin-yang residue %q", layout.Alphabet, table[i])
			}
		}
	}

	bits := peptide.FromBytes(data)
	if len(bits) == 0 {
		return enc, nil
	}

	capacity := layout.PayloadResidues * bitsPerResidue
	if capacity == 0 {
		return enc, failure.Configf("layout %d/%d has no payload capacity", layout.Length, layout.IndexLength)
	}

	count := (len(bits) + capacity - 1) / capacity
	if count > layout.MaxPeptides() {
		return enc, failure.Configf("%d peptides do not fit in an index of %d residues", count, layout.IndexLength)
	}

	enc.Peptides = make([]string, count)
	enc.PeptideCount = count
	enc.PadBits = count*capacity - len(bits)

	for i := range enc.Peptides {
		var sb strings.Builder
		sb.Grow(layout.Length)
		sb.WriteString(layout.IndexPrefix(i))

		state := Yin
		for r := 0; r < layout.PayloadResidues; r++ {
			var residue byte
			residue, state = Emit(state, int(bits.Uint(i*capacity+r*bitsPerResidue, bitsPerResidue)))
			sb.WriteByte(residue)
		}

		sb.WriteString(layout.Filler(layout.PayloadLength() - layout.PayloadResidues))
		enc.Peptides[i] = sb.String()
	}

	return enc, nil
}

// Decode rebuilds the bytes from received peptides, placed by index when the
// layout has one and by position otherwise. Any missing peptide or residue
// outside the active table fails with a DecodeError.
func Decode(received []string, meta Metadata) ([]byte, error) {
	layout := meta.Layout
	slots := make([]string, meta.PeptideCount)
	filled := make([]bool, meta.PeptideCount)

	for pos, p := range received {
		slot := pos
		if layout.IndexLength > 0 {
			idx, ok := layout.ParseIndex(p)
			if !ok {
				continue
			}

			slot = idx
		}

		if slot >= meta.PeptideCount || filled[slot] {
			continue
		}

		slots[slot] = p
		filled[slot] = true
	}

	bits := make(peptide.Bits, 0, meta.PeptideCount*layout.PayloadResidues*bitsPerResidue)

	for i, p := range slots {
		if !filled[i] {
			return nil, failure.Decodef("peptide %d missing", i)
		}

		payload, err := decodePeptide(p, layout)
		if err != nil {
			return nil, errors.Wrapf(err, "peptide %d", i)
		}

		bits = append(bits, payload...)
	}

	if meta.PadBits < 0 || meta.PadBits > len(bits) {
		return nil, failure.Decodef("%d pad bits exceed a stream of %d bits", meta.PadBits, len(bits))
	}

	bits = bits[:len(bits)-meta.PadBits]
	if len(bits) != meta.OriginalSize*8 {
		return nil, failure.Decodef("decoded %d bits, want %d", len(bits), meta.OriginalSize*8)
	}

	out, err := bits.Bytes()
	if err != nil {
		return nil, failure.Decodef("%v", err)
	}

	return out, nil
}

func decodePeptide(p string, layout peptide.Layout) (peptide.Bits, error) {
	if len(p) != layout.Length {
		return nil, failure.Decodef("%d residues, want %d", len(p), layout.Length)
	}

	out := make(peptide.Bits, 0, layout.PayloadResidues*bitsPerResidue)
	state := Yin

	for r := layout.IndexLength; r < layout.IndexLength+layout.PayloadResidues; r++ {
		next, value, ok := Transition(state, p[r])
		if !ok {
			return nil, failure.Decodef("residue %q at position %d is not allowed in %s state", p[r], r, state)
		}

		out = out.AppendUint(uint64(value), bitsPerResidue)
		state = next
	}

	return out, nil
}
