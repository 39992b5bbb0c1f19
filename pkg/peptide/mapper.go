package peptide

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// Mapping is a bit stream laid out as peptides.
type Mapping struct {
	Peptides []string
	// PadBits is the number of zero bits appended to fill the last peptide.
	PadBits int
	Layout  Layout
}

// BitsToPeptides splits bits into peptides of the given layout.
func BitsToPeptides(bits Bits, layout Layout) (Mapping, error) {
	mapping := Mapping{Layout: layout}
	if len(bits) == 0 {
		return mapping, nil
	}

	capacity := layout.PayloadBits()
	if capacity == 0 {
		return mapping, failure.Configf("layout %d/%d has no payload capacity", layout.Length, layout.IndexLength)
	}

	count := (len(bits) + capacity - 1) / capacity
	if count > layout.MaxPeptides() {
		return mapping, failure.Configf("%d peptides do not fit in an index of %d residues", count, layout.IndexLength)
	}

	mapping.PadBits = count*capacity - len(bits)
	mapping.Peptides = make([]string, count)

	for i := 0; i < count; i++ {
		start := i * capacity
		end := start + capacity
		if end > len(bits) {
			end = len(bits)
		}

		mapping.Peptides[i] = layout.Encode(i, bits[start:end])
	}

	return mapping, nil
}

// BytesToPeptides is BitsToPeptides over the bits of data.
func BytesToPeptides(data []byte, layout Layout) (Mapping, error) {
	return BitsToPeptides(FromBytes(data), layout)
}

// Encode builds peptide number n around payload. Missing payload bits are zero.
func (l Layout) Encode(n int, payload Bits) string {
	bpr := l.Alphabet.BitsPerResidue()

	var sb strings.Builder
	sb.Grow(l.Length)
	sb.WriteString(l.IndexPrefix(n))

	for r := 0; r < l.PayloadResidues; r++ {
		sb.WriteByte(l.Alphabet.Residue(int(payload.Uint(r*bpr, bpr))))
	}

	sb.WriteString(l.Filler(l.PayloadLength() - l.PayloadResidues))

	return sb.String()
}

// Payload returns the data bits of a well-formed peptide.
func (l Layout) Payload(p string) (Bits, error) {
	if len(p) != l.Length {
		return nil, failure.Decodef("peptide has %d residues, want %d", len(p), l.Length)
	}

	bpr := l.Alphabet.BitsPerResidue()
	out := make(Bits, 0, l.PayloadBits())

	for r := l.IndexLength; r < l.IndexLength+l.PayloadResidues; r++ {
		v := l.Alphabet.Index(p[r])
		if v < 0 {
			return nil, failure.Decodef("residue %q at position %d is not in alphabet %s", p[r], r, l.Alphabet)
		}

		out = out.AppendUint(uint64(v), bpr)
	}

	return out, nil
}

// Bits is the strict inverse of BitsToPeptides.
func (m Mapping) Bits() (Bits, error) {
	return PeptidesToBits(m.Peptides, m.Layout, m.PadBits)
}

// PeptidesToBits concatenates the payload bits of every peptide, in order, and
// strips padBits from the end.
func PeptidesToBits(peptides []string, layout Layout, padBits int) (Bits, error) {
	out := make(Bits, 0, len(peptides)*layout.PayloadBits())

	for i, p := range peptides {
		payload, err := layout.Payload(p)
		if err != nil {
			return nil, errors.Wrapf(err, "peptide %d", i)
		}

		out = append(out, payload...)
	}

	return stripPad(out, padBits)
}

// RecoverBits rebuilds the bit stream of total peptides from what survived the
// channel. Peptides are placed by index when the layout has one, by position
// otherwise. Missing peptides and foreign residues read as zero bits, short
// payloads are zero-extended and long ones truncated.
func RecoverBits(received []string, layout Layout, total, padBits int) Bits {
	capacity := layout.PayloadBits()
	bpr := layout.Alphabet.BitsPerResidue()
	out := make(Bits, total*capacity)
	seen := make([]bool, total)

	for pos, p := range received {
		slot := pos
		if layout.IndexLength > 0 {
			idx, ok := layout.ParseIndex(p)
			if !ok {
				continue
			}

			slot = idx
		}

		if slot >= total || seen[slot] {
			continue
		}

		seen[slot] = true

		if len(p) < layout.IndexLength {
			continue
		}

		payload := p[layout.IndexLength:]
		base := slot * capacity

		for r := 0; r < layout.PayloadResidues && r < len(payload); r++ {
			v := layout.Alphabet.Index(payload[r])
			if v < 0 {
				continue
			}

			for b := 0; b < bpr; b++ {
				out[base+r*bpr+b] = byte(v>>uint(bpr-1-b)) & 1
			}
		}
	}

	if padBits > len(out) {
		padBits = len(out)
	}

	return out[:len(out)-padBits]
}

func stripPad(bits Bits, padBits int) (Bits, error) {
	if padBits < 0 || padBits > len(bits) {
		return nil, failure.Decodef("%d pad bits exceed a stream of %d bits", padBits, len(bits))
	}

	return bits[:len(bits)-padBits], nil
}
