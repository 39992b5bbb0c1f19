package ecc

import (
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// rowOf reads the byte row carried by the payload region of p. It fails on a
// wrong length or any foreign residue.
func rowOf(p string, layout peptide.Layout) ([]byte, bool) {
	if len(p) != layout.Length || !layout.Alphabet.Valid(p) {
		return nil, false
	}

	bpr := layout.Alphabet.BitsPerResidue()
	bits := make(peptide.Bits, 0, layout.PayloadLength()*bpr)

	for r := layout.IndexLength; r < layout.Length; r++ {
		bits = bits.AppendUint(uint64(layout.Alphabet.Index(p[r])), bpr)
	}

	row, err := bits[:layout.RowBytes()*8].Bytes()
	if err != nil {
		return nil, false
	}

	return row, true
}

// peptideOf renders row as a peptide labelled with label.
func peptideOf(row []byte, label int, layout peptide.Layout) string {
	bpr := layout.Alphabet.BitsPerResidue()
	layout.PayloadResidues = (len(row)*8 + bpr - 1) / bpr

	return layout.Encode(label, peptide.FromBytes(row))
}
