package peptide

import (
	"math/bits"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// Residue is one symbol of an alphabet.
type Residue = byte

// Alphabet is an ordered set of residues. The position of a residue is the
// value of the bits it carries.
type Alphabet struct {
	residues []Residue
	values   [256]int16
	bits     int
}

// DefaultAlphabet carries 3 bits per residue: A=000, V=001, ..., E=111.
var DefaultAlphabet = MustAlphabet("AVLSTFYE")

// NewAlphabet builds an alphabet from distinct residues. Its size must be a
// power of two, at least 2, so that each residue carries a whole number of bits.
func NewAlphabet(residues string) (*Alphabet, error) {
	size := len(residues)
	if size < 2 || size&(size-1) != 0 {
		return nil, failure.Configf("alphabet size %d is not a power of two >= 2", size)
	}

	alphabet := &Alphabet{
		residues: []Residue(residues),
		bits:     bits.TrailingZeros(uint(size)),
	}
	for i := range alphabet.values {
		alphabet.values[i] = -1
	}

	for i := 0; i < size; i++ {
		r := residues[i]
		if alphabet.values[r] >= 0 {
			return nil, failure.Configf("residue %q appears twice in alphabet", r)
		}

		alphabet.values[r] = int16(i)
	}

	return alphabet, nil
}

// MustAlphabet is like NewAlphabet but panics on error.
func MustAlphabet(residues string) *Alphabet {
	alphabet, err := NewAlphabet(residues)
	if err != nil {
		panic(err)
	}

	return alphabet
}

// Len returns the number of residues.
func (a *Alphabet) Len() int {
	return len(a.residues)
}

// BitsPerResidue returns how many bits a residue carries.
func (a *Alphabet) BitsPerResidue() int {
	return a.bits
}

// Index returns the value of r, or -1 when r is not in the alphabet.
func (a *Alphabet) Index(r Residue) int {
	return int(a.values[r])
}

// Contains reports whether r belongs to the alphabet.
func (a *Alphabet) Contains(r Residue) bool {
	return a.values[r] >= 0
}

// Residue returns the residue carrying value v.
func (a *Alphabet) Residue(v int) Residue {
	return a.residues[v]
}

// Valid reports whether every residue of s belongs to the alphabet.
func (a *Alphabet) Valid(s string) bool {
	for i := 0; i < len(s); i++ {
		if a.values[s[i]] < 0 {
			return false
		}
	}

	return true
}

func (a *Alphabet) String() string {
	return string(a.residues)
}
