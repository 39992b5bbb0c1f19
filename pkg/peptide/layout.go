package peptide

import (
	"math"
	"strings"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// Layout is the geometry shared by every peptide of a stream.
type Layout struct {
	Alphabet *Alphabet
	// Length is the number of residues of every peptide.
	Length int
	// IndexLength is the number of leading residues holding the peptide number.
	IndexLength int
	// PayloadResidues is the number of residues after the index carrying data
	// bits. The rest of the peptide is filler.
	PayloadResidues int
}

// NewLayout validates the geometry. With indexLength == length the layout is
// valid but carries no payload.
func NewLayout(alphabet *Alphabet, length, indexLength int) (Layout, error) {
	if alphabet == nil {
		alphabet = DefaultAlphabet
	}

	if length <= 0 {
		return Layout{}, failure.Configf("peptide length must be positive, got %d", length)
	}

	if indexLength < 0 {
		return Layout{}, failure.Configf("index length must not be negative, got %d", indexLength)
	}

	if indexLength > length {
		return Layout{}, failure.Configf("index length %d exceeds peptide length %d", indexLength, length)
	}

	return Layout{
		Alphabet:        alphabet,
		Length:          length,
		IndexLength:     indexLength,
		PayloadResidues: length - indexLength,
	}, nil
}

// PayloadLength is the number of residues after the index.
func (l Layout) PayloadLength() int {
	return l.Length - l.IndexLength
}

// PayloadBits is the number of data bits a peptide carries.
func (l Layout) PayloadBits() int {
	return l.PayloadResidues * l.Alphabet.BitsPerResidue()
}

// RowBytes is the number of whole bytes the payload region can hold.
func (l Layout) RowBytes() int {
	return l.PayloadLength() * l.Alphabet.BitsPerResidue() / 8
}

// ByteAligned returns the layout whose payload bits are exactly the bits of
// RowBytes whole bytes, rounded down to whole residues.
func (l Layout) ByteAligned() Layout {
	l.PayloadResidues = l.RowBytes() * 8 / l.Alphabet.BitsPerResidue()

	return l
}

// MaxPeptides is the number of distinct values the index field can hold.
// Without an index the count is unbounded.
func (l Layout) MaxPeptides() int {
	if l.IndexLength == 0 {
		return math.MaxInt
	}

	width := l.IndexLength * l.Alphabet.BitsPerResidue()
	if width >= 62 {
		return math.MaxInt
	}

	return 1 << uint(width)
}

// IndexPrefix renders n as IndexLength residues, most significant first.
func (l Layout) IndexPrefix(n int) string {
	if l.IndexLength == 0 {
		return ""
	}

	bpr := l.Alphabet.BitsPerResidue()
	mask := l.Alphabet.Len() - 1

	var sb strings.Builder
	sb.Grow(l.IndexLength)

	for i := l.IndexLength - 1; i >= 0; i-- {
		shift := i * bpr
		digit := 0
		if shift < 63 {
			digit = (n >> uint(shift)) & mask
		}

		sb.WriteByte(l.Alphabet.Residue(digit))
	}

	return sb.String()
}

// ParseIndex reads the index prefix of p. It fails when p is shorter than the
// index or the prefix holds a foreign residue.
func (l Layout) ParseIndex(p string) (int, bool) {
	if l.IndexLength == 0 || len(p) < l.IndexLength {
		return 0, false
	}

	bpr := l.Alphabet.BitsPerResidue()
	n := 0

	for i := 0; i < l.IndexLength; i++ {
		v := l.Alphabet.Index(p[i])
		if v < 0 {
			return 0, false
		}

		n = n<<uint(bpr) | v
	}

	return n, true
}

// Filler returns count filler residues.
func (l Layout) Filler(count int) string {
	if count <= 0 {
		return ""
	}

	return strings.Repeat(string(l.Alphabet.Residue(0)), count)
}
