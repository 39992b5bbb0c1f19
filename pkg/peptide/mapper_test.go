package peptide_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

func newLayout(t *testing.T, length, indexLength int) peptide.Layout {
	t.Helper()

	layout, err := peptide.NewLayout(peptide.DefaultAlphabet, length, indexLength)
	require.NoError(t, err)

	return layout
}

func randomBytes(t *testing.T, seed uint64, size int) []byte {
	t.Helper()

	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(rng.IntN(256))
	}

	return out
}

func TestNewLayout(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		length, index int
		wantErr       bool
	}{
		"default":        {length: 18, index: 0},
		"indexed":        {length: 18, index: 4},
		"all index":      {length: 18, index: 18},
		"index too long": {length: 18, index: 19, wantErr: true},
		"zero length":    {length: 0, index: 0, wantErr: true},
		"negative index": {length: 18, index: -1, wantErr: true},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			layout, err := peptide.NewLayout(nil, tc.length, tc.index)
			if tc.wantErr {
				require.ErrorIs(t, err, failure.ErrConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.length-tc.index, layout.PayloadResidues)
			assert.Equal(t, peptide.DefaultAlphabet, layout.Alphabet)
		})
	}
}

func TestByteAligned(t *testing.T) {
	t.Parallel()

	layout := newLayout(t, 18, 0).ByteAligned()
	assert.Equal(t, 6, layout.RowBytes())
	assert.Equal(t, 16, layout.PayloadResidues)
	assert.Equal(t, 48, layout.PayloadBits())

	indexed := newLayout(t, 18, 2).ByteAligned()
	assert.Equal(t, 6, indexed.RowBytes())
	assert.Equal(t, 16, indexed.PayloadResidues)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 6, 7, 100, 1000} {
		for _, index := range []int{0, 3, 17} {
			size, index := size, index

			t.Run(fmt.Sprintf("size %d index %d", size, index), func(t *testing.T) {
				t.Parallel()

				data := randomBytes(t, uint64(size), size)
				layout := newLayout(t, 18, index)
				mapping, err := peptide.BytesToPeptides(data, layout)
				require.NoError(t, err)

				for _, p := range mapping.Peptides {
					assert.Len(t, p, 18)
					assert.True(t, layout.Alphabet.Valid(p))
				}

				bits, err := mapping.Bits()
				require.NoError(t, err)
				got, err := bits.Bytes()
				require.NoError(t, err)
				assert.Equal(t, data, got)
			})
		}
	}
}

func TestIndexPrefixInvariant(t *testing.T) {
	t.Parallel()

	data := randomBytes(t, 7, 300)

	for index := 0; index <= 18; index++ {
		index := index

		t.Run(fmt.Sprintf("index %d", index), func(t *testing.T) {
			t.Parallel()

			layout := newLayout(t, 18, index)
			mapping, err := peptide.BytesToPeptides(data, layout)
			if index == 18 {
				require.ErrorIs(t, err, failure.ErrConfig)

				empty, err := peptide.BytesToPeptides(nil, layout)
				require.NoError(t, err)
				assert.Empty(t, empty.Peptides)

				return
			}

			needed := (len(data)*8 + layout.PayloadBits() - 1) / layout.PayloadBits()
			if needed > layout.MaxPeptides() {
				require.ErrorIs(t, err, failure.ErrConfig)
				return
			}

			require.NoError(t, err)

			for i, p := range mapping.Peptides {
				assert.Equal(t, layout.IndexPrefix(i), p[:index])

				if index > 0 {
					got, ok := layout.ParseIndex(p)
					require.True(t, ok)
					assert.Equal(t, i, got)
				}
			}
		})
	}
}

func TestIndexTooSmall(t *testing.T) {
	t.Parallel()

	// one index residue numbers 8 peptides of 51 bits.
	layout := newLayout(t, 18, 1)
	_, err := peptide.BytesToPeptides(make([]byte, 51), layout)
	require.NoError(t, err)

	_, err = peptide.BytesToPeptides(make([]byte, 52), layout)
	require.ErrorIs(t, err, failure.ErrConfig)
}

func TestPadBits(t *testing.T) {
	t.Parallel()

	mapping, err := peptide.BytesToPeptides([]byte{0xFF}, newLayout(t, 4, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, mapping.PadBits)
	assert.Equal(t, []string{"EEYA"}, mapping.Peptides)
}

func TestPeptidesToBitsStrict(t *testing.T) {
	t.Parallel()

	layout := newLayout(t, 4, 0)

	tcs := map[string]struct {
		peptides []string
		padBits  int
	}{
		"wrong length":    {peptides: []string{"EEE"}},
		"foreign residue": {peptides: []string{"EEWL"}},
		"too much pad":    {peptides: []string{"EEYA"}, padBits: 13},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := peptide.PeptidesToBits(tc.peptides, layout, tc.padBits)
			require.ErrorIs(t, err, failure.ErrDecode)
		})
	}
}

func TestRecoverBits(t *testing.T) {
	t.Parallel()

	data := randomBytes(t, 11, 40)

	t.Run("positional with loss", func(t *testing.T) {
		t.Parallel()

		layout := newLayout(t, 6, 0)
		mapping, err := peptide.BytesToPeptides(data, layout)
		require.NoError(t, err)

		received := append([]string{}, mapping.Peptides...)
		received[1] = received[1][:3]
		received[2] = "AAWAAA"

		bits := peptide.RecoverBits(received, layout, len(mapping.Peptides), mapping.PadBits)
		require.Len(t, bits, len(data)*8)

		got, err := bits.Bytes()
		require.NoError(t, err)
		assert.Equal(t, data[:3], got[:3])
		assert.Equal(t, data[7:], got[7:], "peptides past the damage are unaffected")
	})

	t.Run("indexed and shuffled", func(t *testing.T) {
		t.Parallel()

		layout := newLayout(t, 18, 2)
		mapping, err := peptide.BytesToPeptides(data, layout)
		require.NoError(t, err)

		received := make([]string, 0, len(mapping.Peptides))
		for i := len(mapping.Peptides) - 1; i >= 0; i-- {
			received = append(received, mapping.Peptides[i])
		}

		bits := peptide.RecoverBits(received, layout, len(mapping.Peptides), mapping.PadBits)
		got, err := bits.Bytes()
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("missing peptide reads zero", func(t *testing.T) {
		t.Parallel()

		layout := newLayout(t, 18, 2)
		mapping, err := peptide.BytesToPeptides(data, layout)
		require.NoError(t, err)

		received := append([]string{}, mapping.Peptides[1:]...)
		bits := peptide.RecoverBits(received, layout, len(mapping.Peptides), mapping.PadBits)
		got, err := bits.Bytes()
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 6), got[:6])
		assert.Equal(t, data[6:], got[6:])
	})
}
