package channel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/peptide"
)

// Basic applies every operator with a fixed probability.
type Basic struct {
	*sampler
}

var _ Model = (*Basic)(nil)

// NewBasic returns a basic model drawing from a generator seeded with seed.
// A nil alphabet means the default one.
func NewBasic(params Params, alphabet *peptide.Alphabet, seed uint64) (*Basic, error) {
	s, err := newSampler(params, alphabet, seed)
	if err != nil {
		return nil, errors.Wrap(err, "basic model")
	}

	return &Basic{sampler: s}, nil
}

// Apply corrupts peptides.
func (b *Basic) Apply(ctx context.Context, peptides []string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, errors.Wrap(err, "basic model")
	}

	loss := make([]float64, len(peptides))
	for i := range loss {
		loss[i] = b.params.Loss
	}

	return Outcome{Peptides: b.corrupt(peptides, loss)}, nil
}
