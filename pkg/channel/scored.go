package channel

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// DefaultLossScale maps a quality score Q to a loss probability (1-Q)*0.02.
const DefaultLossScale = 0.02

// Scorer returns one quality score in [0, 1] per peptide, in order. A
// partial failure is reported with NaN scores and a non-nil error.
type Scorer interface {
	Score(ctx context.Context, peptides []string) ([]float64, error)
}

// Scored draws the loss probability of each peptide from its quality score.
// Mutation, insertion and shuffle keep their fixed probabilities; Params.Loss
// is ignored.
type Scored struct {
	*sampler
	scorer Scorer
	scale  float64
}

var _ Model = (*Scored)(nil)

// NewScored returns a scored model. scale multiplies 1-Q.
func NewScored(scorer Scorer, scale float64, params Params, alphabet *peptide.Alphabet, seed uint64) (*Scored, error) {
	if scorer == nil {
		return nil, failure.Configf("scored model needs a scorer")
	}

	if math.IsNaN(scale) || scale < 0 || scale > 1 {
		return nil, failure.Configf("score loss scale must be in [0, 1], got %v", scale)
	}

	s, err := newSampler(params, alphabet, seed)
	if err != nil {
		return nil, errors.Wrap(err, "scored model")
	}

	return &Scored{sampler: s, scorer: scorer, scale: scale}, nil
}

// Apply scores the non-empty peptides and corrupts them. Peptides without a
// score get no loss and mark the outcome as degraded.
func (s *Scored) Apply(ctx context.Context, peptides []string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, errors.Wrap(err, "scored model")
	}

	positions := make([]int, 0, len(peptides))
	toScore := make([]string, 0, len(peptides))

	for i, p := range peptides {
		if p != "" {
			positions = append(positions, i)
			toScore = append(toScore, p)
		}
	}

	var (
		outcome Outcome
		scores  []float64
		err     error
	)

	if len(toScore) > 0 {
		scores, err = s.scorer.Score(ctx, toScore)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, errors.Wrap(ctxErr, "scored model")
		}
	}

	if err != nil {
		outcome.Degraded = true
		outcome.Warnings = append(outcome.Warnings, err.Error())
	}

	if len(scores) != len(toScore) {
		if err == nil {
			outcome.Degraded = true
			outcome.Warnings = append(outcome.Warnings,
				failure.ScoreFeedf("got %d scores for %d peptides", len(scores), len(toScore)).Error())
		}

		scores = nanScores(len(toScore))
	}

	loss := make([]float64, len(peptides))
	valid := make([]float64, 0, len(scores))
	missing := 0

	for j, q := range scores {
		if math.IsNaN(q) {
			missing++
			continue
		}

		q = math.Max(0, math.Min(1, q))
		valid = append(valid, q)
		loss[positions[j]] = (1 - q) * s.scale
	}

	if missing > 0 && !outcome.Degraded {
		outcome.Degraded = true
		outcome.Warnings = append(outcome.Warnings,
			failure.ScoreFeedf("%d of %d peptides have no score", missing, len(scores)).Error())
	}

	if len(valid) > 0 {
		stats := NewScoreStats(valid, s.scale)
		stats.Missing = missing
		outcome.ScoreStats = &stats
	}

	outcome.Peptides = s.corrupt(peptides, loss)

	return outcome, nil
}

func nanScores(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}
