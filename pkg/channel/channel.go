// Package channel corrupts peptide sequences the way synthesis and
// sequencing would: residues or peptides get lost, mutated, inserted and
// swapped with their neighbours.
package channel

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// Unit is what the loss operator removes.
type Unit int

const (
	// UnitResidue drops single residues.
	UnitResidue Unit = iota
	// UnitPeptide drops whole peptides.
	UnitPeptide
)

func (u Unit) String() string {
	if u == UnitPeptide {
		return "peptide"
	}

	return "residue"
}

// Params are the operator probabilities.
type Params struct {
	Loss          float64
	Mutation      float64
	Insertion     float64
	Shuffle       float64
	ShufflePasses int
	Unit          Unit
	// KeepEmpty keeps a lost peptide as an empty placeholder so positions
	// stay aligned. Otherwise it is removed.
	KeepEmpty bool
}

// Validate checks that probabilities are in [0, 1].
func (p Params) Validate() error {
	probs := []struct {
		name  string
		value float64
	}{
		{"loss", p.Loss},
		{"mutation", p.Mutation},
		{"insertion", p.Insertion},
		{"shuffle", p.Shuffle},
	}
	for _, prob := range probs {
		if math.IsNaN(prob.value) || prob.value < 0 || prob.value > 1 {
			return failure.Configf("%s probability must be in [0, 1], got %v", prob.name, prob.value)
		}
	}

	if p.ShufflePasses < 0 {
		return failure.Configf("shuffle passes must not be negative, got %d", p.ShufflePasses)
	}

	return nil
}

// Outcome is what came out of the channel.
type Outcome struct {
	Peptides []string
	// Degraded is set when the model fell back to a weaker behaviour, for
	// example when scores could not be fetched.
	Degraded   bool
	Warnings   []string
	ScoreStats *ScoreStats
}

// Model corrupts a peptide sequence. The input slice is never modified.
type Model interface {
	Apply(ctx context.Context, peptides []string) (Outcome, error)
}

// sampler applies the operators with one seeded generator. It is safe for
// concurrent use; calls are serialised so that a seed gives one output.
type sampler struct {
	params   Params
	alphabet *peptide.Alphabet

	mu  sync.Mutex
	rng *rand.Rand
}

func newSampler(params Params, alphabet *peptide.Alphabet, seed uint64) (*sampler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if alphabet == nil {
		alphabet = peptide.DefaultAlphabet
	}

	return &sampler{
		params:   params,
		alphabet: alphabet,
		rng:      rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc909)),
	}, nil
}

// corrupt runs loss, mutation, insertion and shuffle in that order. loss
// holds the loss probability of each peptide.
func (s *sampler) corrupt(peptides []string, loss []float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.drop(peptides, loss)
	if s.params.Mutation > 0 {
		for i := range out {
			out[i] = s.mutate(out[i])
		}
	}

	if s.params.Insertion > 0 {
		for i := range out {
			out[i] = s.insert(out[i])
		}
	}

	if s.params.Shuffle > 0 && s.params.ShufflePasses > 0 {
		for i := range out {
			out[i] = s.shuffle(out[i])
		}
	}

	return out
}

func (s *sampler) drop(peptides []string, loss []float64) []string {
	out := make([]string, 0, len(peptides))

	for i, p := range peptides {
		prob := loss[i]

		switch {
		case prob <= 0:
			out = append(out, p)
		case s.params.Unit == UnitPeptide:
			if s.rng.Float64() < prob {
				if s.params.KeepEmpty {
					out = append(out, "")
				}

				continue
			}

			out = append(out, p)
		default:
			kept := make([]byte, 0, len(p))
			for j := 0; j < len(p); j++ {
				if s.rng.Float64() >= prob {
					kept = append(kept, p[j])
				}
			}

			if len(kept) > 0 || s.params.KeepEmpty {
				out = append(out, string(kept))
			}
		}
	}

	return out
}

// mutate replaces residues by a uniformly drawn different residue.
func (s *sampler) mutate(p string) string {
	n := s.alphabet.Len()
	b := []byte(p)

	for i, r := range b {
		if s.rng.Float64() >= s.params.Mutation {
			continue
		}

		cur := s.alphabet.Index(r)
		if cur < 0 {
			b[i] = s.alphabet.Residue(s.rng.IntN(n))
			continue
		}

		v := s.rng.IntN(n - 1)
		if v >= cur {
			v++
		}

		b[i] = s.alphabet.Residue(v)
	}

	return string(b)
}

// insert adds a random residue after residues drawn with the insertion probability.
func (s *sampler) insert(p string) string {
	out := make([]byte, 0, len(p)+len(p)/4)

	for i := 0; i < len(p); i++ {
		out = append(out, p[i])
		if s.rng.Float64() < s.params.Insertion {
			out = append(out, s.alphabet.Residue(s.rng.IntN(s.alphabet.Len())))
		}
	}

	return string(out)
}

// shuffle swaps each adjacent pair with the shuffle probability, once per pass.
func (s *sampler) shuffle(p string) string {
	if len(p) < 2 {
		return p
	}

	b := []byte(p)
	for pass := 0; pass < s.params.ShufflePasses; pass++ {
		for i := 0; i < len(b)-1; i++ {
			if s.rng.Float64() < s.params.Shuffle {
				b[i], b[i+1] = b[i+1], b[i]
			}
		}
	}

	return string(b)
}
