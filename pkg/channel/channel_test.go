package channel_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pepstore/pkg/channel"
	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

var clean = []string{"AVLSTFYEAV", "EEEEEEEEEE", "AAAAAVVVVV", "LSLSLSLSLS"}

func basic(t *testing.T, params channel.Params, seed uint64) *channel.Basic {
	t.Helper()

	m, err := channel.NewBasic(params, peptide.DefaultAlphabet, seed)
	require.NoError(t, err)

	return m
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		params  channel.Params
		wantErr bool
	}{
		"zero":              {params: channel.Params{}},
		"ones":              {params: channel.Params{Loss: 1, Mutation: 1, Insertion: 1, Shuffle: 1, ShufflePasses: 3}},
		"negative loss":     {params: channel.Params{Loss: -0.1}, wantErr: true},
		"mutation above 1":  {params: channel.Params{Mutation: 1.5}, wantErr: true},
		"negative passes":   {params: channel.Params{ShufflePasses: -1}, wantErr: true},
		"insertion too big": {params: channel.Params{Insertion: 2}, wantErr: true},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tc.params.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, failure.ErrConfig)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestBasicNoNoise(t *testing.T) {
	t.Parallel()

	in := append([]string(nil), clean...)
	out, err := basic(t, channel.Params{ShufflePasses: 1}, 1).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, clean, out.Peptides)
	assert.False(t, out.Degraded)
	assert.Nil(t, out.ScoreStats)

	out.Peptides[0] = "changed"
	assert.Equal(t, clean, in)
}

func TestBasicDeterministic(t *testing.T) {
	t.Parallel()

	params := channel.Params{Loss: 0.1, Mutation: 0.2, Insertion: 0.1, Shuffle: 0.3, ShufflePasses: 2}

	a, err := basic(t, params, 42).Apply(context.Background(), clean)
	require.NoError(t, err)
	b, err := basic(t, params, 42).Apply(context.Background(), clean)
	require.NoError(t, err)

	assert.Equal(t, a.Peptides, b.Peptides)
}

func TestBasicLoss(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		params channel.Params
		want   []string
	}{
		"peptides removed": {
			params: channel.Params{Loss: 1, Unit: channel.UnitPeptide},
			want:   []string{},
		},
		"peptides kept empty": {
			params: channel.Params{Loss: 1, Unit: channel.UnitPeptide, KeepEmpty: true},
			want:   []string{"", "", "", ""},
		},
		"residues removed": {
			params: channel.Params{Loss: 1},
			want:   []string{},
		},
		"residues kept empty": {
			params: channel.Params{Loss: 1, KeepEmpty: true},
			want:   []string{"", "", "", ""},
		},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out, err := basic(t, tc.params, 7).Apply(context.Background(), clean)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Peptides)
		})
	}
}

func TestBasicResidueLossShortens(t *testing.T) {
	t.Parallel()

	in := []string{strings.Repeat("AVLSTFYE", 50)}
	out, err := basic(t, channel.Params{Loss: 0.5}, 3).Apply(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Peptides, 1)
	assert.Less(t, len(out.Peptides[0]), len(in[0]))
	assert.Greater(t, len(out.Peptides[0]), 0)
}

func TestBasicMutationChangesEveryResidue(t *testing.T) {
	t.Parallel()

	out, err := basic(t, channel.Params{Mutation: 1}, 9).Apply(context.Background(), clean)
	require.NoError(t, err)
	require.Len(t, out.Peptides, len(clean))

	for i, p := range out.Peptides {
		require.Len(t, p, len(clean[i]))
		assert.True(t, peptide.DefaultAlphabet.Valid(p))

		for j := range p {
			assert.NotEqual(t, clean[i][j], p[j], "peptide %d residue %d", i, j)
		}
	}
}

func TestBasicInsertionAfter(t *testing.T) {
	t.Parallel()

	out, err := basic(t, channel.Params{Insertion: 1}, 11).Apply(context.Background(), clean)
	require.NoError(t, err)

	for i, p := range out.Peptides {
		require.Len(t, p, 2*len(clean[i]))

		for j := range clean[i] {
			assert.Equal(t, clean[i][j], p[2*j])
		}
	}
}

func TestBasicShuffle(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		passes int
		want   string
	}{
		"no pass":    {passes: 0, want: "AVLS"},
		"one pass":   {passes: 1, want: "VLSA"},
		"two passes": {passes: 2, want: "LSAV"},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			params := channel.Params{Shuffle: 1, ShufflePasses: tc.passes}
			out, err := basic(t, params, 1).Apply(context.Background(), []string{"AVLS", "E"})
			require.NoError(t, err)
			assert.Equal(t, []string{tc.want, "E"}, out.Peptides)
		})
	}
}

func TestBasicConcurrentApply(t *testing.T) {
	t.Parallel()

	m := basic(t, channel.Params{Loss: 0.1, Mutation: 0.1, Insertion: 0.1, Shuffle: 0.1, ShufflePasses: 1}, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := m.Apply(context.Background(), clean)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
}

func TestBasicCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := basic(t, channel.Params{}, 1).Apply(ctx, clean)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewBasicInvalid(t *testing.T) {
	t.Parallel()

	_, err := channel.NewBasic(channel.Params{Loss: 3}, nil, 1)
	require.ErrorIs(t, err, failure.ErrConfig)
}
