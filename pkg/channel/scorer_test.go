package channel_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pepstore/pkg/channel"
	"github.com/askiada/go-pepstore/pkg/failure"
)

var errUnavailable = errors.New("unavailable")

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)

	return nil
}

func constant(q float64) channel.TransportFunc {
	return func(_ context.Context, peptides []string) ([]float64, error) {
		out := make([]float64, len(peptides))
		for i := range out {
			out[i] = q
		}

		return out, nil
	}
}

func TestSplitBatches(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		peptides []string
		count    int
		bytes    int
		want     [][]string
	}{
		"empty": {
			want: nil,
		},
		"by count": {
			peptides: []string{"A", "B", "C", "D", "E"},
			count:    2,
			bytes:    100,
			want:     [][]string{{"A", "B"}, {"C", "D"}, {"E"}},
		},
		"by payload": {
			peptides: []string{"AAAA", "BBBB", "CC"},
			count:    10,
			bytes:    9,
			want:     [][]string{{"AAAA", "BBBB"}, {"CC"}},
		},
		"oversized peptide": {
			peptides: []string{"AA", "AAAAAAAAAA", "A"},
			count:    10,
			bytes:    5,
			want:     [][]string{{"AA"}, {"AAAAAAAAAA"}, {"A"}},
		},
		"no limits": {
			peptides: []string{"A", "B"},
			want:     [][]string{{"A", "B"}},
		},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, channel.SplitBatches(tc.peptides, tc.count, tc.bytes))
		})
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		policy channel.RetryPolicy
		want   []time.Duration
	}{
		"default": {
			policy: channel.DefaultRetryPolicy(),
			want: []time.Duration{
				time.Second,
				1500 * time.Millisecond,
				2250 * time.Millisecond,
				3375 * time.Millisecond,
				5062500 * time.Microsecond,
				7593750 * time.Microsecond,
				9218750 * time.Microsecond,
			},
		},
		"flat": {
			policy: channel.RetryPolicy{Initial: time.Second, MaxWindow: 3 * time.Second},
			want:   []time.Duration{time.Second, time.Second, time.Second},
		},
		"window below initial": {
			policy: channel.RetryPolicy{Initial: 2 * time.Second, MaxWindow: time.Second, Multiplier: 2},
			want:   []time.Duration{2 * time.Second},
		},
		"disabled": {
			policy: channel.RetryPolicy{},
			want:   nil,
		},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.policy.Delays()
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBatchScorerRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	transport := channel.TransportFunc(func(ctx context.Context, peptides []string) ([]float64, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)

		calls++
		if calls < 3 {
			return nil, errUnavailable
		}

		return constant(0.5)(ctx, peptides)
	})

	rec := &sleepRecorder{}
	scorer, err := channel.NewBatchScorer(transport, channel.WithSleeper(rec.sleep))
	require.NoError(t, err)

	got, err := scorer.Score(context.Background(), []string{"AV", "LS"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, rec.delays)
}

func TestBatchScorerFailedBatch(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts = map[string]int{}
	)

	transport := channel.TransportFunc(func(ctx context.Context, peptides []string) ([]float64, error) {
		key := strings.Join(peptides, ",")

		mu.Lock()
		attempts[key]++
		mu.Unlock()

		for _, p := range peptides {
			if p == "BAD" {
				return nil, errUnavailable
			}
		}

		return constant(1)(ctx, peptides)
	})

	rec := &sleepRecorder{}
	scorer, err := channel.NewBatchScorer(transport,
		channel.WithBatchSize(2),
		channel.WithRetryPolicy(channel.RetryPolicy{Initial: time.Millisecond, MaxWindow: 2 * time.Millisecond, Multiplier: 1}),
		channel.WithSleeper(rec.sleep),
	)
	require.NoError(t, err)

	got, err := scorer.Score(context.Background(), []string{"AA", "VV", "BAD", "LL", "SS"})
	require.ErrorIs(t, err, failure.ErrScoreFeed)
	require.Len(t, got, 5)

	assert.Equal(t, []float64{1, 1}, got[:2])
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[3]))
	assert.Equal(t, 1.0, got[4])
	assert.Equal(t, 3, attempts["BAD,LL"])
	assert.Equal(t, 1, attempts["AA,VV"])
}

func TestBatchScorerLengthMismatch(t *testing.T) {
	t.Parallel()

	transport := channel.TransportFunc(func(context.Context, []string) ([]float64, error) {
		return []float64{0.1}, nil
	})

	scorer, err := channel.NewBatchScorer(transport, channel.WithRetryPolicy(channel.RetryPolicy{}))
	require.NoError(t, err)

	got, err := scorer.Score(context.Background(), []string{"AV", "LS"})
	require.ErrorIs(t, err, failure.ErrScoreFeed)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0]))
}

func TestBatchScorerCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	transport := channel.TransportFunc(func(context.Context, []string) ([]float64, error) {
		cancel()
		return nil, errUnavailable
	})

	scorer, err := channel.NewBatchScorer(transport)
	require.NoError(t, err)

	_, err = scorer.Score(ctx, []string{"AV"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewBatchScorerInvalid(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		transport channel.Transport
		opts      []channel.BatchScorerOption
	}{
		"no transport":  {},
		"batch size":    {transport: constant(1), opts: []channel.BatchScorerOption{channel.WithBatchSize(0)}},
		"payload bytes": {transport: constant(1), opts: []channel.BatchScorerOption{channel.WithMaxPayloadBytes(-1)}},
		"timeout":       {transport: constant(1), opts: []channel.BatchScorerOption{channel.WithRequestTimeout(0)}},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := channel.NewBatchScorer(tc.transport, tc.opts...)
			require.ErrorIs(t, err, failure.ErrConfig)
		})
	}
}
