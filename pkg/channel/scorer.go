package channel

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// Transport performs one score request for a batch of peptides.
type Transport interface {
	Score(ctx context.Context, peptides []string) ([]float64, error)
}

// TransportFunc adapts a function to a Transport.
type TransportFunc func(ctx context.Context, peptides []string) ([]float64, error)

// Score calls f.
func (f TransportFunc) Score(ctx context.Context, peptides []string) ([]float64, error) {
	return f(ctx, peptides)
}

// BatchScorer is a Scorer that splits peptides into upload-sized batches and
// retries each batch on its own.
type BatchScorer struct {
	transport       Transport
	batchSize       int
	maxPayloadBytes int
	timeout         time.Duration
	retry           RetryPolicy
	sleep           Sleeper
}

var _ Scorer = (*BatchScorer)(nil)

type BatchScorerOption func(b *BatchScorer)

// WithBatchSize bounds the number of peptides per request.
func WithBatchSize(n int) BatchScorerOption {
	return func(b *BatchScorer) {
		b.batchSize = n
	}
}

// WithMaxPayloadBytes bounds the newline-joined size of a request.
func WithMaxPayloadBytes(n int) BatchScorerOption {
	return func(b *BatchScorer) {
		b.maxPayloadBytes = n
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) BatchScorerOption {
	return func(b *BatchScorer) {
		b.timeout = d
	}
}

func WithRetryPolicy(p RetryPolicy) BatchScorerOption {
	return func(b *BatchScorer) {
		b.retry = p
	}
}

func WithSleeper(s Sleeper) BatchScorerOption {
	return func(b *BatchScorer) {
		b.sleep = s
	}
}

// NewBatchScorer returns a scorer calling t.
func NewBatchScorer(t Transport, opts ...BatchScorerOption) (*BatchScorer, error) {
	b := &BatchScorer{
		transport:       t,
		batchSize:       5000,
		maxPayloadBytes: 200000,
		timeout:         30 * time.Second,
		retry:           DefaultRetryPolicy(),
		sleep:           SleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}

	switch {
	case b.transport == nil:
		return nil, failure.Configf("batch scorer needs a transport")
	case b.batchSize <= 0:
		return nil, failure.Configf("score batch size must be positive, got %d", b.batchSize)
	case b.maxPayloadBytes <= 0:
		return nil, failure.Configf("score batch payload must be positive, got %d", b.maxPayloadBytes)
	case b.timeout <= 0:
		return nil, failure.Configf("score timeout must be positive, got %s", b.timeout)
	}

	return b, nil
}

// Score returns one score per peptide. Batches that still fail once their
// retry window is spent get NaN scores, and the returned error wraps
// failure.ErrScoreFeed.
func (b *BatchScorer) Score(ctx context.Context, peptides []string) ([]float64, error) {
	batches := SplitBatches(peptides, b.batchSize, b.maxPayloadBytes)
	out := make([]float64, 0, len(peptides))

	var (
		failed  int
		lastErr error
	)

	for i, batch := range batches {
		scores, err := b.scoreBatch(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(ctxErr, "score feed")
			}

			failed++
			lastErr = errors.Wrapf(err, "batch %d/%d", i+1, len(batches))
			scores = nanScores(len(batch))
		}

		out = append(out, scores...)
	}

	if failed > 0 {
		return out, failure.ScoreFeedf("%d of %d batches failed: %v", failed, len(batches), lastErr)
	}

	return out, nil
}

func (b *BatchScorer) scoreBatch(ctx context.Context, batch []string) ([]float64, error) {
	delays := b.retry.Delays()

	var lastErr error

	for attempt := 0; ; attempt++ {
		scores, err := b.request(ctx, batch)
		if err == nil {
			return scores, nil
		}

		lastErr = err
		if attempt >= len(delays) {
			break
		}

		if err := b.sleep(ctx, delays[attempt]); err != nil {
			return nil, err
		}
	}

	return nil, errors.Wrapf(lastErr, "after %d attempts", len(delays)+1)
}

func (b *BatchScorer) request(ctx context.Context, batch []string) ([]float64, error) {
	rctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	scores, err := b.transport.Score(rctx, batch)
	if err != nil {
		return nil, err
	}

	if len(scores) != len(batch) {
		return nil, errors.Errorf("got %d scores for %d peptides", len(scores), len(batch))
	}

	for _, q := range scores {
		if math.IsNaN(q) {
			return nil, errors.New("score is not a number")
		}
	}

	return scores, nil
}

// SplitBatches cuts peptides into consecutive batches of at most maxCount
// peptides whose newline-joined size is at most maxBytes. A peptide larger
// than maxBytes gets a batch of its own. Non-positive limits are ignored.
func SplitBatches(peptides []string, maxCount, maxBytes int) [][]string {
	var (
		batches [][]string
		current []string
		size    int
	)

	for _, p := range peptides {
		added := len(p)
		if len(current) > 0 {
			added++
		}

		full := maxCount > 0 && len(current) >= maxCount
		tooBig := maxBytes > 0 && size+added > maxBytes

		if len(current) > 0 && (full || tooBig) {
			batches = append(batches, current)
			current = []string{p}
			size = len(p)

			continue
		}

		current = append(current, p)
		size += added
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}
