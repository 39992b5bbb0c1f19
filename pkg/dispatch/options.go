package dispatch

import (
	"log/slog"
	"time"

	"github.com/askiada/go-pepstore/pkg/channel"
)

type Option func(d *Dispatcher)

// WithLogger sets the structured logger. Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithScorer sets the score source of the scored error model.
func WithScorer(scorer channel.Scorer) Option {
	return func(d *Dispatcher) {
		d.scorer = scorer
	}
}

// WithTransport wraps t in a batch scorer configured from the score settings.
func WithTransport(t channel.Transport) Option {
	return func(d *Dispatcher) {
		d.transport = t
	}
}

// WithModel replaces the configured error model.
func WithModel(model channel.Model) Option {
	return func(d *Dispatcher) {
		d.model = model
	}
}

// WithClock sets the time source used for timings and unseeded runs.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}
