package batch

import (
	"log/slog"

	"github.com/askiada/go-pepstore/pkg/dispatch"
)

type Option func(r *runner)

// WithConcurrency sets the number of items processed at the same time.
// Values below 1 mean 1.
func WithConcurrency(concurrent int) Option {
	return func(r *runner) {
		r.concurrent = concurrent
	}
}

// WithDrawer writes a DOT graph of the batch stages, annotated with their
// measured durations, to fileName.
func WithDrawer(fileName string) Option {
	return func(r *runner) {
		r.drawerFile = fileName
	}
}

// WithLogger sets the logger of the batch and of every run.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		r.logger = logger
	}
}

// WithDispatchOptions adds options to the dispatcher shared by every item.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(r *runner) {
		r.dispatchOpts = append(r.dispatchOpts, opts...)
	}
}
