// Package batch stores and recovers many independent items with the same
// configuration.
package batch

import (
	"context"
	"io"
	"log/slog"
	"runtime"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/config"
	"github.com/askiada/go-pepstore/pkg/dispatch"
	"github.com/askiada/go-pepstore/pkg/pipeline"
	"github.com/askiada/go-pepstore/pkg/pipeline/drawer"
	"github.com/askiada/go-pepstore/pkg/pipeline/measure"
	"github.com/askiada/go-pepstore/pkg/pipeline/model"
)

// Item is one input of a batch.
type Item struct {
	Name string
	Data []byte
}

type runner struct {
	concurrent   int
	drawerFile   string
	logger       *slog.Logger
	dispatchOpts []dispatch.Option
}

type indexed[T any] struct {
	idx int
	val T
}

// Run processes items through a load, dispatch and collect pipeline and
// returns one result per item, in input order. Data problems of an item are
// recorded in its result and never stop the other items. A configuration
// problem or a cancelled context aborts the batch.
func Run(ctx context.Context, cfg config.Config, items []Item, opts ...Option) ([]dispatch.Result, error) {
	r := &runner{
		concurrent: runtime.GOMAXPROCS(0),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	d, err := dispatch.New(cfg, append([]dispatch.Option{dispatch.WithLogger(r.logger)}, r.dispatchOpts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create dispatcher")
	}

	pipe, err := pipeline.New(ctx, r.pipelineOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	load, err := pipeline.AddRootStep(pipe, "load", func(ctx context.Context, rootChan chan<- indexed[Item]) error {
		for idx, item := range items {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- indexed[Item]{idx: idx, val: item}:
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to add load step")
	}

	runs, err := pipeline.AddStepOneToOne(pipe, "dispatch", load, func(ctx context.Context, in indexed[Item]) (indexed[dispatch.Result], error) {
		res, err := d.RunNamed(ctx, in.val.Name, in.val.Data)
		if err != nil {
			return indexed[dispatch.Result]{}, errors.Wrapf(err, "item %q", in.val.Name)
		}

		return indexed[dispatch.Result]{idx: in.idx, val: res}, nil
	}, pipeline.StepConcurrency[indexed[dispatch.Result]](r.concurrent))
	if err != nil {
		return nil, errors.Wrap(err, "unable to add dispatch step")
	}

	results := make([]dispatch.Result, len(items))

	err = pipeline.AddSink(pipe, "collect", runs, func(_ context.Context, in indexed[dispatch.Result]) error {
		results[in.idx] = in.val

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to add collect step")
	}

	err = pipe.Run()
	if err != nil {
		r.logger.ErrorContext(ctx, "batch aborted", slog.Any("error", err))

		return nil, err
	}

	summary := Summarize(results)
	r.logger.InfoContext(ctx, "batch finished",
		slog.Int("items", summary.Items),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("degraded", summary.Degraded),
		slog.Float64("mean_bit_error_rate", summary.MeanBER),
	)

	return results, nil
}

func (r *runner) pipelineOptions() []model.PipelineOption {
	if r.drawerFile == "" {
		return nil
	}

	msr := measure.NewDefaultMeasure()

	return []model.PipelineOption{
		measure.PipelineMeasure(msr),
		drawer.PipelineDrawer(drawer.NewDOTDrawer(r.drawerFile), msr),
	}
}
