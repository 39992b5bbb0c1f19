package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-pepstore/pkg/pipeline/model"
)

type oneToOneFunc[I, O any] func(context.Context, I) (O, error)

func sequentialOneToOneFn[I, O any](ctx context.Context, p *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], fn oneToOneFunc[I, O]) error {
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}

			startFn := time.Now()
			out, err := fn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d", goIdx)
			}
			endFn := time.Since(startFn)

			// the context is checked again so that no goroutine keeps pushing
			// to a cancelled pipeline
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
			case output.Output <- out:
			}

			err = p.onStepOutput(input.Details, output.Details, time.Since(start), endFn)
			if err != nil {
				return err
			}
		}
	}
}

func concurrentOneToOneFn[I, O any](ctx context.Context, p *Pipeline, input *model.Step[I], output *model.Step[O], fn oneToOneFunc[I, O]) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	// each consumer stops as soon as one of them fails
	for goIdx := range output.Details.Concurrent {
		errGrp.Go(func() error {
			return sequentialOneToOneFn(dCtx, p, goIdx, input, output, fn)
		})
	}

	return errGrp.Wait()
}

func oneToOne[I, O any](ctx context.Context, p *Pipeline, input *model.Step[I], output *model.Step[O], fn oneToOneFunc[I, O]) error {
	if output.Details.Concurrent < 1 {
		output.Details.Concurrent = 1
	}
	if output.Details.Concurrent == 1 {
		return sequentialOneToOneFn(ctx, p, 0, input, output, fn)
	}

	return concurrentOneToOneFn(ctx, p, input, output, fn)
}

// AddStepOneToOne consumes input with fn and pushes one element per input
// element. The output order follows completion, not input order, when the
// step runs concurrently.
func AddStepOneToOne[I, O any](p *Pipeline, name string, input *model.Step[I], fn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}

	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       model.NormalStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: make(chan O),
	}
	for _, opt := range opts {
		opt(step)
	}

	err := p.prepareStep(input.Details, step.Details)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(name, errC)

	go func() {
		defer func() {
			close(errC)
			close(step.Output)
		}()

		err := oneToOne(p.ctx, p, input, step, fn)
		if err != nil {
			errC <- err
		}
	}()
	p.errcList.add(decoratedError)

	return step, nil
}
