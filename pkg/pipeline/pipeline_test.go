package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pepstore/pkg/pipeline"
	"github.com/askiada/go-pepstore/pkg/pipeline/drawer"
	"github.com/askiada/go-pepstore/pkg/pipeline/measure"
	"github.com/askiada/go-pepstore/pkg/pipeline/model"
)

func identity(_ context.Context, input int) (int, error) {
	return input, nil
}

func TestAddStepOneToOneNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddStepOneToOne(nil, "step", inputStep(t, 0), identity)
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddStepOneToOneNilInput(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	_, err = pipeline.AddStepOneToOne[int, int](pipe, "step", nil, identity)
	require.ErrorIs(t, err, pipeline.ErrInputMustBeSet)
}

func TestAddStepOneToOne(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		concurrent int
	}{
		"sequential":        {concurrent: 1},
		"zero concurrency":  {concurrent: 0},
		"concurrent":        {concurrent: 4},
		"more than entries": {concurrent: 20},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pipe, err := pipeline.New(context.Background())
			require.NoError(t, err)

			step, err := pipeline.AddStepOneToOne(pipe, "double", inputStep(t, 10), func(_ context.Context, input int) (int, error) {
				return input * 2, nil
			}, pipeline.StepConcurrency[int](tc.concurrent))
			require.NoError(t, err)

			var got []int

			done := make(chan struct{})

			go func() {
				got = processOutputChan(t, step.Output)

				close(done)
			}()

			require.NoError(t, pipe.Run())
			<-done
			assert.ElementsMatch(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got)
			assert.GreaterOrEqual(t, step.Details.Concurrent, 1)
		})
	}
}

func TestAddStepOneToOneError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "failing", inputStep(t, 10), func(_ context.Context, input int) (int, error) {
		if input == 5 {
			return 0, assert.AnError
		}

		return input, nil
	}, pipeline.StepConcurrency[int](2))
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		processOutputChan(t, step.Output)
		close(done)
	}()

	err = pipe.Run()
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failing")
	<-done
}

func TestAddStepOneToOneCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe, err := pipeline.New(ctx)
	require.NoError(t, err)

	input := &model.Step[int]{
		Output:  createInputChanWithCancel(t, 10, 5, cancel),
		Details: &model.StepInfo{Name: "input"},
	}
	step, err := pipeline.AddStepOneToOne(pipe, "step", input, func(ctx context.Context, input int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
			return input, nil
		}
	})
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		processOutputChan(t, step.Output)
		close(done)
	}()

	err = pipe.Run()
	require.ErrorIs(t, err, context.Canceled)
	<-done
}

func TestAddRootStepNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddRootStep(nil, "root", func(_ context.Context, _ chan<- int) error {
		return nil
	})
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddRootStep(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "root", func(ctx context.Context, rootChan chan<- int) error {
		for i := range 10 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.RootStepType, root.Details.Type)

	var got []int

	done := make(chan struct{})

	go func() {
		got = processOutputChan(t, root.Output)

		close(done)
	}()

	require.NoError(t, pipe.Run())
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestAddRootStepError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "root", func(_ context.Context, rootChan chan<- int) error {
		rootChan <- 1

		return assert.AnError
	})
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		processOutputChan(t, root.Output)
		close(done)
	}()

	require.ErrorIs(t, pipe.Run(), assert.AnError)
	<-done
}

func TestAddSinkNilPipe(t *testing.T) {
	t.Parallel()

	err := pipeline.AddSink(nil, "sink", inputStep(t, 0), func(_ context.Context, _ int) error {
		return nil
	})
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddSinkNilInput(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	err = pipeline.AddSink[int](pipe, "sink", nil, func(_ context.Context, _ int) error {
		return nil
	})
	require.ErrorIs(t, err, pipeline.ErrInputMustBeSet)
}

func TestAddSink(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	got := []int{}
	err = pipeline.AddSink(pipe, "sink", inputStep(t, 5), func(_ context.Context, input int) error {
		got = append(got, input)

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, pipe.Run())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestAddSinkError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	err = pipeline.AddSink(pipe, "collect", inputStep(t, 10), func(_ context.Context, input int) error {
		if input == 3 {
			return assert.AnError
		}

		return nil
	})
	require.NoError(t, err)

	err = pipe.Run()
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "collect")
}

type hookOption struct {
	newErr     error
	prepareErr error
	finishErr  error
	outputs    int
	finished   bool
}

func (o *hookOption) New() error { return o.newErr }

func (o *hookOption) PrepareStep(_, _ *model.StepInfo) error { return o.prepareErr }

func (o *hookOption) OnStepOutput(_, _ *model.StepInfo, _, _ time.Duration) error {
	o.outputs++

	return nil
}

func (o *hookOption) PrepareSink(_, _ *model.StepInfo) error { return o.prepareErr }

func (o *hookOption) OnSinkOutput(_, _ *model.StepInfo, _, _ time.Duration) error { return nil }

func (o *hookOption) AfterSink(_ *model.StepInfo, _ time.Duration) error { return nil }

func (o *hookOption) Finish() error {
	o.finished = true

	return o.finishErr
}

func TestPipelineOptionErrors(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New(context.Background(), &hookOption{newErr: assert.AnError})
	require.ErrorIs(t, err, assert.AnError)

	pipe, err := pipeline.New(context.Background(), &hookOption{prepareErr: assert.AnError})
	require.NoError(t, err)
	_, err = pipeline.AddStepOneToOne(pipe, "step", inputStep(t, 0), identity)
	require.ErrorIs(t, err, assert.AnError)
	err = pipeline.AddSink(pipe, "sink", inputStep(t, 0), func(_ context.Context, _ int) error { return nil })
	require.ErrorIs(t, err, assert.AnError)

	opt := &hookOption{finishErr: assert.AnError}
	pipe, err = pipeline.New(context.Background(), opt)
	require.NoError(t, err)
	require.ErrorIs(t, pipe.Run(), assert.AnError)
	assert.True(t, opt.finished)
}

func TestPipelineOptionHooks(t *testing.T) {
	t.Parallel()

	opt := &hookOption{}
	pipe, err := pipeline.New(context.Background(), opt)
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "step", inputStep(t, 7), identity)
	require.NoError(t, err)
	require.NoError(t, pipeline.AddSink(pipe, "sink", step, func(_ context.Context, _ int) error { return nil }))

	require.NoError(t, pipe.Run())
	assert.Equal(t, 7, opt.outputs)
	assert.True(t, opt.finished)
}

func TestMeasuredPipeline(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	dotFile := filepath.Join(t.TempDir(), "pipeline.dot")

	pipe, err := pipeline.New(context.Background(),
		measure.PipelineMeasure(msr),
		drawer.PipelineDrawer(drawer.NewDOTDrawer(dotFile), msr),
	)
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "load", func(ctx context.Context, rootChan chan<- int) error {
		for i := range 20 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)

	squares, err := pipeline.AddStepOneToOne(pipe, "square", root, func(_ context.Context, input int) (int, error) {
		time.Sleep(time.Millisecond)

		return input * input, nil
	}, pipeline.StepConcurrency[int](4))
	require.NoError(t, err)

	sum := 0
	err = pipeline.AddSink(pipe, "collect", squares, func(_ context.Context, input int) error {
		sum += input

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, pipe.Run())
	assert.Equal(t, 2470, sum)

	square := msr.GetMetric("square")
	require.NotNil(t, square)
	assert.Positive(t, square.AVGDuration())
	assert.Contains(t, square.AVGTransportDuration(), "load")
	assert.Contains(t, msr.GetMetric("collect").AVGTransportDuration(), "square")
	assert.Positive(t, msr.GetMetric("collect").GetTotalDuration())

	content, err := os.ReadFile(dotFile)
	require.NoError(t, err)

	dot := string(content)
	assert.Contains(t, dot, "strict digraph")
	assert.Contains(t, dot, `rankdir="LR"`)
	assert.Contains(t, dot, `"start" -> "load"`)
	assert.Contains(t, dot, `"load" -> "square"`)
	assert.Contains(t, dot, `"square" -> "collect"`)
	assert.Contains(t, dot, `"collect" -> "end"`)
}
