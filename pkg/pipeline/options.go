package pipeline

import "github.com/askiada/go-pepstore/pkg/pipeline/model"

// StepOption configures a step before it starts.
type StepOption[O any] func(s *model.Step[O])

// StepConcurrency sets the number of goroutines consuming the step input.
// Values below 1 mean 1.
func StepConcurrency[O any](concurrent int) StepOption[O] {
	return func(s *model.Step[O]) {
		if concurrent < 1 {
			concurrent = 1
		}
		s.Details.Concurrent = concurrent
	}
}
