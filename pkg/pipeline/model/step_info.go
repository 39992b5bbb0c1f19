package model

// StepType is the role of a step in the pipeline graph.
type StepType string

const (
	RootStepType   StepType = "root"
	NormalStepType StepType = "step"
	SinkStepType   StepType = "sink"
)

// StepInfo describes a step to the pipeline options.
type StepInfo struct {
	Type       StepType
	Name       string
	Concurrent int
}

// StartStep and EndStep are the virtual ends of every pipeline graph.
var (
	StartStep = &Step[any]{Details: &StepInfo{Name: "start", Concurrent: 1}}
	EndStep   = &Step[any]{Details: &StepInfo{Name: "end", Concurrent: 1}}
)

// Step is the typed output of a step.
type Step[O any] struct {
	Output  chan O
	Details *StepInfo
}
