// Package pipeline runs typed stages connected by channels.
//
// A pipeline starts with a root step that produces elements, goes through any
// number of one-to-one steps, each of them with its own concurrency, and ends
// with a sink. Every step runs in its own goroutines as soon as it is added;
// Run waits for all of them. The first error of any step cancels the
// pipeline context and is returned by Run, wrapped with the step name.
//
// Options implementing model.PipelineOption observe the graph while it is
// built and every element that flows through it. The measure and drawer
// subpackages provide timing collection and a DOT rendering of the graph.
package pipeline
