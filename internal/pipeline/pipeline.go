// Package pipeline composes MongoDB aggregation pipelines from typed stages.
//
// Each read-model query is expressed as a declarative Pipeline value so that
// the stages can be inspected and tested without a running database.
package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stage is a single aggregation step.
type Stage interface {
	Document() bson.D
}

// Pipeline is an ordered list of stages executed by the store.
type Pipeline []Stage

// New returns a pipeline holding the provided stages.
func New(stages ...Stage) Pipeline {
	out := make(Pipeline, 0, len(stages))
	return append(out, stages...)
}

// Then returns a copy of the pipeline with the stages appended. The receiver
// is never modified, so a base pipeline can be shared between the count and
// slice reads of a paginated query.
func (p Pipeline) Then(stages ...Stage) Pipeline {
	out := make(Pipeline, 0, len(p)+len(stages))
	out = append(out, p...)
	return append(out, stages...)
}

// Without returns a copy of the pipeline minus the stages matched by drop.
func (p Pipeline) Without(drop func(Stage) bool) Pipeline {
	out := make(Pipeline, 0, len(p))
	for _, stage := range p {
		if drop(stage) {
			continue
		}
		out = append(out, stage)
	}
	return out
}

// Build renders the pipeline into the driver representation.
func (p Pipeline) Build() mongo.Pipeline {
	out := make(mongo.Pipeline, 0, len(p))
	for _, stage := range p {
		out = append(out, stage.Document())
	}
	return out
}

// IsSort reports whether the stage only affects ordering.
func IsSort(stage Stage) bool {
	_, ok := stage.(Sort)
	return ok
}
