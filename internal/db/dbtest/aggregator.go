// Package dbtest provides in-memory stand-ins for the database seams.
package dbtest

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Aggregator records every pipeline it receives and answers with the
// documents returned by Respond.
type Aggregator struct {
	Respond func(pipeline mongo.Pipeline) ([]interface{}, error)

	mu        sync.Mutex
	pipelines []mongo.Pipeline
}

// Aggregate implements db.Aggregator.
func (a *Aggregator) Aggregate(_ context.Context, pipeline interface{}, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	p, _ := pipeline.(mongo.Pipeline)

	a.mu.Lock()
	a.pipelines = append(a.pipelines, p)
	a.mu.Unlock()

	var docs []interface{}
	if a.Respond != nil {
		var err error
		docs, err = a.Respond(p)
		if err != nil {
			return nil, err
		}
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

// Pipelines returns the pipelines received so far.
func (a *Aggregator) Pipelines() []mongo.Pipeline {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]mongo.Pipeline, len(a.pipelines))
	copy(out, a.pipelines)
	return out
}

// Returning answers every pipeline with the same documents.
func Returning(docs ...interface{}) *Aggregator {
	return &Aggregator{Respond: func(mongo.Pipeline) ([]interface{}, error) { return docs, nil }}
}

// StageNames lists the operator of each stage, e.g. "$match".
func StageNames(p mongo.Pipeline) []string {
	names := make([]string, 0, len(p))
	for _, stage := range p {
		if len(stage) > 0 {
			names = append(names, stage[0].Key)
		}
	}
	return names
}

// FindStage returns the value of the first stage with the given operator.
func FindStage(p mongo.Pipeline, operator string) (interface{}, bool) {
	for _, stage := range p {
		if len(stage) > 0 && stage[0].Key == operator {
			return stage[0].Value, true
		}
	}
	return nil, false
}

// IsCount reports whether the pipeline ends in a $count stage.
func IsCount(p mongo.Pipeline) bool {
	if len(p) == 0 {
		return false
	}
	last := p[len(p)-1]
	return len(last) > 0 && last[0].Key == "$count"
}

// CountDoc is the single document a $count stage named "total" produces.
func CountDoc(total int64) bson.D {
	return bson.D{{Key: "total", Value: total}}
}
