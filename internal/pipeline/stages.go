package pipeline

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Match filters documents. A nil filter matches everything.
type Match struct {
	Filter bson.D
}

// Document implements Stage.
func (m Match) Document() bson.D {
	filter := m.Filter
	if filter == nil {
		filter = bson.D{}
	}
	return bson.D{{Key: "$match", Value: filter}}
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Match {
	return Match{Filter: bson.D{{Key: field, Value: value}}}
}

// And merges several filters into one Match, skipping empty ones.
func And(filters ...bson.D) Match {
	var merged bson.D
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		merged = append(merged, f...)
	}
	return Match{Filter: merged}
}

// Lookup is a left outer join into another collection. The joined documents
// land in As as an array, empty when nothing matches.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	// Pipeline runs against the joined documents before they are attached.
	Pipeline Pipeline
}

// Document implements Stage.
func (l Lookup) Document() bson.D {
	spec := bson.D{{Key: "from", Value: l.From}}
	if l.LocalField != "" {
		spec = append(spec,
			bson.E{Key: "localField", Value: l.LocalField},
			bson.E{Key: "foreignField", Value: l.ForeignField},
		)
	}
	if len(l.Pipeline) > 0 || l.LocalField == "" {
		spec = append(spec, bson.E{Key: "pipeline", Value: l.Pipeline.Build()})
	}
	spec = append(spec, bson.E{Key: "as", Value: l.As})
	return bson.D{{Key: "$lookup", Value: spec}}
}

// Unwind flattens an array field into one document per element.
type Unwind struct {
	Path string
	// PreserveEmpty keeps documents whose array is missing or empty.
	PreserveEmpty bool
	// IndexField, when set, records the element position.
	IndexField string
}

// Document implements Stage.
func (u Unwind) Document() bson.D {
	path := Field(u.Path)
	if !u.PreserveEmpty && u.IndexField == "" {
		return bson.D{{Key: "$unwind", Value: path}}
	}
	spec := bson.D{{Key: "path", Value: path}}
	if u.IndexField != "" {
		spec = append(spec, bson.E{Key: "includeArrayIndex", Value: u.IndexField})
	}
	if u.PreserveEmpty {
		spec = append(spec, bson.E{Key: "preserveNullAndEmptyArrays", Value: true})
	}
	return bson.D{{Key: "$unwind", Value: spec}}
}

// JoinOne joins a single related document and flattens it into As. Documents
// without a match are kept and carry no As field.
func JoinOne(from, localField, foreignField, as string, sub ...Stage) Pipeline {
	return New(
		Lookup{From: from, LocalField: localField, ForeignField: foreignField, As: as, Pipeline: New(sub...)},
		Unwind{Path: as, PreserveEmpty: true},
	)
}

// Derive adds computed fields.
type Derive struct {
	Fields bson.D
}

// Document implements Stage.
func (d Derive) Document() bson.D {
	return bson.D{{Key: "$addFields", Value: d.Fields}}
}

// Project is an output whitelist. Only the listed fields (plus _id unless
// excluded) survive.
type Project struct {
	Fields bson.D
}

// Include projects the named fields as-is.
func Include(fields ...string) Project {
	spec := make(bson.D, 0, len(fields))
	for _, f := range fields {
		spec = append(spec, bson.E{Key: f, Value: 1})
	}
	return Project{Fields: spec}
}

// With returns a copy of the projection with an extra computed field.
func (p Project) With(field string, expr any) Project {
	spec := make(bson.D, 0, len(p.Fields)+1)
	spec = append(spec, p.Fields...)
	return Project{Fields: append(spec, bson.E{Key: field, Value: expr})}
}

// Document implements Stage.
func (p Project) Document() bson.D {
	return bson.D{{Key: "$project", Value: p.Fields}}
}

// Sort orders documents by one or more keys.
type Sort struct {
	Keys bson.D
}

// Document implements Stage.
func (s Sort) Document() bson.D {
	return bson.D{{Key: "$sort", Value: s.Keys}}
}

// Skip drops the first n documents.
type Skip int64

// Document implements Stage.
func (s Skip) Document() bson.D {
	return bson.D{{Key: "$skip", Value: int64(s)}}
}

// Limit caps the number of documents.
type Limit int64

// Document implements Stage.
func (l Limit) Document() bson.D {
	return bson.D{{Key: "$limit", Value: int64(l)}}
}

// Count replaces the stream with a single document {<name>: n}. An empty
// input produces no document at all.
type Count string

// Document implements Stage.
func (c Count) Document() bson.D {
	return bson.D{{Key: "$count", Value: string(c)}}
}

// Group aggregates documents by ID.
type Group struct {
	ID     any
	Fields bson.D
}

// Document implements Stage.
func (g Group) Document() bson.D {
	spec := bson.D{{Key: "_id", Value: g.ID}}
	return bson.D{{Key: "$group", Value: append(spec, g.Fields...)}}
}

// ReplaceRoot promotes an embedded document to the top level.
type ReplaceRoot struct {
	With any
}

// Document implements Stage.
func (r ReplaceRoot) Document() bson.D {
	with := r.With
	if s, ok := with.(string); ok && !strings.HasPrefix(s, "$") {
		with = Field(s)
	}
	return bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: with}}}}
}
