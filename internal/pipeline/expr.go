package pipeline

import (
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrInvalidSort indicates an unusable sort field or direction.
var ErrInvalidSort = errors.New("invalid sort")

// Direction is a sort direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// DefaultSortField is the creation timestamp every entity carries.
const DefaultSortField = "createdAt"

var sortFieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field turns a document path into a field reference expression.
func Field(path string) string {
	return "$" + strings.TrimPrefix(path, "$")
}

// SortBy orders by field and then by _id, so pages never overlap when the
// primary key has ties.
func SortBy(field string, dir Direction) Sort {
	keys := bson.D{{Key: field, Value: int(dir)}}
	if field != "_id" {
		keys = append(keys, bson.E{Key: "_id", Value: int(dir)})
	}
	return Sort{Keys: keys}
}

// NewestFirst is the default ordering.
func NewestFirst() Sort {
	return SortBy(DefaultSortField, Descending)
}

// ParseSort converts caller supplied sort parameters. An empty field means
// newest first; an empty direction means descending.
func ParseSort(field, direction string) (Sort, error) {
	field = strings.TrimSpace(field)
	direction = strings.ToLower(strings.TrimSpace(direction))

	dir := Descending
	switch direction {
	case "", "desc", "-1":
	case "asc", "1":
		dir = Ascending
	default:
		return Sort{}, ErrInvalidSort
	}

	if field == "" {
		field = DefaultSortField
	}
	if !sortFieldRe.MatchString(field) {
		return Sort{}, ErrInvalidSort
	}
	return SortBy(field, dir), nil
}

// SearchText builds a case-insensitive substring filter over the given
// fields. The query is matched literally. An empty query yields nil.
func SearchText(query string, fields ...string) bson.D {
	query = strings.TrimSpace(query)
	if query == "" || len(fields) == 0 {
		return nil
	}
	pattern := regexp.QuoteMeta(query)
	alternatives := make(bson.A, 0, len(fields))
	for _, f := range fields {
		alternatives = append(alternatives, bson.D{{Key: f, Value: bson.D{
			{Key: "$regex", Value: pattern},
			{Key: "$options", Value: "i"},
		}}})
	}
	return bson.D{{Key: "$or", Value: alternatives}}
}

// Size counts the elements of an array field; a missing array counts as 0.
func Size(path string) bson.D {
	return bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{Field(path), bson.A{}}}}}}
}

// Contains reports whether value is an element of the array at path.
func Contains(path string, value any) bson.D {
	return bson.D{{Key: "$in", Value: bson.A{value, bson.D{{Key: "$ifNull", Value: bson.A{Field(path), bson.A{}}}}}}}
}

// Cond is the ternary expression.
func Cond(ifExpr, then, otherwise any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: ifExpr},
		{Key: "then", Value: then},
		{Key: "else", Value: otherwise},
	}}}
}

// Sum accumulates expr within a Group.
func Sum(expr any) bson.D {
	return bson.D{{Key: "$sum", Value: expr}}
}

// InOrderOf returns the documents of the joined array arranged in the order
// of the id array at idsPath. Ids without a joined document are dropped.
func InOrderOf(idsPath, joinedPath string) bson.D {
	pick := bson.D{{Key: "$arrayElemAt", Value: bson.A{
		bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: Field(joinedPath)},
			{Key: "as", Value: "candidate"},
			{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$candidate._id", "$$id"}}}},
		}}},
		0,
	}}}
	return bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{Field(idsPath), bson.A{}}}}},
			{Key: "as", Value: "id"},
			{Key: "in", Value: pick},
		}}}},
		{Key: "as", Value: "entry"},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$entry", nil}}}},
	}}}
}
