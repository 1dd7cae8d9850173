package persistence

import (
	"fmt"
	"slices"
	"strings"
)

// Operator is a comparison in a query criterion.
type Operator string

const (
	OpEquals   Operator = "eq"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// Field names a string attribute of T and knows how to read it.
type Field[T any] struct {
	Name  string
	value func(T) string
}

// NewField declares a queryable attribute.
func NewField[T any](name string, value func(T) string) Field[T] {
	return Field[T]{Name: name, value: value}
}

// Criterion is a single typed predicate over T.
type Criterion[T any] struct {
	Field  Field[T]
	Op     Operator
	Values []string
}

// Equals matches entities whose field equals value exactly.
func Equals[T any](field Field[T], value string) Criterion[T] {
	return Criterion[T]{Field: field, Op: OpEquals, Values: []string{value}}
}

// Contains matches entities whose field contains value, ignoring case.
func Contains[T any](field Field[T], value string) Criterion[T] {
	return Criterion[T]{Field: field, Op: OpContains, Values: []string{strings.ToLower(value)}}
}

// InSet matches entities whose field equals one of values. An empty set matches nothing.
func InSet[T any](field Field[T], values ...string) Criterion[T] {
	return Criterion[T]{Field: field, Op: OpIn, Values: slices.Clone(values)}
}

// Matches evaluates the criterion against entity.
func (c Criterion[T]) Matches(entity T) bool {
	if c.Field.value == nil {
		return false
	}
	actual := c.Field.value(entity)
	switch c.Op {
	case OpEquals:
		return len(c.Values) == 1 && actual == c.Values[0]
	case OpContains:
		return len(c.Values) == 1 && strings.Contains(strings.ToLower(actual), c.Values[0])
	case OpIn:
		return slices.Contains(c.Values, actual)
	default:
		return false
	}
}

// String renders the criterion for logs.
func (c Criterion[T]) String() string {
	return fmt.Sprintf("%s %s %s", c.Field.Name, c.Op, strings.Join(c.Values, ","))
}

// Query is a conjunction of criteria. The empty query matches everything.
type Query[T any] []Criterion[T]

// Matches reports whether entity satisfies every criterion.
func (s Query[T]) Matches(entity T) bool {
	for _, c := range s {
		if !c.Matches(entity) {
			return false
		}
	}
	return true
}

// Filter returns the entities matching the query, preserving order.
func (s Query[T]) Filter(entities []T) []T {
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		if s.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Queryable request attributes.
var (
	RequestKind        = NewField("kind", func(r Request) string { return r.Kind })
	RequestStatus      = NewField("status", func(r Request) string { return r.Status })
	RequestSeasonID    = NewField("seasonId", func(r Request) string { return r.SeasonID })
	RequestRequesterID = NewField("requesterId", func(r Request) string { return r.RequesterID })
	RequestAssigneeID  = NewField("assigneeId", func(r Request) string { return r.AssigneeID })
	RequestTitle       = NewField("title", func(r Request) string { return r.Title })
)
