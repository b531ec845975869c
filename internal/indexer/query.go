// Package indexer queries a Conseil-style chain indexer for big map entries
// and operations. Queries are plain data so they can be cached, logged and
// evaluated in memory by indexertest.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Entity names an indexer table.
type Entity string

const (
	BigMapContents Entity = "big_map_contents"
	Operations     Entity = "operations"
)

// Op is a predicate operator.
type Op string

const (
	Eq         Op = "eq"
	In         Op = "in"
	Like       Op = "like"
	StartsWith Op = "startsWith"
	EndsWith   Op = "endsWith"
	Between    Op = "between"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Predicate struct {
	Field     string `json:"field"`
	Operation Op     `json:"operation"`
	Set       []any  `json:"set"`
	Inverse   bool   `json:"inverse"`
}

type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Query is the JSON body posted to the indexer. Builder methods return
// modified copies.
type Query struct {
	Fields     []string    `json:"fields"`
	Predicates []Predicate `json:"predicates"`
	Orders     []Order     `json:"orderBy"`
	Limit      int         `json:"limit"`
}

const defaultLimit = 1000

// NewQuery starts a query selecting the given fields.
func NewQuery(fields ...string) Query {
	return Query{Fields: slices.Clone(fields), Limit: defaultLimit}
}

func (q Query) with(p Predicate) Query {
	q.Predicates = append(slices.Clone(q.Predicates), p)
	return q
}

// Where adds a predicate.
func (q Query) Where(field string, op Op, values ...any) Query {
	return q.with(Predicate{Field: field, Operation: op, Set: values})
}

// Not adds an inverted predicate.
func (q Query) Not(field string, op Op, values ...any) Query {
	return q.with(Predicate{Field: field, Operation: op, Set: values, Inverse: true})
}

func (q Query) Order(field string, dir Direction) Query {
	q.Orders = append(slices.Clone(q.Orders), Order{Field: field, Direction: dir})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Querier runs a query against one entity.
type Querier interface {
	Query(ctx context.Context, entity Entity, q Query) ([]Row, error)
}

// Row is one result object keyed by field name.
type Row map[string]any

func (r Row) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int(field string) int64 {
	switch v := r[field].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

func (r Row) Bool(field string) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
