package mocks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrMockTransport = errors.New("mock: connection reset")
	ErrMockDecode    = errors.New("mock: corrupt document")
)

// MockCollection evaluates $match, $skip and $project pipelines over
// in-memory documents, in insertion order.
type MockCollection struct {
	Items []bson.D

	// Injected failures
	CountErr     error
	AggregateErr error
	// Cursor fails after this many documents, 0 disables
	FailAfter int
	// Cursor decoding fails on this document, 0 disables
	DecodeFailAt int

	CountCalls     int
	AggregateCalls int
	Pipelines      []mongo.Pipeline
	Options        []*options.AggregateOptions
	Cursors        []*MockCursor
}

func NewMockCollection(items []bson.D) *MockCollection {
	return &MockCollection{
		Items: items,
	}
}

func (m *MockCollection) Count(ctx context.Context, filter bson.D) (int64, error) {
	m.CountCalls++
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	var count int64
	for _, item := range m.Items {
		if Matches(item, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MockCollection) Aggregate(ctx context.Context, pipeline mongo.Pipeline,
	opts *options.AggregateOptions) (interfaces.Cursor, error) {

	m.AggregateCalls++
	m.Pipelines = append(m.Pipelines, pipeline)
	m.Options = append(m.Options, opts)
	if m.AggregateErr != nil {
		return nil, m.AggregateErr
	}

	docs := append([]bson.D(nil), m.Items...)
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, mongo.CommandError{Code: 40323, Message: "a pipeline stage specification object must contain exactly one field"}
		}
		switch stage[0].Key {
		case "$match":
			filter, _ := stage[0].Value.(bson.D)
			var matched []bson.D
			for _, doc := range docs {
				if Matches(doc, filter) {
					matched = append(matched, doc)
				}
			}
			docs = matched
		case "$skip":
			skip, ok := toInt64(stage[0].Value)
			if !ok || skip < 0 {
				return nil, mongo.CommandError{Code: 15956, Message: "invalid $skip"}
			}
			if skip > int64(len(docs)) {
				skip = int64(len(docs))
			}
			docs = docs[skip:]
		case "$project":
			projection, _ := stage[0].Value.(bson.D)
			for i, doc := range docs {
				docs[i] = Project(doc, projection)
			}
		default:
			return nil, mongo.CommandError{Code: 40324, Message: fmt.Sprintf("unrecognized pipeline stage name: '%s'", stage[0].Key)}
		}
	}

	batchSize := 101
	if opts != nil && opts.BatchSize != nil && *opts.BatchSize > 0 {
		batchSize = int(*opts.BatchSize)
	}

	cursor, err := NewMockCursor(docs, batchSize)
	if err != nil {
		return nil, err
	}
	cursor.FailAfter = m.FailAfter
	cursor.DecodeFailAt = m.DecodeFailAt
	m.Cursors = append(m.Cursors, cursor)
	return cursor, nil
}

// Matches supports top-level equality and the $gt, $gte, $lt, $lte
// operators on numbers.
func Matches(doc bson.D, filter bson.D) bool {
	for _, cond := range filter {
		value, found := lookup(doc, cond.Key)
		ops, isOps := cond.Value.(bson.D)
		if !isOps || len(ops) == 0 || !strings.HasPrefix(ops[0].Key, "$") {
			if !found || !equal(value, cond.Value) {
				return false
			}
			continue
		}
		if !found {
			return false
		}
		for _, op := range ops {
			a, okA := toInt64(value)
			b, okB := toInt64(op.Value)
			if !okA || !okB {
				return false
			}
			switch op.Key {
			case "$gt":
				if !(a > b) {
					return false
				}
			case "$gte":
				if !(a >= b) {
					return false
				}
			case "$lt":
				if !(a < b) {
					return false
				}
			case "$lte":
				if !(a <= b) {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

// Project applies an inclusion or exclusion projection on top-level fields.
// _id is kept unless explicitly excluded.
func Project(doc bson.D, projection bson.D) bson.D {
	if len(projection) == 0 {
		return doc
	}

	keepId := true
	fields := map[string]bool{}
	inclusion := false
	for _, p := range projection {
		on := truthy(p.Value)
		if p.Key == "_id" {
			keepId = on
			continue
		}
		fields[p.Key] = on
		if on {
			inclusion = true
		}
	}

	result := bson.D{}
	for _, e := range doc {
		if e.Key == "_id" {
			if keepId {
				result = append(result, e)
			}
			continue
		}
		on, listed := fields[e.Key]
		if inclusion && listed && on {
			result = append(result, e)
		} else if !inclusion && !listed {
			result = append(result, e)
		}
	}
	return result
}

func lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func equal(a, b interface{}) bool {
	x, okA := toInt64(a)
	y, okB := toInt64(b)
	if okA && okB {
		return x == y
	}
	return reflect.DeepEqual(a, b)
}

func truthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	n, ok := toInt64(v)
	return ok && n != 0
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
