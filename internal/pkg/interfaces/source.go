package interfaces

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Defines the server-side cursor used to stream documents.
// *mongo.Cursor satisfies it.
type Cursor interface {
	// Advance to the next document, fetching a new batch when needed.
	Next(ctx context.Context) bool

	// Decode the current document.
	Decode(val interface{}) error

	// Last error seen by the cursor.
	Err() error

	// Server cursor id, 0 once the server side is exhausted.
	ID() int64

	Close(ctx context.Context) error
}

// Defines the collection the documents are extracted from.
type Source interface {

	// Count the documents matching the filter.
	Count(ctx context.Context, filter bson.D) (int64, error)

	// Run an aggregation pipeline and return its cursor.
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, opts *options.AggregateOptions) (Cursor, error)
}
