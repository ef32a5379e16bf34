package interfaces

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

type BulkResult struct {
	IndexedCount int
	ErrorCount   int
}

// Defines the destination a page of documents is submitted to.
type Indexer interface {
	Index(ctx context.Context, items []*bson.D) (BulkResult, error)
	Ping(ctx context.Context) error
}
