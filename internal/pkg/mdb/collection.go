package mdb

import (
	"context"

	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection reads the documents to extract from a MongoDB collection.
type Collection struct {
	Database   string // Database to read from
	Collection string // Collection to read from
	Source     *MDB   // Source MongoDB client
}

func NewCollection(source *MDB, database string, collection string) *Collection {
	return &Collection{
		Source:     source,
		Database:   database,
		Collection: collection,
	}
}

func (c *Collection) handle(ctx context.Context) (*mongo.Collection, error) {
	client, err := c.Source.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(c.Database).Collection(c.Collection), nil
}

// Get the number of documents matching the filter.
// The function uses the `countDocuments` command, which replaces the deprecated `count`.
func (c *Collection) Count(ctx context.Context, filter bson.D) (int64, error) {
	coll, err := c.handle(ctx)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, filter)
}

// Run the aggregation pipeline and return the server cursor
func (c *Collection) Aggregate(ctx context.Context, pipeline mongo.Pipeline,
	opts *options.AggregateOptions) (interfaces.Cursor, error) {

	coll, err := c.handle(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// List the collections of a database
func GetCollectionsByDb(ctx context.Context, db string, mongo *MDB) ([]string, error) {

	client, err := mongo.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	// List the collections
	collections, err := client.Database(db).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	return collections, nil
}

// Checks whether the collection exists, to tell an empty filter result
// apart from a missing collection.
func CollectionExists(ctx context.Context, mongo *MDB, database string, collection string) (bool, error) {
	collections, err := GetCollectionsByDb(ctx, database, mongo)
	if err != nil {
		return false, err
	}
	for _, c := range collections {
		if c == collection {
			return true, nil
		}
	}
	return false, nil
}
