package mdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndexer copies the extracted pages into a target collection.
type MongoIndexer struct {
	Target     *MDB
	Database   string
	Collection string
}

func NewMongoIndexer(target *MDB, database string, collection string) *MongoIndexer {
	return &MongoIndexer{
		Target:     target,
		Database:   database,
		Collection: collection,
	}
}

// Upserts the page by _id. Individual write errors are counted, any
// other error fails the page.
func (w *MongoIndexer) Index(ctx context.Context, items []*bson.D) (interfaces.BulkResult, error) {

	var result interfaces.BulkResult = interfaces.BulkResult{}

	models, err := upsertModels(items)
	if err != nil {
		result.ErrorCount = len(items)
		return result, err
	}
	if len(models) == 0 {
		log.Debug("no documents to sync")
		return result, nil
	}

	client, err := w.Target.GetClient(ctx)
	if err != nil {
		result.ErrorCount = len(items)
		return result, err
	}

	if log.IsDebug() {
		log.DebugWithFields("synching documents",
			log.Fields{
				"database":   w.Database,
				"collection": w.Collection,
				"count":      len(models),
			})
	}

	// Bulk write the documents
	opts := options.BulkWrite().SetOrdered(false)
	_, err = client.Database(w.Database).Collection(w.Collection).BulkWrite(ctx, models, opts)

	// All documents were successfully written
	if err == nil {
		result.IndexedCount = len(models)
		return result, nil
	}

	// Handle non-bulk write errors
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		log.Error("bulk write failed ", err)
		result.ErrorCount = len(models)
		return result, err
	}

	for _, wError := range bulkErr.WriteErrors {
		log.ErrorWithFields("document rejected", log.Fields{
			"index":      wError.Index,
			"database":   w.Database,
			"collection": w.Collection,
			"duplicate":  IsDuplicateKeyError(wError),
			"error":      wError.Message,
		})
	}
	result.ErrorCount = len(bulkErr.WriteErrors)
	result.IndexedCount = len(models) - result.ErrorCount
	return result, nil
}

func (w *MongoIndexer) Ping(ctx context.Context) error {
	return w.Target.Ping(ctx)
}

func upsertModels(items []*bson.D) ([]mongo.WriteModel, error) {
	var models []mongo.WriteModel
	for i, item := range items {
		id, ok := ExtractId(*item)
		if !ok {
			return nil, fmt.Errorf("document %d has no _id, check the projection", i)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{id}).SetReplacement(item).SetUpsert(true))
	}
	return models, nil
}
