package mdb

import (
	"context"

	"github.com/sebastienferry/mongolastic/internal/pkg/config"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MDB struct {
	Uri    string
	client *mongo.Client
}

// NewMongo returns a new Mongo struct. The connection is opened lazily.
func NewMongo(uri string) *MDB {
	return &MDB{
		Uri:    uri,
		client: nil,
	}
}

// GetClient returns a live client, reconnecting when the ping fails.
func (mdb *MDB) GetClient(ctx context.Context) (*mongo.Client, error) {
	if mdb.client != nil && mdb.isOk(ctx) {
		return mdb.client, nil
	}
	client, err := mdb.connect(ctx)
	if err != nil {
		log.Error("error connecting to the server: ", err)
		return nil, err
	}
	log.Info("successfully connected to the server ", config.ObfuscateCrendentials(mdb.Uri))
	mdb.client = client
	return mdb.client, nil
}

func (mdb *MDB) Ping(ctx context.Context) error {
	client, err := mdb.GetClient(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

func (mdb *MDB) Disconnect(ctx context.Context) error {
	if mdb.client == nil {
		return nil
	}
	err := mdb.client.Disconnect(ctx)
	mdb.client = nil
	return err
}

func (conn *MDB) isOk(ctx context.Context) bool {
	if err := conn.client.Ping(ctx, nil); err != nil {
		return false
	}
	return true
}

// Connect to the MongoDB server
func (mdb *MDB) connect(ctx context.Context) (*mongo.Client, error) {

	// Create a new client and connect to the server
	connectOpts := options.Client().ApplyURI(mdb.Uri)
	client, err := mongo.Connect(ctx, connectOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// IsDuplicateKeyError checks if the error is a duplicate key error
func IsDuplicateKeyError(err error) bool {
	// handles SERVER-7164 and SERVER-11493
	for ; err != nil; err = unwrap(err) {
		if e, ok := err.(mongo.ServerError); ok {
			return e.HasErrorCode(11000) || e.HasErrorCode(11001) || e.HasErrorCode(12582) ||
				e.HasErrorCodeWithMessage(16460, " E11000 ")
		}
	}
	return false
}

// unwrap the error
func unwrap(err error) error {
	u, ok := err.(interface {
		Unwrap() error
	})
	if !ok {
		return nil
	}
	return u.Unwrap()
}

// ExtractId returns the _id element of a document, or an empty element
func ExtractId(doc bson.D) (primitive.E, bool) {
	for _, bsonE := range doc {
		if bsonE.Key == "_id" {
			return bsonE, true
		}
	}
	return primitive.E{}, false
}
