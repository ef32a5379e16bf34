package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"github.com/sebastienferry/mongolastic/internal/pkg/mdb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CheckpointManager interface {
	// Returns the stored checkpoint and whether one was found
	GetCheckpoint(context.Context) (Checkpoint, bool, error)
	SetCheckpoint(context.Context, Checkpoint) error
}

type MongoCheckpoint struct {

	// Connection to the server storing the checkpoint
	Conn *mdb.MDB

	// Database used to store the checkpoint
	DB string

	// Collection used to store the checkpoint
	Collection string

	// Name of the checkpoint, one per extracted namespace
	Name string
}

func NewMongoCheckpointService(conn *mdb.MDB, name string, ckptDb string, ckptColl string) *MongoCheckpoint {

	if name == "" {
		name = "default"
	}

	return &MongoCheckpoint{
		Conn:       conn,
		DB:         ckptDb,
		Collection: ckptColl,
		Name:       name,
	}
}

func (s *MongoCheckpoint) collection(ctx context.Context) (*mongo.Collection, error) {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(s.DB).Collection(s.Collection), nil
}

func (s *MongoCheckpoint) GetCheckpoint(ctx context.Context) (Checkpoint, bool, error) {

	collection, err := s.collection(ctx)
	if err != nil {
		return Checkpoint{}, false, err
	}

	result := collection.FindOne(ctx, bson.M{"name": s.Name})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Checkpoint{}, false, nil
		}
		log.Error("error fetching the checkpoint: ", err)
		return Checkpoint{}, false, err
	}

	// Decode the result
	var ckpt Checkpoint = Checkpoint{}
	if err := result.Decode(&ckpt); err != nil {
		log.Error("error decoding the checkpoint: ", err)
		return Checkpoint{}, false, err
	}
	return ckpt, true, nil
}

func (s *MongoCheckpoint) SetCheckpoint(ctx context.Context, ckpt Checkpoint) error {

	collection, err := s.collection(ctx)
	if err != nil {
		return err
	}

	// Change the saved information
	ckpt.Name = s.Name
	ckpt.SavedAt = time.Now()

	// Store the checkpoint in the database
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"name": s.Name}
	update := bson.M{"$set": ckpt}

	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		log.WarnWithFields("checkpoint upsert error", log.Fields{
			"checkpoint": s.Name,
			"offset":     ckpt.Offset,
			"error":      err,
		})
		return err
	}
	return nil
}
