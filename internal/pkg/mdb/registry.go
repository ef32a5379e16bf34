package mdb

import (
	"context"

	"github.com/sebastienferry/mongolastic/internal/pkg/config"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
)

// MongoRegistry holds the source connection and, for mongo destinations,
// the target one.
type MongoRegistry struct {
	source *MDB
	target *MDB
}

func NewMongoRegistry(appConfig *config.AppConfig) *MongoRegistry {

	registry := &MongoRegistry{
		source: NewMongo(appConfig.Mongo.Uri),
	}
	if appConfig.Destination.Type == config.DestinationMongo {
		registry.target = NewMongo(appConfig.Destination.Mongo.Uri)
	}
	return registry
}

func (m *MongoRegistry) GetSource() *MDB {
	return m.source
}

// GetTarget returns nil unless the destination is mongo
func (m *MongoRegistry) GetTarget() *MDB {
	return m.target
}

func (m *MongoRegistry) Close(ctx context.Context) {
	for _, conn := range []*MDB{m.source, m.target} {
		if conn == nil {
			continue
		}
		if err := conn.Disconnect(ctx); err != nil {
			log.Warn("error disconnecting from the server: ", err)
		}
	}
}
