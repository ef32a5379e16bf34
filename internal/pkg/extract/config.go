package extract

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config is fixed for the lifetime of an extraction run.
type Config struct {
	Database   string
	Collection string
	Filter     bson.D
	// nil means all fields
	Projection bson.D
}

// NewConfig parses the filter and projection, given as MongoDB extended JSON.
// Empty expressions mean "all documents" and "all fields".
func NewConfig(database, collection, query, project string) (Config, error) {
	filter, err := ParseDocument(query)
	if err != nil {
		return Config{}, fmt.Errorf("query: %w", err)
	}
	projection, err := ParseDocument(project)
	if err != nil {
		return Config{}, fmt.Errorf("project: %w", err)
	}
	return Config{
		Database:   database,
		Collection: collection,
		Filter:     filter,
		Projection: projection,
	}, nil
}

// ParseDocument parses an extended JSON document
func ParseDocument(expr string) (bson.D, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(expr), false, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	return doc, nil
}

func (c Config) Namespace() string {
	return c.Database + "." + c.Collection
}

// The filter, never nil so it always encodes as a document
func (c Config) Query() bson.D {
	if c.Filter == nil {
		return bson.D{}
	}
	return c.Filter
}

// Pipeline builds $match, $skip and the optional $project stages.
func (c Config) Pipeline(skip int64) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: c.Query()}},
		{{Key: "$skip", Value: skip}},
	}
	if len(c.Projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: c.Projection}})
	}
	return pipeline
}
