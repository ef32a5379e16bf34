package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"gopkg.in/yaml.v2"
)

const (
	DestinationElastic = "elastic"
	DestinationMongo   = "mongo"

	DefaultBatchSize            = 1000
	DefaultCheckpointDatabase   = "mongolastic"
	DefaultCheckpointCollection = "checkpoints"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type MongoConfig struct {
	// The address of the MongoDB server
	Uri        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	// Extended JSON filter, empty means all documents
	Query string `yaml:"query"`
	// Extended JSON projection, empty means all fields
	Project string `yaml:"project"`
}

type CheckpointConfig struct {
	Database   string `yaml:"db"`
	Collection string `yaml:"collection"`
}

type ExtractConfig struct {
	// The page size
	BatchSize int `yaml:"batch"`
	// Documents per second, 0 disables the throttling
	MaxDocsPerSecond int  `yaml:"max_docs_per_second"`
	Resume           bool `yaml:"resume"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

type ElasticConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

type TargetMongoConfig struct {
	Uri        string `yaml:"uri"`
	Database   string `yaml:"db"`
	Collection string `yaml:"collection"`
}

type DestinationConfig struct {
	Type    string            `yaml:"type"`
	Elastic ElasticConfig     `yaml:"elastic"`
	Mongo   TargetMongoConfig `yaml:"mongo"`
}

type AppConfig struct {
	// Application logging configuration
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Mongo       MongoConfig       `yaml:"mongo"`
	Extract     ExtractConfig     `yaml:"extract"`
	Destination DestinationConfig `yaml:"destination"`

	Api struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
}

// NewConfig returns a configuration with the defaults applied
func NewConfig() *AppConfig {
	c := &AppConfig{}
	c.Logging.Level = log.InfoLevel
	c.Extract.BatchSize = DefaultBatchSize
	c.Extract.Resume = true
	c.Extract.Checkpoint.Database = DefaultCheckpointDatabase
	c.Extract.Checkpoint.Collection = DefaultCheckpointCollection
	c.Destination.Type = DestinationElastic
	return c
}

// Load reads the configuration file. The CONFIG_FILE_PATH environment
// variable takes precedence over the given path.
func Load(path string) (*AppConfig, error) {

	// Fetch the environment variable
	configFilePath := os.Getenv("CONFIG_FILE_PATH")
	if configFilePath == "" {
		configFilePath = path
	}
	log.Info("configuration file path: ", configFilePath)

	// Open the configuration file
	f, err := os.Open(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration file: %w", err)
	}
	defer f.Close()

	c := NewConfig()
	if err := c.Decode(f); err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AppConfig) Decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("error decoding configuration file: %w", err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {

	// Override the log level if set in the environment
	if os.Getenv("LOG_LEVEL") != "" {
		c.Logging.Level = os.Getenv("LOG_LEVEL")
	}

	// Override the source and destinations if set in the environment
	if os.Getenv("SOURCE") != "" {
		c.Mongo.Uri = os.Getenv("SOURCE")
	}
	if os.Getenv("TARGET") != "" {
		c.Destination.Mongo.Uri = os.Getenv("TARGET")
	}
	if addrs := os.Getenv("ELASTIC_ADDRESSES"); addrs != "" {
		c.Destination.Elastic.Addresses = strings.Split(addrs, ",")
	}
}

// Validate checks the settings required to run an extraction
func (c *AppConfig) Validate() error {
	var missing []string
	if c.Mongo.Uri == "" {
		missing = append(missing, "mongo.uri")
	}
	if c.Mongo.Database == "" {
		missing = append(missing, "mongo.database")
	}
	if c.Mongo.Collection == "" {
		missing = append(missing, "mongo.collection")
	}

	switch c.Destination.Type {
	case DestinationElastic:
		if len(c.Destination.Elastic.Addresses) == 0 {
			missing = append(missing, "destination.elastic.addresses")
		}
		if c.Destination.Elastic.Index == "" {
			missing = append(missing, "destination.elastic.index")
		}
	case DestinationMongo:
		if c.Destination.Mongo.Uri == "" {
			missing = append(missing, "destination.mongo.uri")
		}
		if c.Destination.Mongo.Database == "" {
			missing = append(missing, "destination.mongo.db")
		}
		if c.Destination.Mongo.Collection == "" {
			missing = append(missing, "destination.mongo.collection")
		}
	default:
		return fmt.Errorf("%w: unknown destination type %q", ErrInvalidConfig, c.Destination.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if c.Extract.BatchSize <= 0 {
		return fmt.Errorf("%w: extract.batch must be positive", ErrInvalidConfig)
	}
	if c.Extract.MaxDocsPerSecond < 0 {
		return fmt.Errorf("%w: extract.max_docs_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Namespace returns "database.collection" for the source
func (c *AppConfig) Namespace() string {
	return c.Mongo.Database + "." + c.Mongo.Collection
}

func (c *AppConfig) LogConfig() {
	log.Info("mongo configuration:")
	log.Info("- source: ", ObfuscateCrendentials(c.Mongo.Uri))
	log.Info("- namespace: ", c.Namespace())
	if c.Mongo.Query != "" {
		log.Info("- query: ", c.Mongo.Query)
	}
	if c.Mongo.Project != "" {
		log.Info("- project: ", c.Mongo.Project)
	}
	log.InfoWithFields("extraction configuration", log.Fields{
		"batch":  c.Extract.BatchSize,
		"resume": c.Extract.Resume,
		"qps":    c.Extract.MaxDocsPerSecond,
	})
	switch c.Destination.Type {
	case DestinationElastic:
		log.InfoWithFields("destination", log.Fields{
			"type":      c.Destination.Type,
			"addresses": c.Destination.Elastic.Addresses,
			"index":     c.Destination.Elastic.Index,
		})
	case DestinationMongo:
		log.InfoWithFields("destination", log.Fields{
			"type":       c.Destination.Type,
			"target":     ObfuscateCrendentials(c.Destination.Mongo.Uri),
			"database":   c.Destination.Mongo.Database,
			"collection": c.Destination.Mongo.Collection,
		})
	}
}

// Considering the following structure for MongoDB connection string:
// "mongodb://<username>:<password>@<host>:<port>"
// The following function will replaces the username and password with "****"
func ObfuscateCrendentials(mongoConnectionString string) string {
	// Find the username and password
	regexp := regexp.MustCompile(`mongodb(\+srv)?:\/\/(.*):(.*)@`)
	matches := regexp.FindStringSubmatch(mongoConnectionString)
	if len(matches) == 4 {
		// Replace the username and password with "****"
		return regexp.ReplaceAllString(mongoConnectionString, "mongodb$1://****:****@")
	}
	return mongoConnectionString
}
