package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebastienferry/mongolastic/internal/pkg/api"
	"github.com/sebastienferry/mongolastic/internal/pkg/checkpoint"
	"github.com/sebastienferry/mongolastic/internal/pkg/commands"
	"github.com/sebastienferry/mongolastic/internal/pkg/config"
	"github.com/sebastienferry/mongolastic/internal/pkg/extract"
	"github.com/sebastienferry/mongolastic/internal/pkg/indexer"
	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"github.com/sebastienferry/mongolastic/internal/pkg/mdb"
	"github.com/sebastienferry/mongolastic/internal/pkg/migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dryRun     bool
	noResume   bool
)

var rootCmd = &cobra.Command{
	Use:   "mongolastic",
	Short: "Copy the documents of a MongoDB collection into a search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the configuration, count the documents and exit")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore the stored checkpoint and start over")
}

func main() {

	// Prepare to handle SIGINT
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	switch {
	case err == nil:
	case code == 0:
		log.Info(err, ", run again to resume")
	default:
		log.Error(err)
	}
	os.Exit(code)
}

// exitCode maps the outcome of a run to the process exit status. A stopped
// or interrupted migration has saved its checkpoint and is not a failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, migrate.ErrStopped), errors.Is(err, context.Canceled):
		return 0
	}
	return 1
}

func run(ctx context.Context) error {

	// Load the configuration
	appConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	// Logger initialization
	level := log.FromString(appConfig.Logging.Level)
	log.SetLogLevel(level)
	log.SetLogFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	log.Debug("starting mongolastic")
	log.Debug(fmt.Sprintf("log level: %d (%s)", level, appConfig.Logging.Level))
	appConfig.LogConfig()

	extractConfig, err := extract.NewConfig(appConfig.Mongo.Database, appConfig.Mongo.Collection,
		appConfig.Mongo.Query, appConfig.Mongo.Project)
	if err != nil {
		return err
	}

	// Setup mongodb connectivity
	registry := mdb.NewMongoRegistry(appConfig)
	defer registry.Close(context.WithoutCancel(ctx))

	source := mdb.NewCollection(registry.GetSource(), extractConfig.Database, extractConfig.Collection)
	extractor := extract.NewExtractor(source, extractConfig)

	if dryRun {
		count, err := extractor.Count(ctx)
		if err != nil {
			return explainEmpty(ctx, registry, extractConfig, err)
		}
		log.Info("dry run, ", count, " documents would be extracted")
		return nil
	}

	destination, name, err := newIndexer(appConfig, registry)
	if err != nil {
		return err
	}

	var checkpoints checkpoint.CheckpointManager = checkpoint.NewMongoCheckpointService(registry.GetSource(),
		name, appConfig.Extract.Checkpoint.Database, appConfig.Extract.Checkpoint.Collection)

	queue := commands.NewQueue(10)

	// Start the API server
	if appConfig.Api.Listen != "" {
		server := api.NewApi(registry.GetSource(), destination, queue)
		go func() {
			if err := server.StartApi(ctx, appConfig.Api.Listen); err != nil {
				log.Error("api stopped: ", err)
			}
		}()
	}

	migration := migrate.NewMigration(extractor, destination, checkpoints, queue, migrate.Options{
		Name:             name,
		BatchSize:        appConfig.Extract.BatchSize,
		MaxDocsPerSecond: appConfig.Extract.MaxDocsPerSecond,
		Resume:           appConfig.Extract.Resume && !noResume,
	})

	return explainEmpty(ctx, registry, extractConfig, migration.Run(ctx))
}

// The destination and the checkpoint name it is tracked under
func newIndexer(appConfig *config.AppConfig, registry *mdb.MongoRegistry) (interfaces.Indexer, string, error) {
	switch appConfig.Destination.Type {
	case config.DestinationElastic:
		client, err := indexer.NewElasticClient(appConfig.Destination.Elastic)
		if err != nil {
			return nil, "", fmt.Errorf("error creating the elasticsearch client: %w", err)
		}
		index := appConfig.Destination.Elastic.Index
		return indexer.NewElasticIndexer(client, index), appConfig.Namespace() + ">" + index, nil
	case config.DestinationMongo:
		target := appConfig.Destination.Mongo
		return mdb.NewMongoIndexer(registry.GetTarget(), target.Database, target.Collection),
			appConfig.Namespace() + ">" + target.Database + "." + target.Collection, nil
	}
	return nil, "", fmt.Errorf("%w: unknown destination type %q", config.ErrInvalidConfig, appConfig.Destination.Type)
}

// Tells a missing collection apart from a filter matching nothing
func explainEmpty(ctx context.Context, registry *mdb.MongoRegistry, c extract.Config, err error) error {
	if !errors.Is(err, extract.ErrEmptyResult) {
		return err
	}
	exists, lookupErr := mdb.CollectionExists(ctx, registry.GetSource(), c.Database, c.Collection)
	return describeEmpty(err, c, exists, lookupErr)
}

func describeEmpty(err error, c extract.Config, exists bool, lookupErr error) error {
	switch {
	case lookupErr != nil:
		log.Warn("error listing the collections: ", lookupErr)
		return fmt.Errorf("%w: %s", err, c.Namespace())
	case !exists:
		return fmt.Errorf("%w: collection %s does not exist", err, c.Namespace())
	}
	return fmt.Errorf("%w: the filter matches no document in %s", err, c.Namespace())
}

