package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sebastienferry/mongolastic/internal/pkg/checkpoint"
	"github.com/sebastienferry/mongolastic/internal/pkg/commands"
	"github.com/sebastienferry/mongolastic/internal/pkg/extract"
	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"github.com/sebastienferry/mongolastic/internal/pkg/metrics"
	"golang.org/x/time/rate"
)

// ErrStopped is returned when a stop command ended the run
var ErrStopped = errors.New("migration stopped")

type Options struct {
	// Checkpoint name, one per extraction
	Name      string
	BatchSize int
	// Documents per second, 0 disables the throttling
	MaxDocsPerSecond int
	// Start from the stored checkpoint when it matches
	Resume bool
}

// Migration drives an extractor page by page into an indexer.
type Migration struct {
	extractor   *extract.Extractor
	indexer     interfaces.Indexer
	checkpoints checkpoint.CheckpointManager
	commands    <-chan commands.Command
	limiter     *rate.Limiter
	options     Options
	runId       string
	progress    *Progress
}

// NewMigration builds a migration. The checkpoint manager and the command
// queue are optional.
func NewMigration(extractor *extract.Extractor, indexer interfaces.Indexer,
	checkpoints checkpoint.CheckpointManager, cmds <-chan commands.Command, options Options) *Migration {

	if options.BatchSize <= 0 {
		options.BatchSize = 1000
	}

	var limiter *rate.Limiter
	if options.MaxDocsPerSecond > 0 {
		// A page is waited for at once, the bucket must hold it
		limiter = rate.NewLimiter(rate.Limit(options.MaxDocsPerSecond),
			max(options.MaxDocsPerSecond, options.BatchSize))
	}

	config := extractor.Config()
	return &Migration{
		extractor:   extractor,
		indexer:     indexer,
		checkpoints: checkpoints,
		commands:    cmds,
		limiter:     limiter,
		options:     options,
		runId:       uuid.NewString(),
		progress:    NewProgress(config.Database, config.Collection),
	}
}

func (m *Migration) RunId() string {
	return m.runId
}

func (m *Migration) Progress() *Progress {
	return m.progress
}

// Run counts the documents then extracts and indexes them page by page.
// ErrEmptyResult is returned as is when nothing matches the filter.
func (m *Migration) Run(ctx context.Context) error {

	config := m.extractor.Config()
	fields := log.Fields{
		"database":   config.Database,
		"collection": config.Collection,
		"runId":      m.runId,
	}
	log.InfoWithFields("starting migration", fields)

	count, err := m.extractor.Count(ctx)
	if err != nil {
		return err
	}

	fingerprint, err := checkpoint.Fingerprint(config.Namespace(), config.Query(), config.Projection)
	if err != nil {
		return fmt.Errorf("error computing the filter fingerprint: %w", err)
	}

	skip, err := m.resumeOffset(ctx, config.Namespace(), fingerprint, count)
	if err != nil {
		return err
	}

	m.progress.Start(count, skip)
	defer m.extractor.Close(context.WithoutCancel(ctx))

	for skip < count {

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.applyCommands(ctx); err != nil {
			return err
		}

		page, err := m.extractor.BuildPage(ctx, skip, m.options.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			// Documents were removed since the count
			log.WarnWithFields("source exhausted before the expected count", log.Fields{
				"collection": config.Collection,
				"offset":     skip,
				"count":      count,
			})
			break
		}

		// Wait for the throughput limit
		if m.limiter != nil {
			if err := m.limiter.WaitN(ctx, len(page)); err != nil {
				return err
			}
		}

		result, err := m.indexer.Index(ctx, page)
		m.report(result, err)
		if err != nil {
			return fmt.Errorf("error indexing the page at offset %d: %w", skip, err)
		}

		skip += int64(len(page))
		if err := m.save(ctx, config.Namespace(), fingerprint, skip, count, false); err != nil {
			return err
		}
	}

	if err := m.save(ctx, config.Namespace(), fingerprint, skip, count, true); err != nil {
		return err
	}

	log.InfoWithFields("migration completed", log.Fields{
		"database":   config.Database,
		"collection": config.Collection,
		"runId":      m.runId,
		"processed":  m.progress.Processed(),
		"indexed":    m.progress.Indexed(),
		"rejected":   m.progress.Rejected(),
	})
	return nil
}

func (m *Migration) resumeOffset(ctx context.Context, namespace string, fingerprint string, count int64) (int64, error) {
	if m.checkpoints == nil || !m.options.Resume {
		return 0, nil
	}

	ckpt, found, err := m.checkpoints.GetCheckpoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("error loading the checkpoint: %w", err)
	}
	if !found {
		log.Info("no previous checkpoint found")
		return 0, nil
	}

	offset := ckpt.ResumeOffset(namespace, fingerprint, count)
	log.InfoWithFields("checkpoint found", log.Fields{
		"name":      ckpt.Name,
		"runId":     ckpt.RunId,
		"offset":    ckpt.Offset,
		"completed": ckpt.Completed,
		"resumeAt":  offset,
	})
	return offset, nil
}

func (m *Migration) save(ctx context.Context, namespace string, fingerprint string,
	offset int64, count int64, completed bool) error {

	if m.checkpoints == nil {
		return nil
	}

	err := m.checkpoints.SetCheckpoint(ctx, checkpoint.Checkpoint{
		Name:       m.options.Name,
		RunId:      m.runId,
		Namespace:  namespace,
		FilterHash: fingerprint,
		CursorId:   m.extractor.CursorId(),
		Offset:     offset,
		Count:      count,
		Completed:  completed,
		SavedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("error saving the checkpoint: %w", err)
	}
	return nil
}

// Applies the pending commands. Blocks while the migration is paused.
func (m *Migration) applyCommands(ctx context.Context) error {

	paused := false
	for {
		var cmd commands.Command
		if paused {
			select {
			case cmd = <-m.commands:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			select {
			case cmd = <-m.commands:
			default:
				return nil
			}
		}

		log.Info("command received: ", cmd.String())
		switch cmd.Id {
		case commands.CmdIdStop:
			return ErrStopped
		case commands.CmdIdPause:
			paused = true
		case commands.CmdIdResume:
			paused = false
		default:
			log.Warn("unknown command: ", cmd.Id)
		}
	}
}

// Report the result of the write operation
func (m *Migration) report(result interfaces.BulkResult, err error) {
	db, coll := m.progress.Database, m.progress.Collection

	metrics.IndexWriteCounter.WithLabelValues(db, coll).Add(float64(result.IndexedCount))
	if err != nil {
		metrics.IndexErrorTotal.WithLabelValues(db, coll, "bulk").Add(float64(result.ErrorCount))
		return
	}
	metrics.IndexErrorTotal.WithLabelValues(db, coll, "rejected").Add(float64(result.ErrorCount))

	m.progress.Increment(result.IndexedCount, result.ErrorCount)
	metrics.ExtractProgressGauge.WithLabelValues(db, coll).Set(m.progress.Progress())

	log.DebugWithFields("page indexed", log.Fields{
		"collection": coll,
		"indexed":    result.IndexedCount,
		"rejected":   result.ErrorCount,
		"progress":   m.progress.Progress(),
	})
}
