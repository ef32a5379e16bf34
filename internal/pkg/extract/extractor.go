package extract

import (
	"context"
	"fmt"
	"math"

	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"github.com/sebastienferry/mongolastic/internal/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Initial capacity of a page, it grows up to the limit
const maxPageCapacity = 4096

type State int

const (
	// No cursor yet, the next page opens it
	Unopened State = iota
	// The cursor is open and advanced by every page
	Open
	// The result set is consumed
	Exhausted
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Open:
		return "open"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Extractor counts the documents matching the filter and serves them
// page by page from a single aggregation cursor.
//
// The skip given to BuildPage is only applied when the cursor is opened.
// Later pages continue from where the previous one stopped, so callers
// must page contiguously: 0, limit, 2*limit...
//
// An Extractor is not safe for concurrent use.
type Extractor struct {
	source interfaces.Source
	config Config

	state    State
	cursor   interfaces.Cursor
	cursorId int64

	// Offset in the filtered result set of the next document
	position int64
	lastSkip int64
}

func NewExtractor(source interfaces.Source, config Config) *Extractor {
	return &Extractor{
		source: source,
		config: config,
		state:  Unopened,
	}
}

// Counts the documents matching the filter. Returns ErrEmptyResult
// when nothing matches; deciding to stop the process is up to the caller.
func (e *Extractor) Count(ctx context.Context) (int64, error) {

	count, err := e.source.Count(ctx, e.config.Query())
	if err != nil {
		log.Error("error counting documents: ", err)
		return 0, classify(err)
	}

	log.InfoWithFields("mongo collection count", log.Fields{
		"database":   e.config.Database,
		"collection": e.config.Collection,
		"count":      count,
	})
	metrics.SourceCountGauge.WithLabelValues(e.config.Database, e.config.Collection).Set(float64(count))

	if count == 0 {
		log.ErrorWithFields("database/collection does not exist or does not contain the record", log.Fields{
			"database":   e.config.Database,
			"collection": e.config.Collection,
		})
		return 0, ErrEmptyResult
	}
	return count, nil
}

// Builds the next page of at most `limit` documents. The page is shorter
// only when the cursor is exhausted, and empty once it is.
func (e *Extractor) BuildPage(ctx context.Context, skip int64, limit int) ([]*bson.D, error) {

	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSkip, skip)
	}
	if e.state != Unopened && skip < e.lastSkip {
		return nil, fmt.Errorf("%w: %d after %d", ErrSkipRegression, skip, e.lastSkip)
	}

	switch e.state {
	case Unopened:
		if err := e.open(ctx, skip, limit); err != nil {
			return nil, err
		}
	case Open:
		if skip != e.position {
			log.WarnWithFields("skip ignored, the cursor continues from its position", log.Fields{
				"collection": e.config.Collection,
				"skip":       skip,
				"position":   e.position,
			})
		}
	case Exhausted:
		e.lastSkip = skip
		return []*bson.D{}, nil
	}
	e.lastSkip = skip

	items := make([]*bson.D, 0, min(limit, maxPageCapacity))
	for len(items) < limit {

		if !e.cursor.Next(ctx) {
			if err := e.cursor.Err(); err != nil {
				log.Error("error reading document: ", err)
				return nil, classify(err)
			}
			e.exhaust(ctx)
			break
		}

		var item *bson.D = &bson.D{}
		if err := e.cursor.Decode(item); err != nil {
			log.Error("error decoding document: ", err)
			// The cursor moved past documents that are not returned
			e.exhaust(ctx)
			return nil, fmt.Errorf("%w: decoding document: %w", ErrTransport, err)
		}

		// Successfully read a document. Increment the counter
		metrics.ExtractReadCounter.WithLabelValues(e.config.Database, e.config.Collection).Inc()

		items = append(items, item)
		e.position++
	}

	metrics.ExtractPageCounter.WithLabelValues(e.config.Database, e.config.Collection).Inc()
	if log.IsDebug() {
		log.DebugWithFields("page built", log.Fields{
			"collection": e.config.Collection,
			"skip":       skip,
			"count":      len(items),
			"position":   e.position,
			"state":      e.state.String(),
		})
	}
	return items, nil
}

// Opens the aggregation cursor; `skip` is applied here and only here.
func (e *Extractor) open(ctx context.Context, skip int64, limit int) error {

	pipeline := e.config.Pipeline(skip)
	opts := options.Aggregate().
		SetAllowDiskUse(true).
		SetBatchSize(batchSize(limit))

	cur, err := e.source.Aggregate(ctx, pipeline, opts)
	if err != nil {
		log.Error("error opening the cursor: ", err)
		return classify(err)
	}

	e.cursor = cur
	e.cursorId = cur.ID()
	e.position = skip
	e.state = Open

	log.InfoWithFields("cursor opened", log.Fields{
		"database":   e.config.Database,
		"collection": e.config.Collection,
		"skip":       skip,
		"cursorId":   e.cursorId,
	})
	return nil
}

// The driver batch size is an int32
func batchSize(limit int) int32 {
	if limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(limit)
}

func (e *Extractor) exhaust(ctx context.Context) {
	e.state = Exhausted
	if err := e.cursor.Close(ctx); err != nil {
		log.Warn("error closing the exhausted cursor: ", err)
	}
	e.cursor = nil
	log.InfoWithFields("cursor exhausted", log.Fields{
		"collection": e.config.Collection,
		"position":   e.position,
	})
}

// Close releases the cursor of an abandoned run. Later pages are empty.
func (e *Extractor) Close(ctx context.Context) error {
	if e.state != Open {
		e.state = Exhausted
		return nil
	}
	e.state = Exhausted
	err := e.cursor.Close(ctx)
	e.cursor = nil
	return err
}

func (e *Extractor) State() State {
	return e.state
}

// Offset of the next document in the filtered result set
func (e *Extractor) Position() int64 {
	return e.position
}

// Server cursor id captured when the cursor was opened
func (e *Extractor) CursorId() int64 {
	return e.cursorId
}

func (e *Extractor) Config() Config {
	return e.config
}
