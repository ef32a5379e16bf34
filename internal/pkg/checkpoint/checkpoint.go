package checkpoint

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// Checkpoint records how far an extraction went so that a restarted
// process can continue instead of starting over.
type Checkpoint struct {
	Name       string    `bson:"name" json:"name"`
	RunId      string    `bson:"runId" json:"runId"`
	Namespace  string    `bson:"ns" json:"ns"`
	FilterHash string    `bson:"filterHash" json:"filterHash"`
	CursorId   int64     `bson:"cursorId" json:"cursorId"`
	Offset     int64     `bson:"offset" json:"offset"`
	Count      int64     `bson:"count" json:"count"`
	Completed  bool      `bson:"completed" json:"completed"`
	SavedAt    time.Time `bson:"saved" json:"saved"`
}

// Fingerprint identifies the result set a checkpoint belongs to.
func Fingerprint(namespace string, filter bson.D, projection bson.D) (string, error) {
	doc := bson.D{
		{Key: "ns", Value: namespace},
		{Key: "filter", Value: filter},
		{Key: "project", Value: projection},
	}
	data, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

// ResumeOffset returns the offset to start extracting from. Only an
// unfinished checkpoint of the same namespace and filter is resumed.
// The cursor id is not reused: server cursors do not outlive the process.
func (c Checkpoint) ResumeOffset(namespace string, fingerprint string, count int64) int64 {
	if c.Completed || c.Offset <= 0 {
		return 0
	}
	if c.Namespace != namespace || c.FilterHash != fingerprint {
		return 0
	}
	if c.Offset >= count {
		return 0
	}
	return c.Offset
}
