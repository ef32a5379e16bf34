package mocks

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

const mockCursorId int64 = 7304126945281

// MockCursor mimics a server cursor: its id is non-zero while documents
// remain beyond the current batch, and 0 once the server side is drained.
type MockCursor struct {
	docs      []bson.Raw
	index     int
	current   bson.Raw
	batchSize int
	id        int64
	err       error

	// Next fails with ErrMockTransport after this many documents, 0 disables
	FailAfter int
	// Decode fails with ErrMockDecode on this document (1-based), 0 disables
	DecodeFailAt int
	Closed       bool
	NextCalls    int
}

func NewMockCursor(docs []bson.D, batchSize int) (*MockCursor, error) {
	raws := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}

	c := &MockCursor{
		docs:      raws,
		batchSize: batchSize,
	}
	if len(raws) > batchSize {
		c.id = mockCursorId
	}
	return c, nil
}

func (c *MockCursor) Next(ctx context.Context) bool {
	c.NextCalls++
	if c.Closed || c.err != nil {
		return false
	}
	if c.FailAfter > 0 && c.index == c.FailAfter {
		c.err = ErrMockTransport
		return false
	}
	if c.index >= len(c.docs) {
		c.id = 0
		return false
	}
	c.current = c.docs[c.index]
	c.index++

	// The last batch has been fetched
	fetched := ((c.index + c.batchSize - 1) / c.batchSize) * c.batchSize
	if fetched >= len(c.docs) {
		c.id = 0
	}
	return true
}

func (c *MockCursor) Decode(val interface{}) error {
	if c.DecodeFailAt > 0 && c.index == c.DecodeFailAt {
		return ErrMockDecode
	}
	return bson.Unmarshal(c.current, val)
}

func (c *MockCursor) Err() error {
	return c.err
}

func (c *MockCursor) ID() int64 {
	return c.id
}

func (c *MockCursor) Close(ctx context.Context) error {
	c.Closed = true
	c.id = 0
	return nil
}

// Number of documents handed out so far
func (c *MockCursor) Consumed() int {
	return c.index
}
