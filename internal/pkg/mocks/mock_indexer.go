package mocks

import (
	"context"

	"github.com/sebastienferry/mongolastic/internal/pkg/interfaces"
	"go.mongodb.org/mongo-driver/bson"
)

// MockIndexer keeps every submitted page
type MockIndexer struct {
	Pages [][]*bson.D

	// Injected failures
	IndexErr error
	PingErr  error
	// Documents reported as rejected in each page
	Rejected int
	// Called after each accepted page
	OnIndex func(page []*bson.D)
}

func NewMockIndexer() *MockIndexer {
	return &MockIndexer{}
}

func (m *MockIndexer) Index(ctx context.Context, items []*bson.D) (interfaces.BulkResult, error) {
	if m.IndexErr != nil {
		return interfaces.BulkResult{ErrorCount: len(items)}, m.IndexErr
	}
	m.Pages = append(m.Pages, items)
	if m.OnIndex != nil {
		m.OnIndex(items)
	}

	rejected := min(m.Rejected, len(items))
	return interfaces.BulkResult{
		IndexedCount: len(items) - rejected,
		ErrorCount:   rejected,
	}, nil
}

func (m *MockIndexer) Ping(ctx context.Context) error {
	return m.PingErr
}

// Documents concatenated in submission order
func (m *MockIndexer) Documents() []*bson.D {
	var docs []*bson.D
	for _, page := range m.Pages {
		docs = append(docs, page...)
	}
	return docs
}
