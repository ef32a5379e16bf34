package mocks

import (
	"context"

	"github.com/sebastienferry/mongolastic/internal/pkg/checkpoint"
)

type MockCheckpoint struct {
	Stored *checkpoint.Checkpoint
	Saves  []checkpoint.Checkpoint

	GetErr error
	SetErr error
}

func NewMockCheckpoint(stored *checkpoint.Checkpoint) *MockCheckpoint {
	return &MockCheckpoint{
		Stored: stored,
	}
}

func (m *MockCheckpoint) GetCheckpoint(ctx context.Context) (checkpoint.Checkpoint, bool, error) {
	if m.GetErr != nil {
		return checkpoint.Checkpoint{}, false, m.GetErr
	}
	if m.Stored == nil {
		return checkpoint.Checkpoint{}, false, nil
	}
	return *m.Stored, true, nil
}

func (m *MockCheckpoint) SetCheckpoint(ctx context.Context, ckpt checkpoint.Checkpoint) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Saves = append(m.Saves, ckpt)
	m.Stored = &ckpt
	return nil
}

// Last saved checkpoint, zero value when none
func (m *MockCheckpoint) Last() checkpoint.Checkpoint {
	if len(m.Saves) == 0 {
		return checkpoint.Checkpoint{}
	}
	return m.Saves[len(m.Saves)-1]
}
