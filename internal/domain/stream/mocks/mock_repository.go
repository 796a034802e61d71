package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/streampay/streampay/internal/domain/stream"
)

// MockRepository is a mock implementation of stream.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, s *stream.Stream) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, streamID int64) (*stream.Stream, error) {
	args := m.Called(ctx, streamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stream.Stream), args.Error(1)
}

func (m *MockRepository) ListBySender(ctx context.Context, sender string, limit, offset int) ([]*stream.Stream, error) {
	args := m.Called(ctx, sender, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stream.Stream), args.Error(1)
}

func (m *MockRepository) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]*stream.Stream, error) {
	args := m.Called(ctx, recipient, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stream.Stream), args.Error(1)
}

func (m *MockRepository) ListByAccount(ctx context.Context, account string, limit, offset int) ([]*stream.Stream, error) {
	args := m.Called(ctx, account, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stream.Stream), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, s *stream.Stream) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
