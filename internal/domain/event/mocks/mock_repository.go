package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/streampay/streampay/internal/domain/event"
)

// MockRepository is a mock implementation of event.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Append(ctx context.Context, e *event.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockRepository) ListByStream(ctx context.Context, streamID int64) ([]*event.Event, error) {
	args := m.Called(ctx, streamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockRepository) LatestByStream(ctx context.Context, streamID int64) (*event.Event, error) {
	args := m.Called(ctx, streamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockRepository) Query(ctx context.Context, filter event.Filter, cursor *event.Cursor, limit int) ([]*event.Event, *event.Cursor, error) {
	args := m.Called(ctx, filter, cursor, limit)
	var events []*event.Event
	if args.Get(0) != nil {
		events = args.Get(0).([]*event.Event)
	}
	var next *event.Cursor
	if args.Get(1) != nil {
		next = args.Get(1).(*event.Cursor)
	}
	return events, next, args.Error(2)
}
