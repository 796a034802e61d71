package memory

import (
	"context"
	"sync"

	"github.com/streampay/streampay/internal/domain/event"
)

// EventRepository implements event.Repository over an append-only slice.
type EventRepository struct {
	mu     sync.RWMutex
	events []*event.Event
	nextID int64
}

func NewEventRepository() *EventRepository {
	return &EventRepository{nextID: 1}
}

func (r *EventRepository) Append(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *e
	stored.ID = r.nextID
	r.nextID++
	r.events = append(r.events, &stored)
	e.ID = stored.ID
	return nil
}

func (r *EventRepository) ListByStream(_ context.Context, streamID int64) ([]*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*event.Event
	for _, e := range r.events {
		if e.StreamID == streamID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *EventRepository) LatestByStream(_ context.Context, streamID int64) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].StreamID == streamID {
			copied := *r.events[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *EventRepository) Query(_ context.Context, filter event.Filter, cursor *event.Cursor, limit int) ([]*event.Event, *event.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []*event.Event
	for _, e := range r.events {
		if !matches(e, filter) {
			continue
		}
		if cursor != nil && !after(e, cursor) {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if len(out) == limit+1 {
			break
		}
	}
	var next *event.Cursor
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = &event.Cursor{LastTimestamp: last.Timestamp, LastID: last.ID}
	}
	return out, next, nil
}

func matches(e *event.Event, f event.Filter) bool {
	if f.StreamID != nil && e.StreamID != *f.StreamID {
		return false
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

func after(e *event.Event, c *event.Cursor) bool {
	if e.Timestamp.After(c.LastTimestamp) {
		return true
	}
	return e.Timestamp.Equal(c.LastTimestamp) && e.ID > c.LastID
}
