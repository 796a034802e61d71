package event

import (
	"context"
	"time"
)

// Filter narrows an event query. Nil fields match everything.
type Filter struct {
	StreamID  *int64
	Kind      *Kind
	StartTime *time.Time
	EndTime   *time.Time
}

// Cursor marks a resumption point in a query ordered by (timestamp, id)
// ascending. New events never reorder prior ones, so a restarted query is
// stable under concurrent appends.
type Cursor struct {
	LastTimestamp time.Time `json:"lastTimestamp"`
	LastID        int64     `json:"lastId"`
}

// Repository defines the append-only event store. Append is the only write.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	// ListByStream returns every event for a stream ordered by occurrence.
	ListByStream(ctx context.Context, streamID int64) ([]*Event, error)
	// LatestByStream returns the most recent event for a stream, or nil if
	// the stream has none. Used to link the hash chain.
	LatestByStream(ctx context.Context, streamID int64) (*Event, error)
	// Query returns events matching the filter ordered by timestamp
	// ascending, resuming after the cursor when one is given. The returned
	// cursor is nil once the result set is exhausted.
	Query(ctx context.Context, filter Filter, cursor *Cursor, limit int) ([]*Event, *Cursor, error)
}
