package history

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/streampay/streampay/internal/domain/event"
)

// Service serves the audit trail: per-stream history and filtered queries
// over the append-only event log. Read-only; nothing here writes events.
type Service struct {
	events event.Repository
	logger zerolog.Logger
}

func NewService(events event.Repository, logger zerolog.Logger) *Service {
	return &Service{
		events: events,
		logger: logger.With().Str("service", "history").Logger(),
	}
}

// QueryParams narrows an event query at the API edge.
type QueryParams struct {
	StreamID  *int64
	Kind      *string
	StartTime *time.Time
	EndTime   *time.Time
	Cursor    *string
	Limit     int
}

// QueryResult is one page of events plus the resumption cursor.
type QueryResult struct {
	Events     []*event.Event `json:"events"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination holds pagination information
type Pagination struct {
	Cursor  *string `json:"cursor,omitempty"`
	HasMore bool    `json:"hasMore"`
	Count   int     `json:"count"`
}

// StreamHistory returns every event for one stream in occurrence order,
// verifying the hash chain before handing the history out.
func (s *Service) StreamHistory(ctx context.Context, streamID int64) ([]*event.Event, error) {
	events, err := s.events.ListByStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("list events for stream %d: %w", streamID, err)
	}
	if err := event.VerifyChain(events); err != nil {
		s.logger.Error().Err(err).Int64("streamId", streamID).Msg("event chain verification failed")
		return nil, fmt.Errorf("stream %d history integrity: %w", streamID, err)
	}
	return events, nil
}

// Query retrieves events matching the parameters, ordered by timestamp
// ascending, restartable via the returned cursor.
func (s *Service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	var cursor *event.Cursor
	if params.Cursor != nil && *params.Cursor != "" {
		c, err := decodeCursor(*params.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		cursor = c
	}

	filter := event.Filter{
		StreamID:  params.StreamID,
		StartTime: params.StartTime,
		EndTime:   params.EndTime,
	}
	if params.Kind != nil {
		k := event.Kind(*params.Kind)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown event kind: %s", *params.Kind)
		}
		filter.Kind = &k
	}

	events, nextCursor, err := s.events.Query(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	result := &QueryResult{
		Events: events,
		Pagination: Pagination{
			Count:   len(events),
			HasMore: nextCursor != nil,
		},
	}
	if nextCursor != nil {
		encoded, err := encodeCursor(nextCursor)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to encode cursor")
		} else {
			result.Pagination.Cursor = &encoded
		}
	}
	return result, nil
}

// encodeCursor encodes a cursor to base64 string
func encodeCursor(c *event.Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// decodeCursor decodes a base64 string to cursor
func decodeCursor(s string) (*event.Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var c event.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
