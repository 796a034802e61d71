// Package memory provides in-memory implementations of the engine's
// repositories and collaborators. They back unit tests and the single-process
// demo wiring; the postgres package is the durable counterpart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streampay/streampay/internal/domain/stream"
)

// StreamRepository implements stream.Repository over a map.
type StreamRepository struct {
	mu      sync.RWMutex
	streams map[int64]*stream.Stream
}

func NewStreamRepository() *StreamRepository {
	return &StreamRepository{streams: make(map[int64]*stream.Stream)}
}

func (r *StreamRepository) Create(_ context.Context, s *stream.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.ID] = s.Clone()
	return nil
}

func (r *StreamRepository) GetByID(_ context.Context, streamID int64) (*stream.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[streamID].Clone(), nil
}

func (r *StreamRepository) ListBySender(_ context.Context, sender string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(func(s *stream.Stream) bool { return s.Sender == sender }, limit, offset), nil
}

func (r *StreamRepository) ListByRecipient(_ context.Context, recipient string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(func(s *stream.Stream) bool { return s.Recipient == recipient }, limit, offset), nil
}

func (r *StreamRepository) ListByAccount(_ context.Context, account string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(func(s *stream.Stream) bool { return s.Sender == account || s.Recipient == account }, limit, offset), nil
}

func (r *StreamRepository) Update(_ context.Context, s *stream.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.ID] = s.Clone()
	return nil
}

func (r *StreamRepository) list(match func(*stream.Stream) bool, limit, offset int) []*stream.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*stream.Stream
	for _, s := range r.streams {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
