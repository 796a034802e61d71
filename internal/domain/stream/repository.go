package stream

import (
	"context"
)

// Repository defines stream persistence. All mutation flows through the
// lifecycle service; no other component writes streams.
type Repository interface {
	Create(ctx context.Context, s *Stream) error
	GetByID(ctx context.Context, streamID int64) (*Stream, error)
	ListBySender(ctx context.Context, sender string, limit, offset int) ([]*Stream, error)
	ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]*Stream, error)
	// ListByAccount returns every stream the account participates in, either
	// side, ordered by stream id ascending.
	ListByAccount(ctx context.Context, account string, limit, offset int) ([]*Stream, error)
	Update(ctx context.Context, s *Stream) error
}
