package stream

import "errors"

// Error taxonomy for stream lifecycle operations. Callers classify failures
// with errors.Is; only ErrStorageUnavailable is retryable.
var (
	ErrInvalidTerms       = errors.New("invalid stream terms")
	ErrNotFound           = errors.New("stream not found")
	ErrUnauthorized       = errors.New("caller not authorized for stream operation")
	ErrInvalidState       = errors.New("operation not legal in current stream state")
	ErrOverflow           = errors.New("amount arithmetic overflow")
	ErrStorageUnavailable = errors.New("stream storage unavailable")
)
