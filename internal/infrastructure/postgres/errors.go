package postgres

import (
	"fmt"

	"github.com/streampay/streampay/internal/domain/stream"
)

// wrapStorageErr tags database failures so callers can match them with
// errors.Is against the storage sentinel.
func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", stream.ErrStorageUnavailable, err)
}
