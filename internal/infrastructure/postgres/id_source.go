package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IDSource allocates stream ids from a database sequence. Sequence values
// are monotone across all issuers, which satisfies per-issuer monotonicity
// and survives restarts.
type IDSource struct {
	pool *pgxpool.Pool
}

func NewIDSource(pool *pgxpool.Pool) *IDSource {
	return &IDSource{pool: pool}
}

func (s *IDSource) NextStreamID(ctx context.Context, _ string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('stream_id_seq')`).Scan(&id); err != nil {
		return 0, wrapStorageErr(err)
	}
	return id, nil
}
