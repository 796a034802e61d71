package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/stream"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can
// run standalone or inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StreamRepository implements stream.Repository.
type StreamRepository struct {
	db querier
}

func NewStreamRepository(pool *pgxpool.Pool) *StreamRepository {
	return &StreamRepository{db: pool}
}

func newTxStreamRepository(tx pgx.Tx) *StreamRepository {
	return &StreamRepository{db: tx}
}

const streamColumns = `id, sender, recipient, total_amount, duration_seconds, start_time, claimed_amount, cancelled_at, created_at, updated_at`

func (r *StreamRepository) Create(ctx context.Context, s *stream.Stream) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO streams (id, sender, recipient, total_amount, duration_seconds, start_time, claimed_amount, cancelled_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, s.ID, s.Sender, s.Recipient, encodeAmount(s.TotalAmount), s.DurationSeconds, s.StartTime, encodeAmount(s.ClaimedAmount), s.CancelledAt, s.CreatedAt, s.UpdatedAt)
	return wrapStorageErr(err)
}

func (r *StreamRepository) GetByID(ctx context.Context, streamID int64) (*stream.Stream, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE id=$1
	`, streamID)
	s, err := scanStream(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return s, nil
}

func (r *StreamRepository) ListBySender(ctx context.Context, sender string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE sender=$1 ORDER BY id ASC LIMIT $2 OFFSET $3
	`, sender, limit, offset)
}

func (r *StreamRepository) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE recipient=$1 ORDER BY id ASC LIMIT $2 OFFSET $3
	`, recipient, limit, offset)
}

func (r *StreamRepository) ListByAccount(ctx context.Context, account string, limit, offset int) ([]*stream.Stream, error) {
	return r.list(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE sender=$1 OR recipient=$1 ORDER BY id ASC LIMIT $2 OFFSET $3
	`, account, limit, offset)
}

func (r *StreamRepository) Update(ctx context.Context, s *stream.Stream) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE streams
		SET start_time=$2, claimed_amount=$3, cancelled_at=$4, updated_at=$5
		WHERE id=$1
	`, s.ID, s.StartTime, encodeAmount(s.ClaimedAmount), s.CancelledAt, s.UpdatedAt)
	if err != nil {
		return wrapStorageErr(err)
	}
	if tag.RowsAffected() == 0 {
		return stream.ErrNotFound
	}
	return nil
}

func (r *StreamRepository) list(ctx context.Context, sql string, args ...any) ([]*stream.Stream, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []*stream.Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, wrapStorageErr(err)
		}
		out = append(out, s)
	}
	return out, wrapStorageErr(rows.Err())
}

func scanStream(row pgx.Row) (*stream.Stream, error) {
	var s stream.Stream
	var total, claimed string
	var startTime, cancelledAt *time.Time
	if err := row.Scan(&s.ID, &s.Sender, &s.Recipient, &total, &s.DurationSeconds, &startTime, &claimed, &cancelledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if s.TotalAmount, err = decodeAmount(total); err != nil {
		return nil, err
	}
	if s.ClaimedAmount, err = decodeAmount(claimed); err != nil {
		return nil, err
	}
	s.StartTime = startTime
	s.CancelledAt = cancelledAt
	return &s, nil
}

// Amounts are stored as decimal text: they span the full unsigned 64-bit
// range, which BIGINT does not.
func encodeAmount(a amount.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func decodeAmount(s string) (amount.Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return amount.Amount(v), nil
}
