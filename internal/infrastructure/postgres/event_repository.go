package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streampay/streampay/internal/domain/event"
)

// EventRepository implements event.Repository over an append-only table.
type EventRepository struct {
	db querier
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: pool}
}

func newTxEventRepository(tx pgx.Tx) *EventRepository {
	return &EventRepository{db: tx}
}

const eventColumns = `id, event_id, stream_id, kind, ts, payload, prev_hash, hash`

func (r *EventRepository) Append(ctx context.Context, e *event.Event) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO stream_events (event_id, stream_id, kind, ts, payload, prev_hash, hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, e.EventID, e.StreamID, string(e.Kind), e.Timestamp, e.Payload, e.PrevHash, e.Hash)
	if err := row.Scan(&e.ID); err != nil {
		return wrapStorageErr(err)
	}
	return nil
}

func (r *EventRepository) ListByStream(ctx context.Context, streamID int64) ([]*event.Event, error) {
	return r.list(ctx, `
		SELECT `+eventColumns+` FROM stream_events WHERE stream_id=$1 ORDER BY ts ASC, id ASC
	`, streamID)
}

func (r *EventRepository) LatestByStream(ctx context.Context, streamID int64) (*event.Event, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM stream_events WHERE stream_id=$1 ORDER BY ts DESC, id DESC LIMIT 1
	`, streamID)
	e, err := scanEvent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return e, nil
}

func (r *EventRepository) Query(ctx context.Context, filter event.Filter, cursor *event.Cursor, limit int) ([]*event.Event, *event.Cursor, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.StreamID != nil {
		conds = append(conds, "stream_id="+arg(*filter.StreamID))
	}
	if filter.Kind != nil {
		conds = append(conds, "kind="+arg(string(*filter.Kind)))
	}
	if filter.StartTime != nil {
		conds = append(conds, "ts>="+arg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		conds = append(conds, "ts<="+arg(*filter.EndTime))
	}
	if cursor != nil {
		conds = append(conds, fmt.Sprintf("(ts, id) > (%s, %s)", arg(cursor.LastTimestamp), arg(cursor.LastID)))
	}

	sql := `SELECT ` + eventColumns + ` FROM stream_events`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	// limit+1 detects whether another page exists.
	sql += " ORDER BY ts ASC, id ASC LIMIT " + arg(limit+1)

	events, err := r.list(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	var next *event.Cursor
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		next = &event.Cursor{LastTimestamp: last.Timestamp, LastID: last.ID}
	}
	return events, next, nil
}

func (r *EventRepository) list(ctx context.Context, sql string, args ...any) ([]*event.Event, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []*event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapStorageErr(err)
		}
		out = append(out, e)
	}
	return out, wrapStorageErr(rows.Err())
}

func scanEvent(row pgx.Row) (*event.Event, error) {
	var e event.Event
	var kind string
	var payload json.RawMessage
	if err := row.Scan(&e.ID, &e.EventID, &e.StreamID, &kind, &e.Timestamp, &payload, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.Kind = event.Kind(kind)
	e.Payload = payload
	return &e, nil
}
