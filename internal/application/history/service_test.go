package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/internal/domain/event"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

func seedEvents(t *testing.T, repo *memory.EventRepository) {
	t.Helper()
	ctx := context.Background()
	prev := map[int64]string{}
	add := func(streamID int64, kind event.Kind, sec int64, payload any) {
		e, err := event.New(streamID, kind, time.Unix(sec, 0), payload, prev[streamID])
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, e))
		prev[streamID] = e.Hash
	}
	add(1, event.KindCreated, 0, event.CreatedPayload{Sender: "alice", Recipient: "bob", TotalAmount: 1000, DurationSeconds: 100})
	add(2, event.KindCreated, 1, event.CreatedPayload{Sender: "carol", Recipient: "bob", TotalAmount: 500, DurationSeconds: 50})
	add(1, event.KindAccepted, 2, event.AcceptedPayload{StartTime: time.Unix(2, 0)})
	add(1, event.KindClaimed, 60, event.ClaimedPayload{Amount: 580})
	add(2, event.KindCancelled, 70, event.CancelledPayload{ToRecipient: 0, ToSender: 500})
}

func TestStreamHistoryOrderedAndVerified(t *testing.T) {
	repo := memory.NewEventRepository()
	seedEvents(t, repo)
	svc := NewService(repo, zerolog.Nop())

	events, err := svc.StreamHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, event.KindCreated, events[0].Kind)
	require.Equal(t, event.KindAccepted, events[1].Kind)
	require.Equal(t, event.KindClaimed, events[2].Kind)
}

func TestQueryByKind(t *testing.T) {
	repo := memory.NewEventRepository()
	seedEvents(t, repo)
	svc := NewService(repo, zerolog.Nop())

	kind := string(event.KindCreated)
	result, err := svc.Query(context.Background(), QueryParams{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	for _, e := range result.Events {
		require.Equal(t, event.KindCreated, e.Kind)
	}
}

func TestQueryByTimeRange(t *testing.T) {
	repo := memory.NewEventRepository()
	seedEvents(t, repo)
	svc := NewService(repo, zerolog.Nop())

	from := time.Unix(2, 0)
	to := time.Unix(65, 0)
	result, err := svc.Query(context.Background(), QueryParams{StartTime: &from, EndTime: &to})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
}

func TestQueryRejectsUnknownKind(t *testing.T) {
	repo := memory.NewEventRepository()
	svc := NewService(repo, zerolog.Nop())

	kind := "STREAM_PAUSED"
	_, err := svc.Query(context.Background(), QueryParams{Kind: &kind})
	require.Error(t, err)
}

func TestQueryPaginationIsRestartable(t *testing.T) {
	repo := memory.NewEventRepository()
	seedEvents(t, repo)
	svc := NewService(repo, zerolog.Nop())

	first, err := svc.Query(context.Background(), QueryParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.True(t, first.Pagination.HasMore)
	require.NotNil(t, first.Pagination.Cursor)

	second, err := svc.Query(context.Background(), QueryParams{Limit: 10, Cursor: first.Pagination.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Events, 3)
	require.False(t, second.Pagination.HasMore)

	// No overlap between pages.
	seen := map[string]bool{}
	for _, e := range append(first.Events, second.Events...) {
		require.False(t, seen[e.EventID.String()])
		seen[e.EventID.String()] = true
	}
}
