package rate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

func seedStream(t *testing.T, repo *memory.StreamRepository, id int64, sender, recipient string, total uint64, duration int64, start *time.Time) *stream.Stream {
	t.Helper()
	createdAt := time.Unix(0, 0)
	s, err := stream.New(id, sender, recipient, amount.Amount(total), duration, createdAt)
	require.NoError(t, err)
	if start != nil {
		require.NoError(t, s.Accept(*start))
	}
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func TestNetRateSumsActiveStreams(t *testing.T) {
	repo := memory.NewStreamRepository()
	clock := memory.NewClock(time.Unix(50, 0))
	svc := NewService(repo, clock, zerolog.Nop())
	start := time.Unix(0, 0)

	// bob receives 10/s and 5/s, pays out 3/s.
	seedStream(t, repo, 1, "alice", "bob", 1000, 100, &start)
	seedStream(t, repo, 2, "carol", "bob", 500, 100, &start)
	seedStream(t, repo, 3, "bob", "dave", 300, 100, &start)

	net, err := svc.NetRate(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 2, net.Incoming)
	require.Equal(t, 1, net.Outgoing)
	require.Equal(t, "12/1", net.Rate.String())
	require.InDelta(t, 12.0, net.OctasPerSecond, 1e-9)
}

func TestNetRateIgnoresInactiveStreams(t *testing.T) {
	repo := memory.NewStreamRepository()
	clock := memory.NewClock(time.Unix(50, 0))
	svc := NewService(repo, clock, zerolog.Nop())
	start := time.Unix(0, 0)

	// Pending: never accepted.
	seedStream(t, repo, 1, "alice", "bob", 1000, 100, nil)
	// Completed: ended at t=10.
	seedStream(t, repo, 2, "alice", "bob", 1000, 10, &start)
	// Cancelled mid-flight.
	cancelled := seedStream(t, repo, 3, "alice", "bob", 1000, 100, &start)
	require.NoError(t, cancelled.Cancel(time.Unix(20, 0)))
	require.NoError(t, repo.Update(context.Background(), cancelled))

	net, err := svc.NetRate(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 0, net.Incoming)
	require.Equal(t, 0, net.Outgoing)
	require.Equal(t, "0/1", net.Rate.String())
}

func TestNetRateFractionalRatesStayExact(t *testing.T) {
	repo := memory.NewStreamRepository()
	clock := memory.NewClock(time.Unix(1, 0))
	svc := NewService(repo, clock, zerolog.Nop())
	start := time.Unix(0, 0)

	// 1/3 + 1/3 + 1/3 octas per second nets to exactly 1.
	seedStream(t, repo, 1, "alice", "bob", 1, 3, &start)
	seedStream(t, repo, 2, "carol", "bob", 1, 3, &start)
	seedStream(t, repo, 3, "dave", "bob", 1, 3, &start)

	net, err := svc.NetRate(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "1/1", net.Rate.String())
}
