package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainEvent "github.com/streampay/streampay/internal/domain/event"
	ledgerMocks "github.com/streampay/streampay/internal/domain/ledger/mocks"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

type failingTxRunner struct{}

func (failingTxRunner) RunInTx(context.Context, func(domainStream.Repository, domainEvent.Repository) error) error {
	return errors.New("connection reset")
}

func TestCreateCompensatesEscrowOnCommitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ldg := ledgerMocks.NewMockLedger(ctrl)
	clock := ledgerMocks.NewMockClock(ctrl)
	ids := ledgerMocks.NewMockIDSource(ctrl)

	clock.EXPECT().Now().Return(time.Unix(0, 0)).AnyTimes()
	ids.EXPECT().NextStreamID(gomock.Any(), "alice").Return(int64(1), nil)

	// The escrow debit must be compensated when the commit fails.
	gomock.InOrder(
		ldg.EXPECT().Debit(gomock.Any(), "alice", gomock.Any()).Return(nil),
		ldg.EXPECT().Credit(gomock.Any(), "alice", gomock.Any()).Return(nil),
	)

	streams := memory.NewStreamRepository()
	events := memory.NewEventRepository()
	svc := NewService(streams, events, failingTxRunner{}, ldg, clock, ids, nil, nil, zerolog.Nop())

	_, err := svc.Create(context.Background(), "alice", "bob", 1000, 100)
	require.Error(t, err)
}

func TestCancelCompensatesPayoutsOnCommitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ldg := ledgerMocks.NewMockLedger(ctrl)
	clock := ledgerMocks.NewMockClock(ctrl)
	ids := ledgerMocks.NewMockIDSource(ctrl)

	streams := memory.NewStreamRepository()
	events := memory.NewEventRepository()

	// Seed an accepted stream directly; only the cancel path runs against
	// the failing transaction runner.
	now := time.Unix(0, 0)
	st, err := domainStream.New(1, "alice", "bob", 1000, 100, now)
	require.NoError(t, err)
	require.NoError(t, st.Accept(now))
	require.NoError(t, streams.Create(context.Background(), st))

	clock.EXPECT().Now().Return(time.Unix(30, 0)).AnyTimes()

	gomock.InOrder(
		ldg.EXPECT().Credit(gomock.Any(), "bob", gomock.Any()).Return(nil),
		ldg.EXPECT().Credit(gomock.Any(), "alice", gomock.Any()).Return(nil),
		ldg.EXPECT().Debit(gomock.Any(), "bob", gomock.Any()).Return(nil),
		ldg.EXPECT().Debit(gomock.Any(), "alice", gomock.Any()).Return(nil),
	)

	svc := NewService(streams, events, failingTxRunner{}, ldg, clock, ids, nil, nil, zerolog.Nop())
	_, err = svc.Cancel(context.Background(), 1, "alice")
	require.Error(t, err)

	// The cancellation never took effect.
	current, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, current.CancelledAt)
}
