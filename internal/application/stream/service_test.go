package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/internal/domain/amount"
	domainEvent "github.com/streampay/streampay/internal/domain/event"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

type fixture struct {
	svc     *Service
	streams *memory.StreamRepository
	events  *memory.EventRepository
	ledger  *memory.Ledger
	clock   *memory.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	streams := memory.NewStreamRepository()
	events := memory.NewEventRepository()
	ldg := memory.NewLedger()
	clock := memory.NewClock(time.Unix(0, 0))
	svc := NewService(
		streams,
		events,
		memory.NewTxRunner(streams, events),
		ldg,
		clock,
		memory.NewIDSource(),
		nil,
		nil,
		zerolog.Nop(),
	)
	ldg.Deposit("alice", 1_000_000)
	return &fixture{svc: svc, streams: streams, events: events, ledger: ldg, clock: clock}
}

func (f *fixture) createAccepted(t *testing.T, total amount.Amount, durationSeconds int64) *domainStream.Stream {
	t.Helper()
	ctx := context.Background()
	st, err := f.svc.Create(ctx, "alice", "bob", total, durationSeconds)
	require.NoError(t, err)
	st, err = f.svc.Accept(ctx, st.ID, "bob")
	require.NoError(t, err)
	return st
}

func TestCreateEscrowsAndRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Create(ctx, "alice", "bob", 1000, 100)
	require.NoError(t, err)
	require.Equal(t, domainStream.StatusPending, domainStream.Classify(st, f.clock.Now()))
	require.Equal(t, amount.Amount(1_000_000-1000), f.ledger.Balance("alice"))

	events, err := f.events.ListByStream(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domainEvent.KindCreated, events[0].Kind)
}

func TestCreateRejectsBadTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "alice", "alice", 1000, 100)
	require.ErrorIs(t, err, domainStream.ErrInvalidTerms)

	_, err = f.svc.Create(ctx, "alice", "bob", 0, 100)
	require.ErrorIs(t, err, domainStream.ErrInvalidTerms)

	_, err = f.svc.Create(ctx, "alice", "bob", 1000, 0)
	require.ErrorIs(t, err, domainStream.ErrInvalidTerms)

	// Nothing escrowed, nothing logged.
	require.Equal(t, amount.Amount(1_000_000), f.ledger.Balance("alice"))
}

func TestCreateInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "alice", "bob", 2_000_000, 100)
	require.Error(t, err)
	require.Equal(t, amount.Amount(1_000_000), f.ledger.Balance("alice"))
}

func TestAcceptAuthorizationAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Create(ctx, "alice", "bob", 1000, 100)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, st.ID, "mallory")
	require.ErrorIs(t, err, domainStream.ErrUnauthorized)

	_, err = f.svc.Accept(ctx, 9999, "bob")
	require.ErrorIs(t, err, domainStream.ErrNotFound)

	accepted, err := f.svc.Accept(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, accepted.StartTime)

	_, err = f.svc.Accept(ctx, st.ID, "bob")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)
}

func TestClaimScenarioA(t *testing.T) {
	// create(total=1000, duration=100), accept at t=0, claim at t=50 pays
	// 500, claim at t=100 pays the remaining 500 and the stream completes.
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	f.clock.Set(time.Unix(50, 0))
	delta, err := f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(500), delta)
	require.Equal(t, amount.Amount(500), f.ledger.Balance("bob"))

	f.clock.Set(time.Unix(100, 0))
	delta, err = f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(500), delta)
	require.Equal(t, amount.Amount(1000), f.ledger.Balance("bob"))

	final, err := f.svc.Get(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, domainStream.StatusCompleted, domainStream.Classify(final, f.clock.Now()))
	require.Equal(t, final.TotalAmount, final.ClaimedAmount)
}

func TestClaimNothingVestedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	delta, err := f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(0), delta)

	// No event for a zero-delta claim: the log records transitions, and
	// nothing changed.
	events, err := f.events.ListByStream(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestClaimAuthorizationAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Create(ctx, "alice", "bob", 1000, 100)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, st.ID, "alice")
	require.ErrorIs(t, err, domainStream.ErrUnauthorized)

	// Pending streams are not claimable.
	_, err = f.svc.Claim(ctx, st.ID, "bob")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)

	_, err = f.svc.Claim(ctx, 9999, "bob")
	require.ErrorIs(t, err, domainStream.ErrNotFound)
}

func TestCancelScenarioB(t *testing.T) {
	// accept at t=0, cancel at t=30: recipient gets the 300 vested,
	// sender recovers the 700 unvested.
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	f.clock.Set(time.Unix(30, 0))
	split, err := f.svc.Cancel(ctx, st.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(300), split.ToRecipient)
	require.Equal(t, amount.Amount(700), split.ToSender)

	require.Equal(t, amount.Amount(300), f.ledger.Balance("bob"))
	require.Equal(t, amount.Amount(1_000_000), f.ledger.Balance("alice"))

	final, err := f.svc.Get(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, split.ToRecipient+split.ToSender+final.ClaimedAmount, final.TotalAmount)
}

func TestCancelScenarioCPendingRefundsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Create(ctx, "alice", "bob", 1000, 100)
	require.NoError(t, err)

	// The recipient rejecting a pending stream is the same cancellation.
	split, err := f.svc.Cancel(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(0), split.ToRecipient)
	require.Equal(t, amount.Amount(1000), split.ToSender)
	require.Equal(t, amount.Amount(1_000_000), f.ledger.Balance("alice"))
}

func TestCancelAuthorizationAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	_, err := f.svc.Cancel(ctx, st.ID, "mallory")
	require.ErrorIs(t, err, domainStream.ErrUnauthorized)

	// Completed streams cannot be cancelled.
	f.clock.Set(time.Unix(100, 0))
	_, err = f.svc.Cancel(ctx, st.ID, "alice")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)

	second := f.createAccepted(t, 1000, 100)
	f.clock.Set(time.Unix(130, 0))
	_, err = f.svc.Cancel(ctx, second.ID, "alice")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)
}

func TestCancelledStreamRejectsFurtherOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	f.clock.Set(time.Unix(10, 0))
	_, err := f.svc.Cancel(ctx, st.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, st.ID, "bob")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)

	_, err = f.svc.Cancel(ctx, st.ID, "alice")
	require.ErrorIs(t, err, domainStream.ErrInvalidState)
}

func TestConcurrentClaimsScenarioD(t *testing.T) {
	// Two claims race at the same instant: exactly one advances the claimed
	// amount, the other observes the post-state and pays nothing. Neither
	// errors and the recipient is credited exactly once.
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)
	f.clock.Set(time.Unix(50, 0))

	deltas := make([]amount.Amount, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			deltas[i], errs[i] = f.svc.Claim(ctx, st.ID, "bob")
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.ElementsMatch(t, []amount.Amount{500, 0}, deltas)
	require.Equal(t, amount.Amount(500), f.ledger.Balance("bob"))
}

func TestClaimRetryDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)
	f.clock.Set(time.Unix(50, 0))

	first, err := f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(500), first)

	// Retrying at the same instant recomputes from persisted state.
	retry, err := f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, amount.Amount(0), retry)
	require.Equal(t, amount.Amount(500), f.ledger.Balance("bob"))
}

func TestEventChainStaysLinked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)

	f.clock.Set(time.Unix(50, 0))
	_, err := f.svc.Claim(ctx, st.ID, "bob")
	require.NoError(t, err)
	f.clock.Set(time.Unix(60, 0))
	_, err = f.svc.Cancel(ctx, st.ID, "alice")
	require.NoError(t, err)

	events, err := f.events.ListByStream(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.NoError(t, domainEvent.VerifyChain(events))
}

func TestMonotonicStreamIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "alice", "bob", 100, 10)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, "alice", "carol", 100, 10)
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
}

func TestLedgerFailureLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createAccepted(t, 1000, 100)
	f.clock.Set(time.Unix(50, 0))

	failing := &failingLedger{failCredit: true}
	f.svc.ledger = failing

	_, err := f.svc.Claim(ctx, st.ID, "bob")
	require.Error(t, err)

	// The claim never committed: claimed amount unchanged, no event.
	current, err := f.svc.Get(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, amount.Amount(0), current.ClaimedAmount)
	events, err := f.events.ListByStream(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

type failingLedger struct {
	failCredit bool
}

func (l *failingLedger) Debit(context.Context, string, amount.Amount) error {
	return nil
}

func (l *failingLedger) Credit(context.Context, string, amount.Amount) error {
	if l.failCredit {
		return errors.New("ledger offline")
	}
	return nil
}
