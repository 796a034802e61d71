package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/streampay/streampay/internal/application/policy"
	"github.com/streampay/streampay/internal/domain/amount"
	domainEvent "github.com/streampay/streampay/internal/domain/event"
	"github.com/streampay/streampay/internal/domain/ledger"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
	"github.com/streampay/streampay/internal/infrastructure/metrics"
)

// TxRunner commits a stream mutation and its event in one transaction.
// Either both are persisted or neither is; partial application is a
// correctness bug, not a degraded mode.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(streams domainStream.Repository, events domainEvent.Repository) error) error
}

// Service is the lifecycle state machine: the only legal mutator of streams.
// The four operations (Create, Accept, Claim, Cancel) validate the caller's
// role and the current state, run the vesting arithmetic, and commit the new
// stream state together with its event. Reads never take the per-stream lock.
type Service struct {
	streams domainStream.Repository
	events  domainEvent.Repository
	tx      TxRunner
	ledger  ledger.Ledger
	clock   ledger.Clock
	ids     ledger.IDSource
	policy  *policy.Policy
	metrics *metrics.Metrics
	locks   *streamLocks
	logger  zerolog.Logger
}

// NewService creates the stream lifecycle service. policy and m may be nil.
func NewService(
	streams domainStream.Repository,
	events domainEvent.Repository,
	tx TxRunner,
	ldg ledger.Ledger,
	clock ledger.Clock,
	ids ledger.IDSource,
	pol *policy.Policy,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		streams: streams,
		events:  events,
		tx:      tx,
		ledger:  ldg,
		clock:   clock,
		ids:     ids,
		policy:  pol,
		metrics: m,
		locks:   newStreamLocks(),
		logger:  logger.With().Str("service", "stream").Logger(),
	}
}

// Create escrows the total amount from the sender and persists a pending
// stream along with its creation event. The escrow debit is compensated if
// the commit fails.
func (s *Service) Create(ctx context.Context, sender, recipient string, total amount.Amount, durationSeconds int64) (*domainStream.Stream, error) {
	start := time.Now()
	st, err := s.create(ctx, sender, recipient, total, durationSeconds)
	s.metrics.ObserveOperation("create", start, err)
	return st, err
}

func (s *Service) create(ctx context.Context, sender, recipient string, total amount.Amount, durationSeconds int64) (*domainStream.Stream, error) {
	if err := s.policy.AllowCreate(sender, recipient, total, durationSeconds); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	id, err := s.ids.NextStreamID(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("allocate stream id: %w", err)
	}
	st, err := domainStream.New(id, sender, recipient, total, durationSeconds, now)
	if err != nil {
		return nil, err
	}

	e, err := domainEvent.New(st.ID, domainEvent.KindCreated, now, domainEvent.CreatedPayload{
		Sender:          sender,
		Recipient:       recipient,
		TotalAmount:     total,
		DurationSeconds: durationSeconds,
	}, "")
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Debit(ctx, sender, total); err != nil {
		return nil, fmt.Errorf("escrow debit: %w", err)
	}
	err = s.tx.RunInTx(ctx, func(streams domainStream.Repository, events domainEvent.Repository) error {
		if err := streams.Create(ctx, st); err != nil {
			return err
		}
		return events.Append(ctx, e)
	})
	if err != nil {
		s.compensate(ctx, sender, total, "create")
		return nil, fmt.Errorf("commit create: %w", err)
	}

	s.logger.Info().
		Int64("streamId", st.ID).
		Str("sender", sender).
		Str("recipient", recipient).
		Uint64("totalOctas", uint64(total)).
		Int64("durationSeconds", durationSeconds).
		Msg("stream created")
	return st.Clone(), nil
}

// Accept transitions a pending stream to active, pinning the vesting start
// to the acceptance instant. Only the recipient may accept.
func (s *Service) Accept(ctx context.Context, streamID int64, acceptor string) (*domainStream.Stream, error) {
	start := time.Now()
	st, err := s.accept(ctx, streamID, acceptor)
	s.metrics.ObserveOperation("accept", start, err)
	return st, err
}

func (s *Service) accept(ctx context.Context, streamID int64, acceptor string) (*domainStream.Stream, error) {
	unlock := s.locks.acquire(streamID)
	defer unlock()

	st, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if acceptor != st.Recipient {
		return nil, fmt.Errorf("%w: only the recipient may accept stream %d", domainStream.ErrUnauthorized, streamID)
	}
	now := s.clock.Now().UTC()
	if err := st.Accept(now); err != nil {
		return nil, err
	}

	e, err := s.nextEvent(ctx, streamID, domainEvent.KindAccepted, now, domainEvent.AcceptedPayload{StartTime: now})
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(streams domainStream.Repository, events domainEvent.Repository) error {
		if err := streams.Update(ctx, st); err != nil {
			return err
		}
		return events.Append(ctx, e)
	})
	if err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}

	s.logger.Info().
		Int64("streamId", streamID).
		Str("acceptor", acceptor).
		Time("startTime", now).
		Msg("stream accepted")
	return st.Clone(), nil
}

// Claim releases everything vested but not yet claimed to the recipient.
// A claim with nothing currently claimable is a no-op success, never an
// error: retries and racing claims converge on the persisted claimed amount.
func (s *Service) Claim(ctx context.Context, streamID int64, claimant string) (amount.Amount, error) {
	start := time.Now()
	delta, err := s.claim(ctx, streamID, claimant)
	s.metrics.ObserveOperation("claim", start, err)
	return delta, err
}

func (s *Service) claim(ctx context.Context, streamID int64, claimant string) (amount.Amount, error) {
	unlock := s.locks.acquire(streamID)
	defer unlock()

	st, err := s.load(ctx, streamID)
	if err != nil {
		return 0, err
	}
	if claimant != st.Recipient {
		return 0, fmt.Errorf("%w: only the recipient may claim stream %d", domainStream.ErrUnauthorized, streamID)
	}
	now := s.clock.Now().UTC()
	switch domainStream.Classify(st, now) {
	case domainStream.StatusActive, domainStream.StatusCompleted:
	default:
		return 0, fmt.Errorf("%w: stream %d is not claimable", domainStream.ErrInvalidState, streamID)
	}

	delta, err := domainStream.ClaimableAt(st, now)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, nil
	}
	if err := st.RecordClaim(delta, now); err != nil {
		return 0, err
	}

	e, err := s.nextEvent(ctx, streamID, domainEvent.KindClaimed, now, domainEvent.ClaimedPayload{Amount: delta})
	if err != nil {
		return 0, err
	}
	if err := s.ledger.Credit(ctx, st.Recipient, delta); err != nil {
		return 0, fmt.Errorf("claim payout: %w", err)
	}
	err = s.tx.RunInTx(ctx, func(streams domainStream.Repository, events domainEvent.Repository) error {
		if err := streams.Update(ctx, st); err != nil {
			return err
		}
		return events.Append(ctx, e)
	})
	if err != nil {
		s.compensateDebit(ctx, st.Recipient, delta, "claim")
		return 0, fmt.Errorf("commit claim: %w", err)
	}

	s.metrics.AddClaimed(uint64(delta))
	s.logger.Info().
		Int64("streamId", streamID).
		Str("claimant", claimant).
		Uint64("claimedOctas", uint64(delta)).
		Msg("stream claimed")
	return delta, nil
}

// Cancel terminates a pending or active stream, releasing newly vested value
// to the recipient and returning the unvested remainder to the sender.
// Either party may cancel.
func (s *Service) Cancel(ctx context.Context, streamID int64, requester string) (domainStream.Settlement, error) {
	start := time.Now()
	split, err := s.cancel(ctx, streamID, requester)
	s.metrics.ObserveOperation("cancel", start, err)
	return split, err
}

func (s *Service) cancel(ctx context.Context, streamID int64, requester string) (domainStream.Settlement, error) {
	unlock := s.locks.acquire(streamID)
	defer unlock()

	st, err := s.load(ctx, streamID)
	if err != nil {
		return domainStream.Settlement{}, err
	}
	if requester != st.Sender && requester != st.Recipient {
		return domainStream.Settlement{}, fmt.Errorf("%w: only a party to stream %d may cancel it", domainStream.ErrUnauthorized, streamID)
	}
	now := s.clock.Now().UTC()
	split, err := domainStream.SettleAt(st, now)
	if err != nil {
		return domainStream.Settlement{}, err
	}
	if err := st.Cancel(now); err != nil {
		return domainStream.Settlement{}, err
	}

	e, err := s.nextEvent(ctx, streamID, domainEvent.KindCancelled, now, domainEvent.CancelledPayload{
		ToRecipient: split.ToRecipient,
		ToSender:    split.ToSender,
	})
	if err != nil {
		return domainStream.Settlement{}, err
	}
	if split.ToRecipient > 0 {
		if err := s.ledger.Credit(ctx, st.Recipient, split.ToRecipient); err != nil {
			return domainStream.Settlement{}, fmt.Errorf("settlement payout to recipient: %w", err)
		}
	}
	if split.ToSender > 0 {
		if err := s.ledger.Credit(ctx, st.Sender, split.ToSender); err != nil {
			if split.ToRecipient > 0 {
				s.compensateDebit(ctx, st.Recipient, split.ToRecipient, "cancel")
			}
			return domainStream.Settlement{}, fmt.Errorf("settlement refund to sender: %w", err)
		}
	}
	err = s.tx.RunInTx(ctx, func(streams domainStream.Repository, events domainEvent.Repository) error {
		if err := streams.Update(ctx, st); err != nil {
			return err
		}
		return events.Append(ctx, e)
	})
	if err != nil {
		if split.ToRecipient > 0 {
			s.compensateDebit(ctx, st.Recipient, split.ToRecipient, "cancel")
		}
		if split.ToSender > 0 {
			s.compensateDebit(ctx, st.Sender, split.ToSender, "cancel")
		}
		return domainStream.Settlement{}, fmt.Errorf("commit cancel: %w", err)
	}

	s.metrics.AddSettled("recipient", uint64(split.ToRecipient))
	s.metrics.AddSettled("sender", uint64(split.ToSender))
	s.logger.Info().
		Int64("streamId", streamID).
		Str("requester", requester).
		Uint64("toRecipientOctas", uint64(split.ToRecipient)).
		Uint64("toSenderOctas", uint64(split.ToSender)).
		Msg("stream cancelled")
	return split, nil
}

// Get returns a copy of the stream.
func (s *Service) Get(ctx context.Context, streamID int64) (*domainStream.Stream, error) {
	st, err := s.load(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// ListBySender returns streams issued by the account.
func (s *Service) ListBySender(ctx context.Context, sender string, limit, offset int) ([]*domainStream.Stream, error) {
	return s.streams.ListBySender(ctx, sender, limit, offset)
}

// ListByRecipient returns streams payable to the account.
func (s *Service) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]*domainStream.Stream, error) {
	return s.streams.ListByRecipient(ctx, recipient, limit, offset)
}

// ListByAccount returns streams the account participates in on either side.
func (s *Service) ListByAccount(ctx context.Context, account string, limit, offset int) ([]*domainStream.Stream, error) {
	return s.streams.ListByAccount(ctx, account, limit, offset)
}

// Now exposes the service clock so read-side callers classify and compute
// claimable amounts against the same time source mutations use.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) load(ctx context.Context, streamID int64) (*domainStream.Stream, error) {
	st, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("load stream %d: %w", streamID, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: stream %d", domainStream.ErrNotFound, streamID)
	}
	return st, nil
}

// nextEvent builds the next event for a stream, linked to the tail of its
// hash chain.
func (s *Service) nextEvent(ctx context.Context, streamID int64, kind domainEvent.Kind, ts time.Time, payload any) (*domainEvent.Event, error) {
	latest, err := s.events.LatestByStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("load event chain tail: %w", err)
	}
	prevHash := ""
	if latest != nil {
		prevHash = latest.Hash
	}
	return domainEvent.New(streamID, kind, ts, payload, prevHash)
}

func (s *Service) compensate(ctx context.Context, account string, amt amount.Amount, op string) {
	if err := s.ledger.Credit(ctx, account, amt); err != nil {
		s.logger.Error().Err(err).
			Str("op", op).
			Str("account", account).
			Uint64("octas", uint64(amt)).
			Msg("escrow compensation failed; manual reconciliation required")
	}
}

func (s *Service) compensateDebit(ctx context.Context, account string, amt amount.Amount, op string) {
	if err := s.ledger.Debit(ctx, account, amt); err != nil {
		s.logger.Error().Err(err).
			Str("op", op).
			Str("account", account).
			Uint64("octas", uint64(amt)).
			Msg("payout compensation failed; manual reconciliation required")
	}
}
