package stream

import (
	"fmt"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
)

// Status represents the lifecycle state of a stream.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Stream is a time-bound, linearly-vesting value commitment from a sender to
// a recipient. Status is never stored: it is derived from the terms and the
// reference time by Classify, so it cannot drift from the fields it depends on.
type Stream struct {
	ID              int64         `json:"streamId"`
	Sender          string        `json:"sender"`
	Recipient       string        `json:"recipient"`
	TotalAmount     amount.Amount `json:"totalAmount"`
	DurationSeconds int64         `json:"durationSeconds"`
	StartTime       *time.Time    `json:"startTime,omitempty"`
	ClaimedAmount   amount.Amount `json:"claimedAmount"`
	CancelledAt     *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// New validates creation terms and returns a pending stream. The identifier
// is assigned by the caller from the issuing account's id source.
func New(id int64, sender, recipient string, total amount.Amount, durationSeconds int64, createdAt time.Time) (*Stream, error) {
	if sender == "" || recipient == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidTerms)
	}
	if sender == recipient {
		return nil, fmt.Errorf("%w: sender and recipient must differ", ErrInvalidTerms)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidTerms)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidTerms)
	}
	return &Stream{
		ID:              id,
		Sender:          sender,
		Recipient:       recipient,
		TotalAmount:     total,
		DurationSeconds: durationSeconds,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// EndTime returns the instant the stream fully vests. Valid only once the
// stream has been accepted. Computed in whole seconds: going through
// time.Duration would overflow its nanosecond representation for durations
// beyond ~292 years.
func (s *Stream) EndTime() time.Time {
	if s.StartTime == nil {
		return time.Time{}
	}
	return time.Unix(s.StartTime.Unix()+s.DurationSeconds, 0).UTC()
}

// Classify derives the lifecycle state at the reference instant. Cancellation
// is an explicit terminal flag and takes precedence over the time-based
// classification. Elapsed time is compared in whole seconds, the same
// arithmetic VestedAt uses, so a stream never classifies as completed while
// the vesting math says value is still accruing.
func Classify(s *Stream, now time.Time) Status {
	if s.CancelledAt != nil {
		return StatusCancelled
	}
	if s.StartTime == nil {
		return StatusPending
	}
	if now.Unix()-s.StartTime.Unix() >= s.DurationSeconds {
		return StatusCompleted
	}
	return StatusActive
}

// Accept marks the stream active, pinning the vesting start to the given
// instant. StartTime is set exactly once.
func (s *Stream) Accept(now time.Time) error {
	if Classify(s, now) != StatusPending {
		return fmt.Errorf("%w: accept requires a pending stream", ErrInvalidState)
	}
	start := now
	s.StartTime = &start
	s.UpdatedAt = now
	return nil
}

// RecordClaim applies a claimed delta, keeping ClaimedAmount within the total.
func (s *Stream) RecordClaim(delta amount.Amount, now time.Time) error {
	claimed, err := s.ClaimedAmount.Add(delta)
	if err != nil {
		return ErrOverflow
	}
	if claimed > s.TotalAmount {
		return fmt.Errorf("%w: claim exceeds total amount", ErrInvalidState)
	}
	s.ClaimedAmount = claimed
	s.UpdatedAt = now
	return nil
}

// Cancel flags the stream terminal at the given instant.
func (s *Stream) Cancel(now time.Time) error {
	switch Classify(s, now) {
	case StatusPending, StatusActive:
	default:
		return fmt.Errorf("%w: only pending or active streams can be cancelled", ErrInvalidState)
	}
	cancelled := now
	s.CancelledAt = &cancelled
	s.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so callers can mutate freely without affecting
// the stored instance.
func (s *Stream) Clone() *Stream {
	if s == nil {
		return nil
	}
	clone := *s
	if s.StartTime != nil {
		start := *s.StartTime
		clone.StartTime = &start
	}
	if s.CancelledAt != nil {
		cancelled := *s.CancelledAt
		clone.CancelledAt = &cancelled
	}
	return &clone
}
