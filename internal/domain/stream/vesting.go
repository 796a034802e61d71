package stream

import (
	"math/big"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
)

// VestedAt computes how much of the total has vested at the reference
// instant. The result is zero before acceptance and before the start instant,
// the full total at or after the end instant, and otherwise
// total * elapsed / duration with floor rounding. Floor rounding keeps the
// result monotonically non-decreasing and guarantees the exact total is
// reproduced at the end instant with no residual dust.
func VestedAt(s *Stream, now time.Time) (amount.Amount, error) {
	if s.StartTime == nil || now.Before(*s.StartTime) {
		return 0, nil
	}
	elapsed := now.Unix() - s.StartTime.Unix()
	if elapsed >= s.DurationSeconds {
		return s.TotalAmount, nil
	}
	vested, err := s.TotalAmount.MulDiv(uint64(elapsed), uint64(s.DurationSeconds))
	if err != nil {
		return 0, ErrOverflow
	}
	if vested > s.TotalAmount {
		vested = s.TotalAmount
	}
	return vested, nil
}

// ClaimableAt returns the vested amount not yet claimed. Claims never exceed
// the vested amount at the time they were made, so the subtraction cannot go
// negative on consistent state; a clamp guards reconstructed snapshots.
func ClaimableAt(s *Stream, now time.Time) (amount.Amount, error) {
	vested, err := VestedAt(s, now)
	if err != nil {
		return 0, err
	}
	if s.ClaimedAmount >= vested {
		return 0, nil
	}
	return vested - s.ClaimedAmount, nil
}

// Settlement is the division of remaining value when a stream is cancelled.
// ToRecipient + ToSender + the already-claimed amount always equals the total.
type Settlement struct {
	ToRecipient amount.Amount `json:"toRecipient"`
	ToSender    amount.Amount `json:"toSender"`
}

// SettleAt computes the cancellation split at the reference instant: newly
// vested but unclaimed value is released to the recipient, the unvested
// remainder returns to the sender.
func SettleAt(s *Stream, now time.Time) (Settlement, error) {
	vested, err := VestedAt(s, now)
	if err != nil {
		return Settlement{}, err
	}
	toRecipient, err := vested.Sub(s.ClaimedAmount)
	if err != nil {
		return Settlement{}, err
	}
	toSender, err := s.TotalAmount.Sub(vested)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{ToRecipient: toRecipient, ToSender: toSender}, nil
}

// Rate returns the instantaneous vesting rate in octas per second as an exact
// rational. Defined only while the stream is active; callers gate on Classify.
func Rate(s *Stream) *big.Rat {
	return new(big.Rat).SetFrac(s.TotalAmount.BigInt(), big.NewInt(s.DurationSeconds))
}
