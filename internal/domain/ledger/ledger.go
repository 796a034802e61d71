package ledger

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_ledger.go -package=mocks . Ledger,Clock,IDSource

import (
	"context"
	"errors"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("ledger unavailable")
)

// Ledger is the external escrow collaborator. Create debits the sender's
// disposable balance into escrow; claim and cancel credit the parties per the
// vesting split. Both calls must be invertible so a failed commit can be
// compensated.
type Ledger interface {
	Debit(ctx context.Context, account string, amt amount.Amount) error
	Credit(ctx context.Context, account string, amt amount.Amount) error
}

// Clock supplies the reference time. Injected so tests control vesting math
// deterministically; the engine never reads wall time on its own.
type Clock interface {
	Now() time.Time
}

// SystemClock reads machine time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDSource allocates stream identifiers, monotonically increasing per issuing
// account.
type IDSource interface {
	NextStreamID(ctx context.Context, issuer string) (int64, error)
}
