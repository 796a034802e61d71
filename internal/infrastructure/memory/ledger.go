package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/ledger"
)

// Ledger implements ledger.Ledger over per-account balances. Debits below
// zero are rejected.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]amount.Amount
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]amount.Amount)}
}

// Deposit seeds an account balance.
func (l *Ledger) Deposit(account string, amt amount.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amt
}

// Balance returns the current balance of an account.
func (l *Ledger) Balance(account string) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *Ledger) Debit(_ context.Context, account string, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] < amt {
		return fmt.Errorf("%w: account %s holds %d, needs %d", ledger.ErrInsufficientFunds, account, l.balances[account], amt)
	}
	l.balances[account] -= amt
	return nil
}

func (l *Ledger) Credit(_ context.Context, account string, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amt
	return nil
}

// Clock is a manually-advanced time source for deterministic vesting math.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock to the given instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// IDSource allocates stream ids from a single monotone counter, which keeps
// ids unique across the system and monotonically increasing per issuer.
type IDSource struct {
	mu   sync.Mutex
	next int64
}

func NewIDSource() *IDSource {
	return &IDSource{}
}

func (s *IDSource) NextStreamID(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next, nil
}
