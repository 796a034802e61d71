package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/internal/application/history"
	"github.com/streampay/streampay/internal/application/rate"
	"github.com/streampay/streampay/internal/application/reconcile"
	appStream "github.com/streampay/streampay/internal/application/stream"
	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/infrastructure/memory"
)

// accountStore adapts the in-memory ledger to the funding endpoints.
type accountStore struct {
	ledger *memory.Ledger
}

func (s *accountStore) Deposit(ctx context.Context, account string, amt amount.Amount) error {
	return s.ledger.Credit(ctx, account, amt)
}

func (s *accountStore) Balance(_ context.Context, account string) (amount.Amount, error) {
	return s.ledger.Balance(account), nil
}

func newTestServer(t *testing.T) (*Server, *memory.Ledger) {
	t.Helper()
	streams := memory.NewStreamRepository()
	events := memory.NewEventRepository()
	ldg := memory.NewLedger()
	clock := memory.NewClock(time.Unix(0, 0))
	svc := appStream.NewService(streams, events, memory.NewTxRunner(streams, events),
		ldg, clock, memory.NewIDSource(), nil, nil, zerolog.Nop())
	srv := NewServer(
		svc,
		rate.NewService(streams, clock, zerolog.Nop()),
		history.NewService(events, zerolog.Nop()),
		reconcile.NewService(streams, events, zerolog.Nop()),
		&accountStore{ledger: ldg},
	)
	return srv, ldg
}

func TestDepositFundsAccount(t *testing.T) {
	srv, ldg := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/alice/deposit",
		strings.NewReader(`{"amount":"12.5"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Account        string `json:"account"`
		Deposited      uint64 `json:"deposited"`
		Balance        uint64 `json:"balance"`
		BalanceDisplay string `json:"balanceDisplay"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "alice", body.Account)
	require.Equal(t, uint64(1_250_000_000), body.Deposited)
	require.Equal(t, uint64(1_250_000_000), body.Balance)
	require.Equal(t, "12.5", body.BalanceDisplay)
	require.Equal(t, amount.Amount(1_250_000_000), ldg.Balance("alice"))
}

func TestDepositRejectsBadAmount(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, payload := range []string{`{"amount":"0"}`, `{"amount":"-3"}`, `{"amount":"abc"}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/accounts/alice/deposit",
			strings.NewReader(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "payload %s", payload)
	}
}

func TestAccountBalanceReadsLedger(t *testing.T) {
	srv, ldg := newTestServer(t)
	ldg.Deposit("bob", 500_000_000)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/bob/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Balance        uint64 `json:"balance"`
		BalanceDisplay string `json:"balanceDisplay"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, uint64(500_000_000), body.Balance)
	require.Equal(t, "5", body.BalanceDisplay)
}
