package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streampay/streampay/internal/domain/amount"
)

func (s *Server) accountStreams(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	limit, offset := parseLimitOffset(r, 100, 200)

	var (
		streams interface{}
		err     error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "sender":
		items, e := s.streamSvc.ListBySender(r.Context(), account, limit, offset)
		streams, err = s.streamViews(items), e
	case "recipient":
		items, e := s.streamSvc.ListByRecipient(r.Context(), account, limit, offset)
		streams, err = s.streamViews(items), e
	case "", "all":
		items, e := s.streamSvc.ListByAccount(r.Context(), account, limit, offset)
		streams, err = s.streamViews(items), e
	default:
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "role must be sender, recipient, or all")
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"streams": streams})
}

func (s *Server) accountRate(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	net, err := s.rateSvc.NetRate(r.Context(), account)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account":        account,
		"rate":           net.Rate.RatString(),
		"octasPerSecond": net.OctasPerSecond,
		"incoming":       net.Incoming,
		"outgoing":       net.Outgoing,
	})
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	balance, err := s.accounts.Balance(r.Context(), account)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account":        account,
		"balance":        balance,
		"balanceDisplay": balance.String(),
	})
}

type depositRequest struct {
	Amount string `json:"amount"`
}

// depositAccount funds the escrow ledger outside the streaming flow, the
// HTTP counterpart of the replicated ledger's ACCOUNT_FUND transaction.
func (s *Server) depositAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	amt, err := amount.Parse(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid amount: "+err.Error())
		return
	}
	if amt == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "amount must be positive")
		return
	}
	if err := s.accounts.Deposit(r.Context(), account, amt); err != nil {
		respondDomainError(w, err)
		return
	}
	balance, err := s.accounts.Balance(r.Context(), account)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account":        account,
		"deposited":      amt,
		"balance":        balance,
		"balanceDisplay": balance.String(),
	})
}

func (s *Server) reconcileAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	reports, err := s.reconcileSvc.CheckAccount(r.Context(), account)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}
