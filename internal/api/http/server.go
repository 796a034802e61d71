package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appHistory "github.com/streampay/streampay/internal/application/history"
	appRate "github.com/streampay/streampay/internal/application/rate"
	appReconcile "github.com/streampay/streampay/internal/application/reconcile"
	appStream "github.com/streampay/streampay/internal/application/stream"
	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/ledger"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
)

// AccountStore is the operator-facing side of the escrow ledger: explicit
// funding outside the streaming flow, and balance reads.
type AccountStore interface {
	Deposit(ctx context.Context, account string, amt amount.Amount) error
	Balance(ctx context.Context, account string) (amount.Amount, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	streamSvc    *appStream.Service
	rateSvc      *appRate.Service
	historySvc   *appHistory.Service
	reconcileSvc *appReconcile.Service
	accounts     AccountStore
}

func NewServer(
	streamSvc *appStream.Service,
	rateSvc *appRate.Service,
	historySvc *appHistory.Service,
	reconcileSvc *appReconcile.Service,
	accounts AccountStore,
) *Server {
	return &Server{
		streamSvc:    streamSvc,
		rateSvc:      rateSvc,
		historySvc:   historySvc,
		reconcileSvc: reconcileSvc,
		accounts:     accounts,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/streams", func(r chi.Router) {
			r.Post("/", s.createStream)
			r.Get("/{streamId}", s.getStream)
			r.Post("/{streamId}/accept", s.acceptStream)
			r.Post("/{streamId}/reject", s.rejectStream)
			r.Post("/{streamId}/claim", s.claimStream)
			r.Post("/{streamId}/cancel", s.cancelStream)
			r.Get("/{streamId}/events", s.streamHistory)
			r.Get("/{streamId}/reconcile", s.reconcileStream)
		})

		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/streams", s.accountStreams)
			r.Get("/rate", s.accountRate)
			r.Get("/reconcile", s.reconcileAccount)
			r.Get("/balance", s.accountBalance)
			r.Post("/deposit", s.depositAccount)
		})

		r.Get("/events", s.queryEvents)
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainStream.ErrInvalidTerms):
		respondError(w, http.StatusBadRequest, "INVALID_TERMS", err.Error())
	case errors.Is(err, domainStream.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domainStream.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case errors.Is(err, domainStream.ErrInvalidState):
		respondError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, domainStream.ErrOverflow):
		respondError(w, http.StatusBadRequest, "OVERFLOW", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, domainStream.ErrStorageUnavailable), errors.Is(err, ledger.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseStreamIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "streamId"), 10, 64)
}

func parseLimitOffset(r *http.Request, def, max int) (int, int) {
	limit := def
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actorFromRequest identifies the caller. Identity is asserted, not
// authenticated: verification happens at the deployment edge.
func actorFromRequest(r *http.Request) string {
	return r.Header.Get("X-Actor")
}
