package httpapi

import (
	"net/http"

	"github.com/streampay/streampay/internal/domain/amount"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
)

type createStreamRequest struct {
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
	DurationSeconds int64  `json:"durationSeconds"`
}

func (s *Server) createStream(w http.ResponseWriter, r *http.Request) {
	sender := actorFromRequest(r)
	if sender == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "missing X-Actor header")
		return
	}
	var req createStreamRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	total, err := amount.Parse(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid amount: "+err.Error())
		return
	}
	st, err := s.streamSvc.Create(r.Context(), sender, req.Recipient, total, req.DurationSeconds)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.streamView(st))
}

func (s *Server) getStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	st, err := s.streamSvc.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.streamView(st))
}

func (s *Server) acceptStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	actor := actorFromRequest(r)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "missing X-Actor header")
		return
	}
	st, err := s.streamSvc.Accept(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.streamView(st))
}

// rejectStream lets the recipient decline a stream that has not started.
// It settles the full amount back to the sender.
func (s *Server) rejectStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	actor := actorFromRequest(r)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "missing X-Actor header")
		return
	}
	st, err := s.streamSvc.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if actor != st.Recipient {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "only the recipient may reject")
		return
	}
	if domainStream.Classify(st, s.streamSvc.Now()) != domainStream.StatusPending {
		respondError(w, http.StatusConflict, "INVALID_STATE", "stream already started")
		return
	}
	settlement, err := s.streamSvc.Cancel(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementView(settlement))
}

func (s *Server) claimStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	actor := actorFromRequest(r)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "missing X-Actor header")
		return
	}
	claimed, err := s.streamSvc.Claim(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"streamId":       id,
		"claimed":        claimed,
		"claimedDisplay": claimed.String(),
	})
}

func (s *Server) cancelStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	actor := actorFromRequest(r)
	if actor == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "missing X-Actor header")
		return
	}
	settlement, err := s.streamSvc.Cancel(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementView(settlement))
}

func settlementView(settlement domainStream.Settlement) map[string]interface{} {
	return map[string]interface{}{
		"toRecipient":        settlement.ToRecipient,
		"toSender":           settlement.ToSender,
		"toRecipientDisplay": settlement.ToRecipient.String(),
		"toSenderDisplay":    settlement.ToSender.String(),
	}
}
