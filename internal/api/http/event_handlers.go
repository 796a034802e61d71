package httpapi

import (
	"net/http"
	"strconv"
	"time"

	appHistory "github.com/streampay/streampay/internal/application/history"
)

func (s *Server) streamHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	events, err := s.historySvc.StreamHistory(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) queryEvents(w http.ResponseWriter, r *http.Request) {
	params := appHistory.QueryParams{}
	q := r.URL.Query()
	if v := q.Get("stream_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid stream_id")
			return
		}
		params.StreamID = &id
	}
	if v := q.Get("kind"); v != "" {
		params.Kind = &v
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid start_time")
			return
		}
		params.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid end_time")
			return
		}
		params.EndTime = &t
	}
	if v := q.Get("cursor"); v != "" {
		params.Cursor = &v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	result, err := s.historySvc.Query(r.Context(), params)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) reconcileStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid streamId")
		return
	}
	report, err := s.reconcileSvc.CheckStream(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
