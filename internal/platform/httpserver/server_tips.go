package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	tiperrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
	tiphttp "tippy/contexts/settlement-core/tip-settlement/transport/http"
	"tippy/internal/platform/metrics"
)

func writeTipError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, tiphttp.ErrorResponse{Code: code, Message: message})
}

func writeTipDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tiperrors.ErrInvalidTipInput),
		errors.Is(err, tiperrors.ErrInvalidCallbackPayload):
		writeTipError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, tiperrors.ErrTipNotFound),
		errors.Is(err, tiperrors.ErrRestaurantNotFound):
		writeTipError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tiperrors.ErrTipExists):
		writeTipError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, tiperrors.ErrTipAlreadyTerminal):
		writeTipError(w, http.StatusConflict, "already_terminal", err.Error())
	default:
		writeTipError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateTip(w http.ResponseWriter, r *http.Request) {
	var req tiphttp.CreateTipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTipError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.tips.Handler.CreateTipHandler(r.Context(), req)
	if err != nil {
		writeTipDomainError(w, err)
		return
	}
	metrics.TipsCreated.Inc()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetTip(w http.ResponseWriter, r *http.Request) {
	tipID := strings.TrimSpace(r.PathValue("tip_id"))
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeTipError(w, http.StatusBadRequest, "invalid_request", "restaurant_id query parameter is required")
		return
	}

	resp, err := s.tips.Handler.GetTipHandler(r.Context(), restaurantID, tipID)
	if err != nil {
		writeTipDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTips(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeTipError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeTipError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		offset = parsed
	}

	resp, err := s.tips.Handler.ListTipsHandler(r.Context(), restaurantID, limit, offset)
	if err != nil {
		writeTipDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSettlementCallback always answers 200 with the acknowledgement
// body; a non-2xx answer would only make the provider retry harder.
func (s *Server) handleSettlementCallback(w http.ResponseWriter, r *http.Request) {
	var req tiphttp.SettlementCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.SettlementCallbacks.WithLabelValues("invalid_json").Inc()
		writeJSON(w, http.StatusOK, tiphttp.SettlementCallbackResponse{
			ResultCode: 0,
			ResultDesc: "Accepted",
		})
		return
	}

	metrics.SettlementCallbacks.WithLabelValues(settlementResultLabel(req.Result)).Inc()
	resp := s.tips.Handler.SettlementCallbackHandler(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// settlementResultLabel keeps the metric label set closed regardless of
// what the caller sends.
func settlementResultLabel(result string) string {
	switch result {
	case "success", "failed", "cancelled", "timeout":
		return result
	default:
		return "unknown"
	}
}
