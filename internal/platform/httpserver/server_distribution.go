package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	distributionerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
	distributionhttp "tippy/contexts/settlement-core/distribution-engine/transport/http"
)

func writeDistributionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, distributionhttp.ErrorResponse{Code: code, Message: message})
}

func writeDistributionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, distributionerrors.ErrInvalidGroupInput),
		errors.Is(err, distributionerrors.ErrInvalidBankAccount):
		writeDistributionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, distributionerrors.ErrPercentagesNotWhole):
		writeDistributionError(w, http.StatusUnprocessableEntity, "percentages_not_whole", err.Error())
	case errors.Is(err, distributionerrors.ErrGroupNotFound),
		errors.Is(err, distributionerrors.ErrBankAccountNotFound):
		writeDistributionError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, distributionerrors.ErrNoGroupsConfigured):
		writeDistributionError(w, http.StatusConflict, "no_groups_configured", err.Error())
	case errors.Is(err, distributionerrors.ErrRecordExists):
		writeDistributionError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeDistributionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleConfigureGroups(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))

	var req distributionhttp.ConfigureGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDistributionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.distribution.Handler.ConfigureGroupsHandler(r.Context(), restaurantID, req)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))

	resp, err := s.distribution.Handler.ListGroupsHandler(r.Context(), restaurantID)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTipDistributions(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))
	tipID := strings.TrimSpace(r.PathValue("tip_id"))

	resp, err := s.distribution.Handler.ListTipRecordsHandler(r.Context(), restaurantID, tipID)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDistributionLedger reports what the persisted per-tip ledger sums
// to per group for a month, so operators can compare it against the
// payout aggregate computed from current percentages.
func (s *Server) handleDistributionLedger(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))

	month := strings.TrimSpace(r.URL.Query().Get("month"))
	from, err := time.Parse("2006-01", month)
	if err != nil {
		writeDistributionError(w, http.StatusBadRequest, "invalid_request", "month must be formatted YYYY-MM")
		return
	}
	to := from.AddDate(0, 1, 0)

	resp, err := s.distribution.Handler.LedgerTotalsHandler(r.Context(), restaurantID, from, to)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveBankAccount(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))

	var req distributionhttp.SaveBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDistributionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.distribution.Handler.SaveBankAccountHandler(r.Context(), restaurantID, req)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
