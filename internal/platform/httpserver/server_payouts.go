package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	payouterrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	payouthttp "tippy/contexts/payout-core/payout-engine/transport/http"
	"tippy/internal/platform/metrics"
)

func writePayoutError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, payouthttp.ErrorResponse{Code: code, Message: message})
}

func writePayoutDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouterrors.ErrInvalidMonth):
		writePayoutError(w, http.StatusBadRequest, "invalid_month", err.Error())
	case errors.Is(err, payouterrors.ErrInvalidPayoutInput):
		writePayoutError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, payouterrors.ErrPayoutsAlreadyExist):
		writePayoutError(w, http.StatusConflict, "payouts_already_exist", err.Error())
	case errors.Is(err, payouterrors.ErrPayoutNotFound):
		writePayoutError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, payouterrors.ErrPayoutExists):
		writePayoutError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, payouterrors.ErrPayoutNotRetryable):
		writePayoutError(w, http.StatusConflict, "not_retryable", err.Error())
	default:
		writePayoutError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleGeneratePayouts(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.GeneratePayoutsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.payouts.Handler.GeneratePayoutsHandler(r.Context(), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	for _, item := range resp.Data.Items {
		if item.Status == "created" {
			metrics.PayoutsGenerated.WithLabelValues(item.Recipient).Inc()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcessPayouts(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.ProcessPayoutsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.payouts.Handler.ProcessPayoutsHandler(r.Context(), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	if !resp.Data.DryRun {
		for _, item := range resp.Data.Items {
			if item.Rail != "" {
				metrics.DisbursementItems.WithLabelValues(item.Rail, item.Status).Inc()
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	resp, err := s.payouts.Handler.ListPayoutsHandler(r.Context(), restaurantID, month)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	restaurantID := strings.TrimSpace(r.PathValue("restaurant_id"))

	intents, err := s.notifications.Service.ListIntents(r.Context(), restaurantID, 0)
	if err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	type intentDTO struct {
		IntentID     string  `json:"intent_id"`
		Kind         string  `json:"kind"`
		RestaurantID string  `json:"restaurant_id"`
		Recipient    string  `json:"recipient"`
		RecipientKey string  `json:"recipient_key"`
		PayoutID     string  `json:"payout_id"`
		Month        string  `json:"month"`
		Amount       float64 `json:"amount"`
		CreatedAt    string  `json:"created_at"`
	}
	data := make([]intentDTO, 0, len(intents))
	for _, intent := range intents {
		data = append(data, intentDTO{
			IntentID:     intent.ID,
			Kind:         string(intent.Kind),
			RestaurantID: intent.RestaurantID,
			Recipient:    intent.Recipient,
			RecipientKey: intent.RecipientKey,
			PayoutID:     intent.PayoutID,
			Month:        intent.Month,
			Amount:       intent.Amount.InexactFloat64(),
			CreatedAt:    intent.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
}

// Rail webhooks always answer 200; the provider only needs to know the
// callback landed.
func (s *Server) handleMobileMoneyCallback(w http.ResponseWriter, r *http.Request) {
	metrics.RailCallbacks.WithLabelValues("mobile_money").Inc()

	var req payouthttp.MobileMoneyCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, payouthttp.RailCallbackResponse{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}
	resp := s.payouts.Handler.MobileMoneyCallbackHandler(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBankTransferCallback(w http.ResponseWriter, r *http.Request) {
	metrics.RailCallbacks.WithLabelValues("bank_transfer").Inc()

	var req payouthttp.BankTransferCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, payouthttp.RailCallbackResponse{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}
	resp := s.payouts.Handler.BankTransferCallbackHandler(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}
