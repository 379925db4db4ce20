package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"tippy/contexts/payout-core/payout-engine/application"
	"tippy/contexts/payout-core/payout-engine/domain/entities"
	httptransport "tippy/contexts/payout-core/payout-engine/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) GeneratePayoutsHandler(
	ctx context.Context,
	req httptransport.GeneratePayoutsRequest,
) (httptransport.GeneratePayoutsResponse, error) {
	result, err := h.Service.Generate(ctx, application.GenerateInput{
		RestaurantID: req.RestaurantID,
		Month:        req.Month,
		Preview:      req.Preview,
	})
	if err != nil {
		return httptransport.GeneratePayoutsResponse{}, err
	}

	data := httptransport.GeneratePayoutsDTO{
		RestaurantID: result.RestaurantID,
		Month:        result.Month,
		Preview:      result.Preview,
		Plan:         make([]httptransport.PlanItemDTO, 0, len(result.Plan)),
		CreatedCount: result.CreatedCount,
		FailedCount:  result.FailedCount,
		TotalAmount:  result.TotalAmount.InexactFloat64(),
	}
	for _, item := range result.Plan {
		data.Plan = append(data.Plan, httptransport.PlanItemDTO{
			Recipient:    string(item.Recipient),
			RecipientKey: item.RecipientKey,
			TotalTips:    item.TotalTips.InexactFloat64(),
			Commission:   item.Commission.InexactFloat64(),
			Amount:       item.Amount.InexactFloat64(),
			TipCount:     item.TipCount,
			MeetsMinimum: item.MeetsMinimum,
		})
	}
	for _, item := range result.Items {
		data.Items = append(data.Items, httptransport.GenerateItemDTO{
			Recipient:    string(item.Recipient),
			RecipientKey: item.RecipientKey,
			Amount:       item.Amount.InexactFloat64(),
			Status:       item.Status,
			PayoutID:     item.PayoutID,
			Error:        item.Error,
		})
	}
	return httptransport.GeneratePayoutsResponse{
		Status: "success",
		Data:   data,
	}, nil
}

func (h Handler) ProcessPayoutsHandler(
	ctx context.Context,
	req httptransport.ProcessPayoutsRequest,
) (httptransport.ProcessPayoutsResponse, error) {
	result, err := h.Service.ProcessBatch(ctx, application.ProcessInput{
		RestaurantID: req.RestaurantID,
		PayoutIDs:    req.PayoutIDs,
		DryRun:       req.DryRun,
		Action:       application.BatchAction(req.Action),
	})
	if err != nil {
		return httptransport.ProcessPayoutsResponse{}, err
	}

	data := httptransport.ProcessPayoutsDTO{
		DryRun:         result.DryRun,
		SubmittedCount: result.SubmittedCount,
		FailedCount:    result.FailedCount,
		SkippedCount:   result.SkippedCount,
		TotalAmount:    result.TotalAmount.InexactFloat64(),
		Items:          make([]httptransport.BatchItemDTO, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		data.Items = append(data.Items, httptransport.BatchItemDTO{
			PayoutID:       item.PayoutID,
			Recipient:      string(item.Recipient),
			RecipientKey:   item.RecipientKey,
			Rail:           item.Rail,
			Amount:         item.Amount.InexactFloat64(),
			Status:         item.Status,
			ConversationID: item.ConversationID,
			Error:          item.Error,
		})
	}
	return httptransport.ProcessPayoutsResponse{
		Status: "success",
		Data:   data,
	}, nil
}

func (h Handler) ListPayoutsHandler(
	ctx context.Context,
	restaurantID string,
	month string,
) (httptransport.PayoutListResponse, error) {
	payouts, err := h.Service.ListPayouts(ctx, restaurantID, month)
	if err != nil {
		return httptransport.PayoutListResponse{}, err
	}
	resp := httptransport.PayoutListResponse{
		Status: "success",
		Data:   make([]httptransport.PayoutDTO, 0, len(payouts)),
	}
	for _, payout := range payouts {
		resp.Data = append(resp.Data, toDTO(payout))
	}
	return resp, nil
}

// MobileMoneyCallbackHandler always acknowledges; internal outcomes are
// logged, never surfaced to the provider.
func (h Handler) MobileMoneyCallbackHandler(
	ctx context.Context,
	req httptransport.MobileMoneyCallbackRequest,
) httptransport.RailCallbackResponse {
	if err := h.Service.HandleMobileMoneyCallback(ctx, req.ConversationID, req.ResultCode, req.ResultDesc, req.ReceiptID); err != nil {
		h.logCallbackError("mobile_money_callback_failed", req.ConversationID, err)
	}
	return httptransport.RailCallbackResponse{ResultCode: 0, ResultDesc: "Accepted"}
}

func (h Handler) BankTransferCallbackHandler(
	ctx context.Context,
	req httptransport.BankTransferCallbackRequest,
) httptransport.RailCallbackResponse {
	if err := h.Service.HandleBankTransferCallback(ctx, req.TransferID, req.Status, req.ProviderID); err != nil {
		h.logCallbackError("bank_transfer_callback_failed", req.TransferID, err)
	}
	return httptransport.RailCallbackResponse{ResultCode: 0, ResultDesc: "Accepted"}
}

func (h Handler) logCallbackError(event string, ref string, err error) {
	application.ResolveLogger(h.Logger).Warn("rail callback handling failed",
		"event", event,
		"module", "payout-core/payout-engine",
		"layer", "adapter",
		"ref", ref,
		"error", err.Error(),
	)
}

func toDTO(payout entities.Payout) httptransport.PayoutDTO {
	dto := httptransport.PayoutDTO{
		PayoutID:       payout.ID,
		RestaurantID:   payout.RestaurantID,
		Recipient:      string(payout.Recipient),
		WaiterID:       payout.WaiterID,
		GroupName:      payout.GroupName,
		Month:          payout.Month,
		TotalTips:      payout.TotalTips.InexactFloat64(),
		Commission:     payout.Commission.InexactFloat64(),
		Amount:         payout.Amount.InexactFloat64(),
		TipCount:       payout.TipCount,
		Status:         string(payout.Status),
		ConversationID: payout.ConversationID,
		TransactionRef: payout.TransactionRef,
		FailureCode:    payout.FailureCode,
		FailureReason:  payout.FailureReason,
		CreatedAt:      payout.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      payout.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if payout.ProcessedAt != nil {
		dto.ProcessedAt = payout.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
