package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/tip-settlement/application"
	"tippy/contexts/settlement-core/tip-settlement/domain/entities"
	"tippy/contexts/settlement-core/tip-settlement/ports"
	httptransport "tippy/contexts/settlement-core/tip-settlement/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateTipHandler(
	ctx context.Context,
	req httptransport.CreateTipRequest,
) (httptransport.TipResponse, error) {
	tip, err := h.Service.CreateTip(ctx, ports.CreateTipInput{
		RestaurantID:  req.RestaurantID,
		WaiterID:      req.WaiterID,
		TableID:       req.TableID,
		Gross:         decimal.NewFromFloat(req.Gross),
		Target:        entities.TargetKind(req.Target),
		Rail:          entities.PaymentRail(req.Rail),
		CorrelationID: req.CorrelationID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return httptransport.TipResponse{}, err
	}
	return httptransport.TipResponse{
		Status: "success",
		Data:   toDTO(tip),
	}, nil
}

func (h Handler) GetTipHandler(
	ctx context.Context,
	restaurantID string,
	tipID string,
) (httptransport.TipResponse, error) {
	tip, err := h.Service.GetTip(ctx, restaurantID, tipID)
	if err != nil {
		return httptransport.TipResponse{}, err
	}
	return httptransport.TipResponse{
		Status: "success",
		Data:   toDTO(tip),
	}, nil
}

func (h Handler) ListTipsHandler(
	ctx context.Context,
	restaurantID string,
	limit int,
	offset int,
) (httptransport.TipListResponse, error) {
	tips, err := h.Service.ListTips(ctx, restaurantID, limit, offset)
	if err != nil {
		return httptransport.TipListResponse{}, err
	}
	resp := httptransport.TipListResponse{
		Status: "success",
		Data:   make([]httptransport.TipDTO, 0, len(tips)),
	}
	for _, tip := range tips {
		resp.Data = append(resp.Data, toDTO(tip))
	}
	return resp, nil
}

// SettlementCallbackHandler validates the raw payload into the closed
// callback variant and always returns the acknowledgement body.
func (h Handler) SettlementCallbackHandler(
	ctx context.Context,
	req httptransport.SettlementCallbackRequest,
) httptransport.SettlementCallbackResponse {
	callback := ports.SettlementCallback{
		CorrelationID: req.CorrelationID,
		Result:        ports.SettlementResult(req.Result),
		ReceiptID:     req.ReceiptID,
	}
	if req.SettledAmount != nil {
		amount := decimal.NewFromFloat(*req.SettledAmount)
		callback.SettledAmount = &amount
	}
	ack := h.Service.HandleSettlementCallback(ctx, callback)
	return httptransport.SettlementCallbackResponse{
		ResultCode: ack.ResultCode,
		ResultDesc: ack.ResultDesc,
	}
}

func toDTO(tip entities.Tip) httptransport.TipDTO {
	return httptransport.TipDTO{
		TipID:         tip.ID,
		RestaurantID:  tip.RestaurantID,
		WaiterID:      tip.WaiterID,
		TableID:       tip.TableID,
		Gross:         tip.Gross.InexactFloat64(),
		Commission:    tip.Commission.InexactFloat64(),
		Net:           tip.Net.InexactFloat64(),
		Target:        string(tip.Target),
		Rail:          string(tip.Rail),
		Status:        string(tip.Status),
		CorrelationID: tip.CorrelationID,
		ReceiptID:     tip.ReceiptID,
		FailureReason: tip.FailureReason,
		Metadata:      tip.Metadata,
		CreatedAt:     tip.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     tip.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
