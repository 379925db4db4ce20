package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/tip-settlement/domain/entities"
	domainerrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
	"tippy/contexts/settlement-core/tip-settlement/domain/services"
	"tippy/contexts/settlement-core/tip-settlement/ports"
)

const moduleName = "settlement-core/tip-settlement"

// Ack values mirror the provider convention: 0 means received.
var ackReceived = ports.SettlementAck{ResultCode: 0, ResultDesc: "Accepted"}

type Service struct {
	Tips                  ports.TipRepository
	WebhookLog            ports.WebhookLogRepository
	Restaurants           ports.RestaurantConfigReader
	Distributor           ports.DistributionTrigger
	Outbox                ports.OutboxWriter
	Clock                 ports.Clock
	IDGen                 ports.IDGenerator
	DefaultCommissionRate decimal.Decimal
	Logger                *slog.Logger
}

// CreateTip records a gratuity at intake in pending state. Commission and
// net are provisional; the reconciler recomputes them at settlement time.
func (s Service) CreateTip(ctx context.Context, input ports.CreateTipInput) (entities.Tip, error) {
	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Tip{}, err
	}

	tip, err := entities.NewTip(
		id,
		input.RestaurantID,
		input.WaiterID,
		input.TableID,
		input.Gross,
		input.Target,
		input.Rail,
		input.CorrelationID,
		s.now(),
	)
	if err != nil {
		return entities.Tip{}, err
	}
	tip.Metadata = input.Metadata

	rate := s.commissionRate(ctx, tip.RestaurantID)
	tip.Commission, tip.Net = services.ComputeCommission(tip.Gross, rate)

	if err := s.Tips.CreateTip(ctx, tip); err != nil {
		return entities.Tip{}, err
	}

	ResolveLogger(s.Logger).Info("tip recorded",
		"event", "tip_created",
		"module", moduleName,
		"layer", "application",
		"tip_id", tip.ID,
		"restaurant_id", tip.RestaurantID,
		"target", string(tip.Target),
		"gross", tip.Gross.String(),
	)
	return tip, nil
}

func (s Service) GetTip(ctx context.Context, restaurantID string, tipID string) (entities.Tip, error) {
	if strings.TrimSpace(restaurantID) == "" || strings.TrimSpace(tipID) == "" {
		return entities.Tip{}, domainerrors.ErrInvalidTipInput
	}
	return s.Tips.GetTip(ctx, strings.TrimSpace(restaurantID), strings.TrimSpace(tipID))
}

func (s Service) ListTips(ctx context.Context, restaurantID string, limit int, offset int) ([]entities.Tip, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, domainerrors.ErrInvalidTipInput
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Tips.ListTipsByRestaurant(ctx, strings.TrimSpace(restaurantID), limit, offset)
}

// HandleSettlementCallback turns a provider callback into an authoritative
// tip transition. It always acknowledges: internal failures are logged and
// surfaced through the webhook log, never back to the provider, so retries
// do not storm.
func (s Service) HandleSettlementCallback(ctx context.Context, callback ports.SettlementCallback) ports.SettlementAck {
	logger := ResolveLogger(s.Logger)
	correlationID := strings.TrimSpace(callback.CorrelationID)
	if correlationID == "" {
		s.appendWebhookLog(ctx, callback, "invalid_payload")
		return ackReceived
	}

	tip, err := s.Tips.GetTipByCorrelationID(ctx, correlationID)
	if err != nil {
		// Expected race: the tip row may not be durably written yet, or the
		// callback belongs to a foreign checkout. Stop provider retries.
		logger.Warn("settlement callback without matching tip",
			"event", "settlement_callback_unmatched",
			"module", moduleName,
			"layer", "application",
			"correlation_id", correlationID,
		)
		s.appendWebhookLog(ctx, callback, "unmatched")
		return ackReceived
	}

	if tip.Status.Terminal() {
		logger.Info("settlement callback replayed for terminal tip",
			"event", "settlement_callback_replayed",
			"module", moduleName,
			"layer", "application",
			"tip_id", tip.ID,
			"status", string(tip.Status),
		)
		s.appendWebhookLog(ctx, callback, "replayed")
		return ackReceived
	}

	switch callback.Result {
	case ports.SettlementResultSuccess:
		s.settleSuccess(ctx, tip, callback)
	case ports.SettlementResultFailed:
		s.settleTerminal(ctx, tip, callback, entities.TipStatusFailed, "provider reported failure")
	case ports.SettlementResultCancelled:
		s.settleTerminal(ctx, tip, callback, entities.TipStatusCancelled, "customer cancelled")
	case ports.SettlementResultTimeout:
		s.settleTerminal(ctx, tip, callback, entities.TipStatusTimeout, "provider reported timeout")
	default:
		logger.Warn("settlement callback with unknown result",
			"event", "settlement_callback_unknown_result",
			"module", moduleName,
			"layer", "application",
			"tip_id", tip.ID,
			"result", string(callback.Result),
		)
		s.appendWebhookLog(ctx, callback, "unknown_result")
	}
	return ackReceived
}

func (s Service) settleSuccess(ctx context.Context, tip entities.Tip, callback ports.SettlementCallback) {
	logger := ResolveLogger(s.Logger)
	now := s.now()

	if callback.SettledAmount != nil && !services.AmountsMatch(*callback.SettledAmount, tip.Gross) {
		applied, err := s.Tips.SettleTip(ctx, ports.TipSettlementUpdate{
			TipID:         tip.ID,
			Status:        entities.TipStatusFailed,
			Commission:    tip.Commission,
			Net:           tip.Net,
			ReceiptID:     callback.ReceiptID,
			FailureReason: "settled amount " + callback.SettledAmount.String() + " does not match recorded gross " + tip.Gross.String(),
			UpdatedAt:     now,
		})
		if err != nil || !applied {
			s.logSettleFailure(tip.ID, "amount_mismatch", err)
		}
		logger.Warn("settlement amount mismatch",
			"event", "settlement_amount_mismatch",
			"module", moduleName,
			"layer", "application",
			"tip_id", tip.ID,
			"recorded_gross", tip.Gross.String(),
			"settled_amount", callback.SettledAmount.String(),
		)
		s.appendWebhookLog(ctx, callback, "amount_mismatch")
		return
	}

	// Commission reflects the restaurant's rate at settlement time, which
	// may differ from the rate captured at intake.
	rate := s.commissionRate(ctx, tip.RestaurantID)
	commission, net := services.ComputeCommission(tip.Gross, rate)

	applied, err := s.Tips.SettleTip(ctx, ports.TipSettlementUpdate{
		TipID:      tip.ID,
		Status:     entities.TipStatusCompleted,
		Commission: commission,
		Net:        net,
		ReceiptID:  strings.TrimSpace(callback.ReceiptID),
		UpdatedAt:  now,
	})
	if err != nil {
		s.logSettleFailure(tip.ID, "completed", err)
		s.appendWebhookLog(ctx, callback, "error")
		return
	}
	if !applied {
		// Lost the race against a concurrent delivery; the winner did the work.
		s.appendWebhookLog(ctx, callback, "replayed")
		return
	}

	logger.Info("tip settled",
		"event", "tip_settled",
		"module", moduleName,
		"layer", "application",
		"tip_id", tip.ID,
		"restaurant_id", tip.RestaurantID,
		"gross", tip.Gross.String(),
		"commission", commission.String(),
		"net", net.String(),
	)
	s.appendWebhookLog(ctx, callback, "completed")
	s.emitTipSettled(ctx, tip, commission, net, now)

	if tip.RestaurantWide() && s.Distributor != nil {
		// The payment is already taken; a distribution failure must not roll
		// back the completed tip. Log and leave for manual remediation.
		if err := s.Distributor.DistributeTip(ctx, tip.RestaurantID, tip.ID, net); err != nil {
			logger.Error("distribution after settlement failed",
				"event", "tip_distribution_failed",
				"module", moduleName,
				"layer", "application",
				"tip_id", tip.ID,
				"restaurant_id", tip.RestaurantID,
				"error", err.Error(),
			)
		}
	}
}

func (s Service) settleTerminal(
	ctx context.Context,
	tip entities.Tip,
	callback ports.SettlementCallback,
	status entities.TipStatus,
	reason string,
) {
	applied, err := s.Tips.SettleTip(ctx, ports.TipSettlementUpdate{
		TipID:         tip.ID,
		Status:        status,
		Commission:    tip.Commission,
		Net:           tip.Net,
		FailureReason: reason,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		s.logSettleFailure(tip.ID, string(status), err)
		s.appendWebhookLog(ctx, callback, "error")
		return
	}
	if !applied {
		s.appendWebhookLog(ctx, callback, "replayed")
		return
	}
	ResolveLogger(s.Logger).Info("tip closed without settlement",
		"event", "tip_not_settled",
		"module", moduleName,
		"layer", "application",
		"tip_id", tip.ID,
		"status", string(status),
	)
	s.appendWebhookLog(ctx, callback, string(status))
}

func (s Service) commissionRate(ctx context.Context, restaurantID string) decimal.Decimal {
	rate, err := s.Restaurants.CommissionRate(ctx, restaurantID)
	if err != nil {
		ResolveLogger(s.Logger).Warn("commission rate lookup failed, using default",
			"event", "commission_rate_fallback",
			"module", moduleName,
			"layer", "application",
			"restaurant_id", restaurantID,
			"error", err.Error(),
		)
		return s.DefaultCommissionRate
	}
	return rate
}

func (s Service) emitTipSettled(
	ctx context.Context,
	tip entities.Tip,
	commission decimal.Decimal,
	net decimal.Decimal,
	settledAt time.Time,
) {
	if s.Outbox == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		s.logSettleFailure(tip.ID, "outbox_id", err)
		return
	}
	data, err := json.Marshal(map[string]any{
		"tip_id":        tip.ID,
		"restaurant_id": tip.RestaurantID,
		"target":        string(tip.Target),
		"gross":         tip.Gross.InexactFloat64(),
		"commission":    commission.InexactFloat64(),
		"net":           net.InexactFloat64(),
		"settled_at":    settledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logSettleFailure(tip.ID, "outbox_marshal", err)
		return
	}
	if err := s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        "tip.settled",
		OccurredAt:       settledAt.UTC(),
		SourceService:    "tip-settlement",
		TraceID:          tip.CorrelationID,
		SchemaVersion:    1,
		PartitionKeyPath: "restaurant_id",
		PartitionKey:     tip.RestaurantID,
		Data:             data,
	}); err != nil {
		s.logSettleFailure(tip.ID, "outbox_append", err)
	}
}

func (s Service) appendWebhookLog(ctx context.Context, callback ports.SettlementCallback, outcome string) {
	if s.WebhookLog == nil {
		return
	}
	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		s.logSettleFailure(callback.CorrelationID, "webhook_log_id", err)
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"correlation_id": callback.CorrelationID,
		"result":         string(callback.Result),
		"receipt_id":     callback.ReceiptID,
	})
	if err := s.WebhookLog.AppendWebhookLog(ctx, ports.WebhookLogEntry{
		ID:            id,
		Provider:      "settlement",
		CorrelationID: strings.TrimSpace(callback.CorrelationID),
		Outcome:       outcome,
		Payload:       payload,
		ReceivedAt:    s.now(),
	}); err != nil {
		s.logSettleFailure(callback.CorrelationID, "webhook_log_append", err)
	}
}

func (s Service) logSettleFailure(ref string, stage string, err error) {
	message := "no rows updated"
	if err != nil {
		message = err.Error()
	}
	ResolveLogger(s.Logger).Error("settlement side effect failed",
		"event", "settlement_side_effect_failed",
		"module", moduleName,
		"layer", "application",
		"ref", ref,
		"stage", stage,
		"error", message,
	)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
