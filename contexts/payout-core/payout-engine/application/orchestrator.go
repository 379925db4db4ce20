package application

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/domain/services"
	"tippy/contexts/payout-core/payout-engine/ports"
)

type BatchAction string

const (
	BatchActionProcess BatchAction = "process"
	BatchActionRetry   BatchAction = "retry"
)

type ProcessInput struct {
	RestaurantID string
	PayoutIDs    []string
	DryRun       bool
	Action       BatchAction
}

const (
	BatchItemSubmitted = "submitted"
	BatchItemPlanned   = "planned"
	BatchItemSkipped   = "skipped"
	BatchItemFailed    = "failed"
)

type BatchItemResult struct {
	PayoutID       string
	Recipient      entities.RecipientKind
	RecipientKey   string
	Rail           string
	Amount         decimal.Decimal
	Status         string
	ConversationID string
	Error          string
}

type BatchResult struct {
	DryRun         bool
	SubmittedCount int
	FailedCount    int
	SkippedCount   int
	TotalAmount    decimal.Decimal
	Items          []BatchItemResult
}

const (
	railMobileMoney  = "mobile_money"
	railBankTransfer = "bank_transfer"

	defaultBatchParallelism = 4
	defaultPendingBatchSize = 200
)

// ProcessBatch pushes selected payouts onto their disbursement rails.
// Each payout is claimed pending-to-processing before any rail call, so
// a payout is submitted at most once even when batch runs overlap. Items
// fail independently; the batch itself only errors on selection problems.
func (s Service) ProcessBatch(ctx context.Context, input ProcessInput) (BatchResult, error) {
	payouts, err := s.selectBatch(ctx, input)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{DryRun: input.DryRun, TotalAmount: decimal.Zero}
	if input.DryRun {
		for _, payout := range payouts {
			item := s.planItem(ctx, payout)
			if item.Status == BatchItemPlanned {
				result.SubmittedCount++
				result.TotalAmount = result.TotalAmount.Add(item.Amount)
			} else {
				result.SkippedCount++
			}
			result.Items = append(result.Items, item)
		}
		return result, nil
	}

	parallelism := s.BatchParallelism
	if parallelism <= 0 {
		parallelism = defaultBatchParallelism
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for _, payout := range payouts {
		payout := payout
		group.Go(func() error {
			item := s.disburse(groupCtx, payout)
			mu.Lock()
			defer mu.Unlock()
			switch item.Status {
			case BatchItemSubmitted:
				result.SubmittedCount++
				result.TotalAmount = result.TotalAmount.Add(item.Amount)
			case BatchItemFailed:
				result.FailedCount++
			default:
				result.SkippedCount++
			}
			result.Items = append(result.Items, item)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return result, err
	}

	ResolveLogger(s.Logger).Info("disbursement batch finished",
		"event", "disbursement_batch_finished",
		"module", moduleName,
		"layer", "application",
		"submitted", result.SubmittedCount,
		"failed", result.FailedCount,
		"skipped", result.SkippedCount,
		"total_amount", result.TotalAmount.String(),
	)
	return result, nil
}

func (s Service) selectBatch(ctx context.Context, input ProcessInput) ([]entities.Payout, error) {
	action := input.Action
	if action == "" {
		action = BatchActionProcess
	}
	if action != BatchActionProcess && action != BatchActionRetry {
		return nil, domainerrors.ErrInvalidPayoutInput
	}

	var (
		payouts []entities.Payout
		err     error
	)
	switch {
	case len(input.PayoutIDs) > 0:
		payouts, err = s.Payouts.ListPayoutsByIDs(ctx, input.PayoutIDs)
	case strings.TrimSpace(input.RestaurantID) != "":
		payouts, err = s.Payouts.ListPendingPayouts(ctx, strings.TrimSpace(input.RestaurantID), defaultPendingBatchSize)
	case action == BatchActionProcess:
		// No selector sweeps pending payouts across every restaurant.
		// Retry still requires explicit IDs, checked below.
		payouts, err = s.Payouts.ListPendingPayouts(ctx, "", defaultPendingBatchSize)
	default:
		return nil, domainerrors.ErrInvalidPayoutInput
	}
	if err != nil {
		return nil, err
	}

	if action == BatchActionRetry {
		// Retry flips explicitly selected failed payouts back to pending so
		// the normal claim path picks them up below.
		if len(input.PayoutIDs) == 0 {
			return nil, domainerrors.ErrInvalidPayoutInput
		}
		now := s.now()
		for i, payout := range payouts {
			if payout.Status != entities.PayoutFailed {
				continue
			}
			applied, err := s.Payouts.ResetPayout(ctx, payout.ID, now)
			if err != nil {
				return nil, err
			}
			if applied {
				payouts[i].Status = entities.PayoutPending
			}
		}
	}
	return payouts, nil
}

// planItem answers "what would happen" for a dry run without touching
// state or rails.
func (s Service) planItem(ctx context.Context, payout entities.Payout) BatchItemResult {
	item := BatchItemResult{
		PayoutID:     payout.ID,
		Recipient:    payout.Recipient,
		RecipientKey: payout.RecipientKey(),
		Amount:       payout.Amount,
	}
	if payout.Status != entities.PayoutPending {
		item.Status = BatchItemSkipped
		item.Error = "payout is " + string(payout.Status) + ", not pending"
		return item
	}
	if payout.Recipient == entities.RecipientWaiter {
		item.Rail = railMobileMoney
		item.Amount = services.MobileMoneyAmount(payout.Amount)
		if _, err := s.Waiters.WaiterPhone(ctx, payout.RestaurantID, payout.WaiterID); err != nil {
			item.Status = BatchItemSkipped
			item.Error = err.Error()
			return item
		}
	} else {
		item.Rail = railBankTransfer
		account, err := s.Accounts.GroupBankAccount(ctx, payout.RestaurantID, payout.GroupName)
		if err != nil || !account.Verified {
			item.Status = BatchItemSkipped
			item.Error = "no verified bank account for group " + payout.GroupName
			return item
		}
	}
	item.Status = BatchItemPlanned
	return item
}

func (s Service) disburse(ctx context.Context, payout entities.Payout) BatchItemResult {
	logger := ResolveLogger(s.Logger)
	item := BatchItemResult{
		PayoutID:     payout.ID,
		Recipient:    payout.Recipient,
		RecipientKey: payout.RecipientKey(),
		Amount:       payout.Amount,
	}

	claimed, err := s.Payouts.ClaimPayout(ctx, payout.ID, s.now())
	if err != nil {
		item.Status = BatchItemFailed
		item.Error = err.Error()
		return item
	}
	if !claimed {
		item.Status = BatchItemSkipped
		item.Error = "payout was not pending"
		return item
	}

	var acceptance ports.RailAcceptance
	if payout.Recipient == entities.RecipientWaiter {
		item.Rail = railMobileMoney
		item.Amount = services.MobileMoneyAmount(payout.Amount)
		acceptance, err = s.submitMobileMoney(ctx, payout, item.Amount)
	} else {
		item.Rail = railBankTransfer
		acceptance, err = s.submitBankTransfer(ctx, payout)
	}

	now := s.now()
	if err != nil {
		// The rail never accepted the submission, so the payout can be
		// safely parked as failed and retried later.
		s.failClaimed(ctx, payout, "submission_error", err.Error(), now)
		item.Status = BatchItemFailed
		item.Error = err.Error()
		return item
	}
	if !acceptance.Accepted {
		reason := acceptance.FailureReason
		if reason == "" {
			reason = domainerrors.ErrRailRejected.Error()
		}
		s.failClaimed(ctx, payout, acceptance.FailureCode, reason, now)
		item.Status = BatchItemFailed
		item.Error = reason
		return item
	}

	if err := s.Payouts.RecordAcceptance(ctx, payout.ID, acceptance.ConversationID, now); err != nil {
		logger.Error("recording rail acceptance failed",
			"event", "disbursement_acceptance_record_failed",
			"module", moduleName,
			"layer", "application",
			"payout_id", payout.ID,
			"conversation_id", acceptance.ConversationID,
			"error", err.Error(),
		)
	}

	logger.Info("payout submitted to rail",
		"event", "payout_submitted",
		"module", moduleName,
		"layer", "application",
		"payout_id", payout.ID,
		"rail", item.Rail,
		"amount", item.Amount.String(),
		"conversation_id", acceptance.ConversationID,
	)
	item.Status = BatchItemSubmitted
	item.ConversationID = acceptance.ConversationID
	return item
}

func (s Service) submitMobileMoney(
	ctx context.Context,
	payout entities.Payout,
	amount decimal.Decimal,
) (ports.RailAcceptance, error) {
	phone, err := s.Waiters.WaiterPhone(ctx, payout.RestaurantID, payout.WaiterID)
	if err != nil {
		return ports.RailAcceptance{}, errors.Join(domainerrors.ErrRecipientUnresolvable, err)
	}
	return s.MobileMoney.SubmitBulkPayment(ctx, ports.MobileMoneySubmission{
		Phone:     phone,
		Amount:    amount,
		Reference: payout.ID,
		Remarks:   "Tips " + payout.Month,
	})
}

func (s Service) submitBankTransfer(ctx context.Context, payout entities.Payout) (ports.RailAcceptance, error) {
	account, err := s.Accounts.GroupBankAccount(ctx, payout.RestaurantID, payout.GroupName)
	if err != nil {
		return ports.RailAcceptance{}, errors.Join(domainerrors.ErrRecipientUnresolvable, err)
	}
	if !account.Verified {
		return ports.RailAcceptance{}, domainerrors.ErrRecipientUnresolvable
	}
	return s.BankTransfer.SubmitTransfer(ctx, ports.BankTransferSubmission{
		Account:   account,
		Amount:    payout.Amount,
		Reference: payout.ID,
		Narrative: "Group tips " + payout.Month,
	})
}

func (s Service) failClaimed(ctx context.Context, payout entities.Payout, code string, reason string, now time.Time) {
	applied, err := s.Payouts.FailPayout(ctx, payout.ID, code, reason, now)
	if err != nil || !applied {
		s.logPayoutFailure(payout.ID, "fail_after_claim", err)
		return
	}
	s.emitPayoutEvent(ctx, payout, "payout.failed", map[string]any{
		"failure_code":   code,
		"failure_reason": reason,
	}, now)
}

// HandleMobileMoneyCallback applies the rail's asynchronous verdict for a
// bulk mobile money payment. Result code 0 means the money moved.
// Duplicate and late callbacks find the payout already terminal and are
// ignored.
func (s Service) HandleMobileMoneyCallback(
	ctx context.Context,
	conversationID string,
	resultCode int,
	resultDesc string,
	receiptID string,
) error {
	return s.applyRailVerdict(ctx, strings.TrimSpace(conversationID), railVerdict{
		succeeded:      resultCode == 0,
		transactionRef: strings.TrimSpace(receiptID),
		failureCode:    failureCodeFromInt(resultCode),
		failureReason:  strings.TrimSpace(resultDesc),
	})
}

// HandleBankTransferCallback applies the provider's transfer status,
// correlated by the conversation id returned at submission.
func (s Service) HandleBankTransferCallback(
	ctx context.Context,
	conversationID string,
	status string,
	providerTransferID string,
) error {
	succeeded := false
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success", "settled":
		succeeded = true
	}
	return s.applyRailVerdict(ctx, strings.TrimSpace(conversationID), railVerdict{
		succeeded:      succeeded,
		transactionRef: strings.TrimSpace(providerTransferID),
		failureCode:    "transfer_" + strings.ToLower(strings.TrimSpace(status)),
		failureReason:  "provider reported transfer " + strings.TrimSpace(status),
	})
}

type railVerdict struct {
	succeeded      bool
	transactionRef string
	failureCode    string
	failureReason  string
}

func (s Service) applyRailVerdict(ctx context.Context, conversationID string, verdict railVerdict) error {
	logger := ResolveLogger(s.Logger)
	if conversationID == "" {
		return domainerrors.ErrInvalidPayoutInput
	}

	payout, err := s.Payouts.GetPayoutByConversationID(ctx, conversationID)
	if err != nil {
		logger.Warn("rail callback without matching payout",
			"event", "disbursement_callback_unmatched",
			"module", moduleName,
			"layer", "application",
			"conversation_id", conversationID,
		)
		return err
	}
	if payout.Status.Terminal() {
		logger.Info("rail callback replayed for terminal payout",
			"event", "disbursement_callback_replayed",
			"module", moduleName,
			"layer", "application",
			"payout_id", payout.ID,
			"status", string(payout.Status),
		)
		return nil
	}

	now := s.now()
	if verdict.succeeded {
		applied, err := s.Payouts.CompletePayout(ctx, payout.ID, verdict.transactionRef, now)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		logger.Info("payout completed",
			"event", "payout_completed",
			"module", moduleName,
			"layer", "application",
			"payout_id", payout.ID,
			"transaction_ref", verdict.transactionRef,
			"amount", payout.Amount.String(),
		)
		s.emitPayoutEvent(ctx, payout, "payout.completed", map[string]any{
			"transaction_ref": verdict.transactionRef,
			"processed_at":    now.Format(time.RFC3339),
		}, now)
		return nil
	}

	applied, err := s.Payouts.FailPayout(ctx, payout.ID, verdict.failureCode, verdict.failureReason, now)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	logger.Warn("payout failed on rail",
		"event", "payout_failed",
		"module", moduleName,
		"layer", "application",
		"payout_id", payout.ID,
		"failure_code", verdict.failureCode,
		"failure_reason", verdict.failureReason,
	)
	s.emitPayoutEvent(ctx, payout, "payout.failed", map[string]any{
		"failure_code":   verdict.failureCode,
		"failure_reason": verdict.failureReason,
	}, now)
	return nil
}

// ReconcileStale sweeps payouts stuck in processing since before the
// cutoff and settles them from the rail's out-of-band status answer.
// Payouts whose submission is still in flight are left alone.
func (s Service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if s.RailStatus == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = defaultPendingBatchSize
	}
	cutoff := s.now().Add(-olderThan)
	stale, err := s.Payouts.ListStaleProcessing(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	logger := ResolveLogger(s.Logger)
	reconciled := 0
	for _, payout := range stale {
		if payout.ConversationID == "" {
			continue
		}
		status, err := s.RailStatus.QueryStatus(ctx, payout.ConversationID)
		if err != nil {
			logger.Warn("stale payout status query failed",
				"event", "disbursement_reconcile_query_failed",
				"module", moduleName,
				"layer", "application",
				"payout_id", payout.ID,
				"error", err.Error(),
			)
			continue
		}
		if !status.Final {
			continue
		}
		verdict := railVerdict{
			succeeded:      status.Succeeded,
			transactionRef: status.TransactionRef,
			failureCode:    status.FailureCode,
			failureReason:  status.FailureReason,
		}
		if verdict.failureCode == "" {
			verdict.failureCode = "reconciled_failed"
		}
		if err := s.applyRailVerdict(ctx, payout.ConversationID, verdict); err != nil {
			continue
		}
		reconciled++
	}
	if reconciled > 0 {
		logger.Info("stale payouts reconciled",
			"event", "disbursement_reconciled",
			"module", moduleName,
			"layer", "application",
			"count", reconciled,
		)
	}
	return reconciled, nil
}

func (s Service) emitPayoutEvent(
	ctx context.Context,
	payout entities.Payout,
	eventType string,
	extra map[string]any,
	occurredAt time.Time,
) {
	if s.Outbox == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		s.logPayoutFailure(payout.ID, "outbox_id", err)
		return
	}
	body := map[string]any{
		"payout_id":     payout.ID,
		"restaurant_id": payout.RestaurantID,
		"recipient":     string(payout.Recipient),
		"recipient_key": payout.RecipientKey(),
		"month":         payout.Month,
		"amount":        payout.Amount.InexactFloat64(),
	}
	for key, value := range extra {
		body[key] = value
	}
	data, err := json.Marshal(body)
	if err != nil {
		s.logPayoutFailure(payout.ID, "outbox_marshal", err)
		return
	}
	if err := s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "payout-engine",
		TraceID:          payout.ConversationID,
		SchemaVersion:    1,
		PartitionKeyPath: "restaurant_id",
		PartitionKey:     payout.RestaurantID,
		Data:             data,
	}); err != nil {
		s.logPayoutFailure(payout.ID, "outbox_append", err)
	}
}

func (s Service) logPayoutFailure(ref string, stage string, err error) {
	message := "no rows updated"
	if err != nil {
		message = err.Error()
	}
	ResolveLogger(s.Logger).Error("disbursement side effect failed",
		"event", "disbursement_side_effect_failed",
		"module", moduleName,
		"layer", "application",
		"ref", ref,
		"stage", stage,
		"error", message,
	)
}

func failureCodeFromInt(code int) string {
	if code == 0 {
		return ""
	}
	return "mm_" + strconv.Itoa(code)
}
