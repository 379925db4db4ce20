package payoutengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	payoutengine "tippy/contexts/payout-core/payout-engine"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/ports"
	httptransport "tippy/contexts/payout-core/payout-engine/transport/http"
)

// disbursableModule seeds a generated month with two waiter payouts and
// one group payout, with rails resolvable for everyone.
func disbursableModule(t *testing.T) payoutengine.Module {
	t.Helper()
	module := seededModule(t)
	module.Store.SetWaiterPhone("rest-1", "waiter-1", "254700000001")
	module.Store.SetWaiterPhone("rest-1", "waiter-2", "254700000002")
	account := ports.BankAccountInfo{
		BankName:      "Equity",
		AccountName:   "Rest One",
		AccountNumber: "0101010101",
		Verified:      true,
	}
	module.Store.SetGroupBankAccount("rest-1", "waiters", account)
	module.Store.SetGroupBankAccount("rest-1", "kitchen", account)
	module.Store.SetGroupBankAccount("rest-1", "owners", account)

	if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return module
}

func payoutStatuses(t *testing.T, module payoutengine.Module) map[string]string {
	t.Helper()
	list, err := module.Handler.ListPayoutsHandler(context.Background(), "rest-1", "2025-07")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	statuses := make(map[string]string, len(list.Data))
	for _, payout := range list.Data {
		key := payout.WaiterID
		if key == "" {
			key = payout.GroupName
		}
		statuses[key] = payout.Status
	}
	return statuses
}

func TestProcessBatchDryRunTouchesNothing(t *testing.T) {
	module := disbursableModule(t)

	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
		DryRun:       true,
	})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !resp.Data.DryRun {
		t.Fatalf("expected dry run response")
	}
	if resp.Data.SubmittedCount != 4 {
		t.Fatalf("expected 4 plannable payouts, got %d", resp.Data.SubmittedCount)
	}
	for _, item := range resp.Data.Items {
		if item.Status != "planned" {
			t.Fatalf("dry run item %s: expected planned, got %s", item.PayoutID, item.Status)
		}
	}

	if got := len(module.MobileMoneyRail.Submissions()); got != 0 {
		t.Fatalf("dry run must not touch the rail, saw %d submissions", got)
	}
	for key, status := range payoutStatuses(t, module) {
		if status != "pending" {
			t.Fatalf("payout %s should remain pending after dry run, got %s", key, status)
		}
	}
}

func TestProcessBatchSubmitsOnBothRails(t *testing.T) {
	module := disbursableModule(t)

	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Data.SubmittedCount != 4 || resp.Data.FailedCount != 0 {
		t.Fatalf("expected 4 submitted, got %d submitted / %d failed", resp.Data.SubmittedCount, resp.Data.FailedCount)
	}
	for _, item := range resp.Data.Items {
		if item.ConversationID == "" {
			t.Fatalf("submitted item %s is missing a conversation id", item.PayoutID)
		}
	}

	if got := len(module.MobileMoneyRail.Submissions()); got != 1 {
		t.Fatalf("expected 1 mobile money submission, got %d", got)
	}
	if got := len(module.BankTransferRail.Submissions()); got != 3 {
		t.Fatalf("expected 3 bank transfers, got %d", got)
	}
	for key, status := range payoutStatuses(t, module) {
		if status != "processing" {
			t.Fatalf("payout %s should be processing after submission, got %s", key, status)
		}
	}
}

func TestProcessBatchDoesNotDoubleSubmit(t *testing.T) {
	module := disbursableModule(t)

	first, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("first process: %v", err)
	}

	var ids []string
	for _, item := range first.Data.Items {
		ids = append(ids, item.PayoutID)
	}
	second, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		PayoutIDs: ids,
	})
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if second.Data.SubmittedCount != 0 || second.Data.SkippedCount != 4 {
		t.Fatalf("rerun must skip claimed payouts, got %+v", second.Data)
	}
	if got := len(module.MobileMoneyRail.Submissions()); got != 1 {
		t.Fatalf("expected no extra submissions, got %d", got)
	}
}

func TestProcessBatchWithoutSelectorSweepsAllTenants(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)
	july := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.UTC)
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(900), july)
	module.Store.AddSettledWaiterTip("rest-2", "waiter-9",
		decimal.NewFromInt(500), decimal.NewFromInt(50), decimal.NewFromInt(450), july)
	module.Store.SetWaiterPhone("rest-1", "waiter-1", "254700000001")
	module.Store.SetWaiterPhone("rest-2", "waiter-9", "254700000009")

	for _, restaurantID := range []string{"rest-1", "rest-2"} {
		if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
			RestaurantID: restaurantID,
			Month:        "2025-07",
		}); err != nil {
			t.Fatalf("generate %s: %v", restaurantID, err)
		}
	}

	// No restaurant and no ids: process picks up pending payouts for every
	// tenant.
	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Data.SubmittedCount != 2 {
		t.Fatalf("expected both tenants' payouts submitted, got %+v", resp.Data)
	}
	for _, restaurantID := range []string{"rest-1", "rest-2"} {
		list, err := module.Handler.ListPayoutsHandler(context.Background(), restaurantID, "2025-07")
		if err != nil {
			t.Fatalf("list %s: %v", restaurantID, err)
		}
		if len(list.Data) != 1 || list.Data[0].Status != "processing" {
			t.Fatalf("%s payout should be processing: %+v", restaurantID, list.Data)
		}
	}

	// Retry still demands explicit ids even without a restaurant.
	_, err = module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		Action: "retry",
	})
	if !errors.Is(err, domainerrors.ErrInvalidPayoutInput) {
		t.Fatalf("expected refusal of selectorless retry, got %v", err)
	}
}

func TestMobileMoneyAmountsAreWholeUnits(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)
	july := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.UTC)
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromFloat(167.50), decimal.NewFromFloat(16.75), decimal.NewFromFloat(150.75), july)
	module.Store.SetWaiterPhone("rest-1", "waiter-1", "254700000001")

	if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	submissions := module.MobileMoneyRail.Submissions()
	if len(submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submissions))
	}
	if !submissions[0].Amount.Equal(decimal.NewFromInt(151)) {
		t.Fatalf("expected whole-unit amount 151, got %s", submissions[0].Amount)
	}
}

func TestRailRejectionParksPayoutFailed(t *testing.T) {
	module := disbursableModule(t)
	module.MobileMoneyRail.RejectPhone("254700000001", "account blocked")

	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Data.FailedCount != 1 || resp.Data.SubmittedCount != 3 {
		t.Fatalf("expected 1 failed / 3 submitted, got %d / %d", resp.Data.FailedCount, resp.Data.SubmittedCount)
	}

	statuses := payoutStatuses(t, module)
	if statuses["waiter-1"] != "failed" {
		t.Fatalf("rejected payout should be failed, got %s", statuses["waiter-1"])
	}
	// Only terminal transitions emit events; accepted submissions are
	// still in flight, so the rejection is the single outbox row.
	if count := module.Store.PendingOutboxCount(); count != 1 {
		t.Fatalf("expected one payout.failed event, got %d rows", count)
	}
}

func TestUnresolvableRecipientFailsItem(t *testing.T) {
	module := seededModule(t)
	// No phone for waiter-1, no bank accounts at all.
	if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Data.SubmittedCount != 0 || resp.Data.FailedCount != 4 {
		t.Fatalf("expected all 4 items failed, got %+v", resp.Data)
	}
	for key, status := range payoutStatuses(t, module) {
		if status != "failed" {
			t.Fatalf("payout %s: expected failed, got %s", key, status)
		}
	}
}

func TestRetryResetsOnlyExplicitFailedPayouts(t *testing.T) {
	module := disbursableModule(t)
	module.MobileMoneyRail.RejectPhone("254700000001", "account blocked")

	first, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	var failedID string
	for _, item := range first.Data.Items {
		if item.Status == "failed" {
			failedID = item.PayoutID
		}
	}
	if failedID == "" {
		t.Fatalf("expected a failed item to retry")
	}

	// Restaurant-wide retry without explicit ids is refused.
	_, err = module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
		Action:       "retry",
	})
	if !errors.Is(err, domainerrors.ErrInvalidPayoutInput) {
		t.Fatalf("expected refusal of blanket retry, got %v", err)
	}

	// Point the waiter at a phone the rail accepts before retrying.
	module.Store.SetWaiterPhone("rest-1", "waiter-1", "254700000009")

	retry, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		PayoutIDs: []string{failedID},
		Action:    "retry",
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Data.SubmittedCount != 1 {
		t.Fatalf("expected retried payout submitted, got %+v", retry.Data)
	}
	if payoutStatuses(t, module)["waiter-1"] != "processing" {
		t.Fatalf("retried payout should be processing")
	}
}

func TestMobileMoneyCallbackCompletesPayout(t *testing.T) {
	module := disbursableModule(t)

	processed, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var convID string
	for _, item := range processed.Data.Items {
		if item.Rail == "mobile_money" {
			convID = item.ConversationID
		}
	}

	before := module.Store.PendingOutboxCount()
	ack := module.Handler.MobileMoneyCallbackHandler(context.Background(), httptransport.MobileMoneyCallbackRequest{
		ConversationID: convID,
		ResultCode:     0,
		ReceiptID:      "RCPT99",
	})
	if ack.ResultCode != 0 {
		t.Fatalf("callback must be acknowledged")
	}

	if payoutStatuses(t, module)["waiter-1"] != "completed" {
		t.Fatalf("expected completed payout after success callback")
	}
	if module.Store.PendingOutboxCount() != before+1 {
		t.Fatalf("expected a payout.completed event appended")
	}

	// Duplicate delivery finds the payout terminal and changes nothing.
	module.Handler.MobileMoneyCallbackHandler(context.Background(), httptransport.MobileMoneyCallbackRequest{
		ConversationID: convID,
		ResultCode:     1,
		ResultDesc:     "late contradictory verdict",
	})
	if payoutStatuses(t, module)["waiter-1"] != "completed" {
		t.Fatalf("late callback must not overwrite the terminal state")
	}
	if module.Store.PendingOutboxCount() != before+1 {
		t.Fatalf("replayed callback must not emit another event")
	}
}

func TestMobileMoneyCallbackFailureCode(t *testing.T) {
	module := disbursableModule(t)

	processed, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var convID string
	for _, item := range processed.Data.Items {
		if item.Rail == "mobile_money" {
			convID = item.ConversationID
		}
	}

	module.Handler.MobileMoneyCallbackHandler(context.Background(), httptransport.MobileMoneyCallbackRequest{
		ConversationID: convID,
		ResultCode:     2001,
		ResultDesc:     "insufficient float",
	})

	list, err := module.Handler.ListPayoutsHandler(context.Background(), "rest-1", "2025-07")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	for _, payout := range list.Data {
		if payout.WaiterID == "waiter-1" {
			if payout.Status != "failed" || payout.FailureCode != "mm_2001" {
				t.Fatalf("expected failed with code mm_2001, got %s / %s", payout.Status, payout.FailureCode)
			}
		}
	}
}

func TestBankTransferCallbackCompletesGroupPayout(t *testing.T) {
	module := disbursableModule(t)

	processed, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var convID string
	for _, item := range processed.Data.Items {
		if item.Rail == "bank_transfer" && item.RecipientKey == "kitchen" {
			convID = item.ConversationID
		}
	}

	module.Handler.BankTransferCallbackHandler(context.Background(), httptransport.BankTransferCallbackRequest{
		TransferID: convID,
		Status:     "completed",
		ProviderID: "prov-777",
	})

	if payoutStatuses(t, module)["kitchen"] != "completed" {
		t.Fatalf("expected kitchen payout completed")
	}
}

func TestUnverifiedBankAccountFailsGroupPayout(t *testing.T) {
	module := seededModule(t)
	module.Store.SetWaiterPhone("rest-1", "waiter-1", "254700000001")
	module.Store.SetGroupBankAccount("rest-1", "owners", ports.BankAccountInfo{
		BankName:      "Equity",
		AccountNumber: "0101010101",
		Verified:      false,
	})

	if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	resp, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	for _, item := range resp.Data.Items {
		if item.RecipientKey == "owners" && item.Status != "failed" {
			t.Fatalf("unverified account must fail the item, got %s", item.Status)
		}
	}
	if got := len(module.BankTransferRail.Submissions()); got != 0 {
		t.Fatalf("no transfer may reach the rail without a verified account, got %d", got)
	}
}

func TestReconcileStaleSettlesFromStatusQuery(t *testing.T) {
	module := disbursableModule(t)

	processed, err := module.Handler.ProcessPayoutsHandler(context.Background(), httptransport.ProcessPayoutsRequest{
		RestaurantID: "rest-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var mmConv, btConv string
	for _, item := range processed.Data.Items {
		switch {
		case item.Rail == "mobile_money":
			mmConv = item.ConversationID
		case item.RecipientKey == "kitchen":
			btConv = item.ConversationID
		}
	}

	module.RailStatus.SetStatus(mmConv, ports.RailStatus{
		Final:          true,
		Succeeded:      true,
		TransactionRef: "RCPT55",
	})
	module.RailStatus.SetStatus(btConv, ports.RailStatus{
		Final:         true,
		Succeeded:     false,
		FailureCode:   "transfer_expired",
		FailureReason: "transfer expired at provider",
	})
	// The remaining two payouts have no final status yet and must be left
	// in processing.

	// A negative horizon puts the cutoff in the future, so everything
	// currently processing counts as stale.
	reconciled, err := module.Service.ReconcileStale(context.Background(), -time.Minute, 0)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if reconciled != 2 {
		t.Fatalf("expected 2 reconciled payouts, got %d", reconciled)
	}

	statuses := payoutStatuses(t, module)
	if statuses["waiter-1"] != "completed" {
		t.Fatalf("mobile money payout should be completed, got %s", statuses["waiter-1"])
	}
	if statuses["kitchen"] != "failed" {
		t.Fatalf("expired transfer should be failed, got %s", statuses["kitchen"])
	}
	if statuses["owners"] != "processing" || statuses["waiters"] != "processing" {
		t.Fatalf("in-flight payouts must be left alone: %+v", statuses)
	}
}
