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

func seededModule(t *testing.T) payoutengine.Module {
	t.Helper()
	module := payoutengine.NewInMemoryModule(nil)
	july := time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC)

	// Waiter 1: two settled direct tips netting 1350.
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(900), july)
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(500), decimal.NewFromInt(50), decimal.NewFromInt(450), july.AddDate(0, 0, 5))

	// Waiter 2: below the monthly minimum.
	module.Store.AddSettledWaiterTip("rest-1", "waiter-2",
		decimal.NewFromInt(55), decimal.NewFromFloat(5.5), decimal.NewFromFloat(49.5), july)

	// Restaurant-wide pool netting 2700, split 50/40/10.
	module.Store.AddSettledRestaurantTip("rest-1",
		decimal.NewFromInt(3000), decimal.NewFromInt(300), decimal.NewFromInt(2700), july.AddDate(0, 0, 2))
	module.Store.SetGroupShares("rest-1", []ports.GroupShare{
		{Name: "waiters", Percentage: decimal.NewFromInt(50)},
		{Name: "kitchen", Percentage: decimal.NewFromInt(40)},
		{Name: "owners", Percentage: decimal.NewFromInt(10)},
	})
	return module
}

func TestGenerateRejectsInvalidMonth(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)

	for _, month := range []string{"", "2025-13", "July 2025", "2025-07-01"} {
		_, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
			RestaurantID: "rest-1",
			Month:        month,
		})
		if !errors.Is(err, domainerrors.ErrInvalidMonth) {
			t.Fatalf("month %q: expected invalid month, got %v", month, err)
		}
	}
}

func TestGeneratePreviewWritesNothing(t *testing.T) {
	module := seededModule(t)

	resp, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
		Preview:      true,
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(resp.Data.Plan) != 5 {
		t.Fatalf("expected 5 plan items (2 waiters + 3 groups), got %d", len(resp.Data.Plan))
	}
	// 1350 + 1350 + 1080 + 270; waiter-2 is under the minimum.
	if resp.Data.TotalAmount != 4050 {
		t.Fatalf("expected payable total 4050, got %v", resp.Data.TotalAmount)
	}

	list, err := module.Handler.ListPayoutsHandler(context.Background(), "rest-1", "2025-07")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	if len(list.Data) != 0 {
		t.Fatalf("preview must not create payouts, found %d", len(list.Data))
	}
}

func TestGenerateCreatesOnePayoutPerRecipient(t *testing.T) {
	module := seededModule(t)

	resp, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Data.CreatedCount != 4 {
		t.Fatalf("expected 4 created payouts, got %d", resp.Data.CreatedCount)
	}

	byKey := make(map[string]httptransport.GenerateItemDTO)
	for _, item := range resp.Data.Items {
		byKey[item.RecipientKey] = item
	}
	if byKey["waiter-1"].Status != "created" || byKey["waiter-1"].Amount != 1350 {
		t.Fatalf("waiter-1: %+v", byKey["waiter-1"])
	}
	if byKey["waiter-2"].Status != "below_minimum" {
		t.Fatalf("waiter-2 should be dropped for the month: %+v", byKey["waiter-2"])
	}
	if byKey["kitchen"].Amount != 1080 || byKey["owners"].Amount != 270 || byKey["waiters"].Amount != 1350 {
		t.Fatalf("group shares wrong: %+v %+v %+v", byKey["waiters"], byKey["kitchen"], byKey["owners"])
	}

	list, err := module.Handler.ListPayoutsHandler(context.Background(), "rest-1", "2025-07")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	if len(list.Data) != 4 {
		t.Fatalf("expected 4 payout rows, got %d", len(list.Data))
	}
	for _, payout := range list.Data {
		if payout.Status != "pending" {
			t.Fatalf("payout %s should start pending, got %s", payout.PayoutID, payout.Status)
		}
	}
}

func TestGenerateRefusesSecondRunForSameMonth(t *testing.T) {
	module := seededModule(t)

	if _, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	}); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	_, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	})
	if !errors.Is(err, domainerrors.ErrPayoutsAlreadyExist) {
		t.Fatalf("expected refusal for existing month, got %v", err)
	}
}

func TestGenerateMinimumBoundary(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)
	july := time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC)

	// Exactly at the floor pays out; one cent under does not.
	module.Store.AddSettledWaiterTip("rest-1", "waiter-at",
		decimal.NewFromFloat(111.11), decimal.NewFromFloat(11.11), decimal.NewFromInt(100), july)
	module.Store.AddSettledWaiterTip("rest-1", "waiter-under",
		decimal.NewFromFloat(111.10), decimal.NewFromFloat(11.11), decimal.NewFromFloat(99.99), july)

	resp, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	statuses := make(map[string]string)
	for _, item := range resp.Data.Items {
		statuses[item.RecipientKey] = item.Status
	}
	if statuses["waiter-at"] != "created" {
		t.Fatalf("net 100 must pay out, got %s", statuses["waiter-at"])
	}
	if statuses["waiter-under"] != "below_minimum" {
		t.Fatalf("net 99.99 must be dropped, got %s", statuses["waiter-under"])
	}
}

func TestGenerateGroupAllotmentBelowMinimum(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)
	july := time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC)

	// Restaurant-wide net 999.9 split 90/10 leaves owners at 99.99, just
	// under the floor; the same floor that drops small waiter totals drops
	// small group allotments.
	module.Store.AddSettledRestaurantTip("rest-1",
		decimal.NewFromInt(1111), decimal.NewFromFloat(111.1), decimal.NewFromFloat(999.9), july)
	module.Store.SetGroupShares("rest-1", []ports.GroupShare{
		{Name: "waiters", Percentage: decimal.NewFromInt(90)},
		{Name: "owners", Percentage: decimal.NewFromInt(10)},
	})

	resp, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	byKey := make(map[string]httptransport.GenerateItemDTO)
	for _, item := range resp.Data.Items {
		byKey[item.RecipientKey] = item
	}
	if byKey["waiters"].Status != "created" || byKey["waiters"].Amount != 899.91 {
		t.Fatalf("waiters share should pay out: %+v", byKey["waiters"])
	}
	if byKey["owners"].Status != "below_minimum" {
		t.Fatalf("owners allotment of 99.99 must be dropped, got %+v", byKey["owners"])
	}

	list, err := module.Handler.ListPayoutsHandler(context.Background(), "rest-1", "2025-07")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("only the waiters share should have a payout row, got %d", len(list.Data))
	}
}

func TestGenerateIgnoresTipsOutsideMonth(t *testing.T) {
	module := payoutengine.NewInMemoryModule(nil)

	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(900),
		time.Date(2025, time.June, 30, 23, 59, 0, 0, time.UTC))
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(500), decimal.NewFromInt(50), decimal.NewFromInt(450),
		time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	module.Store.AddSettledWaiterTip("rest-1", "waiter-1",
		decimal.NewFromInt(300), decimal.NewFromInt(30), decimal.NewFromInt(270),
		time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))

	resp, err := module.Handler.GeneratePayoutsHandler(context.Background(), httptransport.GeneratePayoutsRequest{
		RestaurantID: "rest-1",
		Month:        "2025-07",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(resp.Data.Items) != 1 || resp.Data.Items[0].Amount != 450 {
		t.Fatalf("only the July tip belongs in the window: %+v", resp.Data.Items)
	}
}
