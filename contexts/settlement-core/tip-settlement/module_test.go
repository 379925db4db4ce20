package tipsettlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	tipsettlement "tippy/contexts/settlement-core/tip-settlement"
	domainerrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
	httptransport "tippy/contexts/settlement-core/tip-settlement/transport/http"
)

type distributionRecorder struct {
	restaurantID string
	tipID        string
	net          decimal.Decimal
	calls        int
}

func (r *distributionRecorder) DistributeTip(_ context.Context, restaurantID string, tipID string, net decimal.Decimal) error {
	r.restaurantID = restaurantID
	r.tipID = tipID
	r.net = net
	r.calls++
	return nil
}

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestCreateTipComputesCommission(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, nil, nil)

	resp, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		WaiterID:      strPtr("waiter-1"),
		Gross:         1000,
		Target:        "waiter",
		Rail:          "mobile_money",
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}
	if resp.Data.Status != "pending" {
		t.Fatalf("expected pending tip, got %s", resp.Data.Status)
	}
	if resp.Data.Commission != 100 {
		t.Fatalf("expected commission 100, got %v", resp.Data.Commission)
	}
	if resp.Data.Net != 900 {
		t.Fatalf("expected net 900, got %v", resp.Data.Net)
	}
}

func TestCreateTipWaiterTargetRequiresWaiterID(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(nil, nil, nil)

	_, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		Gross:         500,
		Target:        "waiter",
		Rail:          "mobile_money",
		CorrelationID: "corr-2",
	})
	if !errors.Is(err, domainerrors.ErrInvalidTipInput) {
		t.Fatalf("expected invalid tip input, got %v", err)
	}
}

func TestSettlementUsesRateAtSettlementTime(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, nil, nil)

	created, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		WaiterID:      strPtr("waiter-1"),
		Gross:         1000,
		Target:        "waiter",
		Rail:          "mobile_money",
		CorrelationID: "corr-3",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}

	// The operator raises the rate between intake and settlement; the
	// settled tip carries the new split.
	module.Store.SetCommissionRate("rest-1", decimal.NewFromInt(15))

	ack := module.Handler.SettlementCallbackHandler(context.Background(), httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-3",
		Result:        "success",
		SettledAmount: floatPtr(1000),
		ReceiptID:     "rcpt-1",
	})
	if ack.ResultCode != 0 {
		t.Fatalf("expected ack code 0, got %d", ack.ResultCode)
	}

	got, err := module.Handler.GetTipHandler(context.Background(), "rest-1", created.Data.TipID)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if got.Data.Status != "completed" {
		t.Fatalf("expected completed, got %s", got.Data.Status)
	}
	if got.Data.Commission != 150 || got.Data.Net != 850 {
		t.Fatalf("expected 150/850 split, got %v/%v", got.Data.Commission, got.Data.Net)
	}
	if got.Data.ReceiptID != "rcpt-1" {
		t.Fatalf("expected receipt recorded, got %q", got.Data.ReceiptID)
	}
}

func TestSettlementCallbackReplayIsIdempotent(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, nil, nil)

	created, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		WaiterID:      strPtr("waiter-1"),
		Gross:         400,
		Target:        "waiter",
		Rail:          "card",
		CorrelationID: "corr-4",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}

	callback := httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-4",
		Result:        "success",
		SettledAmount: floatPtr(400),
		ReceiptID:     "rcpt-2",
	}
	first := module.Handler.SettlementCallbackHandler(context.Background(), callback)
	second := module.Handler.SettlementCallbackHandler(context.Background(), callback)
	if first.ResultCode != 0 || second.ResultCode != 0 {
		t.Fatalf("both deliveries must be acknowledged")
	}

	got, err := module.Handler.GetTipHandler(context.Background(), "rest-1", created.Data.TipID)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if got.Data.Status != "completed" {
		t.Fatalf("expected completed, got %s", got.Data.Status)
	}

	pending, err := module.Store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one settled event, got %d", len(pending))
	}

	replayed := false
	for _, entry := range module.Store.WebhookLogs() {
		if entry.Outcome == "replayed" {
			replayed = true
		}
	}
	if !replayed {
		t.Fatalf("expected a replayed webhook log entry")
	}
}

func TestSettlementAmountMismatchFailsTip(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, nil, nil)

	created, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		WaiterID:      strPtr("waiter-1"),
		Gross:         1000,
		Target:        "waiter",
		Rail:          "mobile_money",
		CorrelationID: "corr-5",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}

	ack := module.Handler.SettlementCallbackHandler(context.Background(), httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-5",
		Result:        "success",
		SettledAmount: floatPtr(900),
	})
	if ack.ResultCode != 0 {
		t.Fatalf("mismatch must still be acknowledged")
	}

	got, err := module.Handler.GetTipHandler(context.Background(), "rest-1", created.Data.TipID)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if got.Data.Status != "failed" {
		t.Fatalf("expected failed, got %s", got.Data.Status)
	}
	if got.Data.FailureReason == "" {
		t.Fatalf("expected failure reason to name the mismatch")
	}
}

func TestSettlementCallbackUnmatchedIsAcknowledged(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(nil, nil, nil)

	ack := module.Handler.SettlementCallbackHandler(context.Background(), httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-unknown",
		Result:        "success",
	})
	if ack.ResultCode != 0 {
		t.Fatalf("unmatched callback must be acknowledged, got %d", ack.ResultCode)
	}

	logs := module.Store.WebhookLogs()
	if len(logs) != 1 || logs[0].Outcome != "unmatched" {
		t.Fatalf("expected one unmatched webhook log entry, got %+v", logs)
	}
}

func TestSettlementCancelledClosesTip(t *testing.T) {
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, nil, nil)

	created, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		WaiterID:      strPtr("waiter-1"),
		Gross:         250,
		Target:        "waiter",
		Rail:          "card",
		CorrelationID: "corr-6",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}

	module.Handler.SettlementCallbackHandler(context.Background(), httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-6",
		Result:        "cancelled",
	})

	got, err := module.Handler.GetTipHandler(context.Background(), "rest-1", created.Data.TipID)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if got.Data.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %s", got.Data.Status)
	}

	pending, err := module.Store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("no settled event expected for a cancelled tip, got %d", len(pending))
	}
}

func TestRestaurantWideSettlementTriggersDistribution(t *testing.T) {
	recorder := &distributionRecorder{}
	module := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, recorder, nil)

	created, err := module.Handler.CreateTipHandler(context.Background(), httptransport.CreateTipRequest{
		RestaurantID:  "rest-1",
		Gross:         3000,
		Target:        "restaurant",
		Rail:          "mobile_money",
		CorrelationID: "corr-7",
	})
	if err != nil {
		t.Fatalf("create tip: %v", err)
	}

	module.Handler.SettlementCallbackHandler(context.Background(), httptransport.SettlementCallbackRequest{
		CorrelationID: "corr-7",
		Result:        "success",
		SettledAmount: floatPtr(3000),
	})

	if recorder.calls != 1 {
		t.Fatalf("expected one distribution call, got %d", recorder.calls)
	}
	if recorder.tipID != created.Data.TipID || recorder.restaurantID != "rest-1" {
		t.Fatalf("distribution called with wrong identifiers: %s %s", recorder.restaurantID, recorder.tipID)
	}
	if !recorder.net.Equal(decimal.NewFromInt(2700)) {
		t.Fatalf("expected net 2700 handed to distribution, got %s", recorder.net)
	}
}
