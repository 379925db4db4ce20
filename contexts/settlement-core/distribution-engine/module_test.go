package distributionengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	distributionengine "tippy/contexts/settlement-core/distribution-engine"
	domainerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
	httptransport "tippy/contexts/settlement-core/distribution-engine/transport/http"
)

func TestConfigureGroupsRejectsBadSum(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	for _, sum := range []float64{99, 101} {
		_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
			Groups: []httptransport.GroupInputDTO{
				{Name: "waiters", Percentage: sum - 50},
				{Name: "kitchen", Percentage: 50},
			},
		})
		if !errors.Is(err, domainerrors.ErrPercentagesNotWhole) {
			t.Fatalf("sum %v: expected percentages-not-whole, got %v", sum, err)
		}
	}

	// Nothing may have been written by the rejected sets.
	resp, err := module.Handler.ListGroupsHandler(context.Background(), "rest-1")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Fatalf("expected no groups after rejected writes, got %d", len(resp.Data))
	}
}

func TestConfigureGroupsRejectsDuplicateNames(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
		Groups: []httptransport.GroupInputDTO{
			{Name: "waiters", Percentage: 50},
			{Name: "waiters", Percentage: 50},
		},
	})
	if !errors.Is(err, domainerrors.ErrInvalidGroupInput) {
		t.Fatalf("expected invalid group input, got %v", err)
	}
}

func TestConfigureGroupsReplacesExistingSet(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
		Groups: []httptransport.GroupInputDTO{
			{Name: "waiters", Percentage: 60},
			{Name: "kitchen", Percentage: 40},
		},
	})
	if err != nil {
		t.Fatalf("first configure: %v", err)
	}

	_, err = module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
		Groups: []httptransport.GroupInputDTO{
			{Name: "waiters", Percentage: 50},
			{Name: "kitchen", Percentage: 40},
			{Name: "owners", Percentage: 10},
		},
	})
	if err != nil {
		t.Fatalf("second configure: %v", err)
	}

	resp, err := module.Handler.ListGroupsHandler(context.Background(), "rest-1")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected replacement set of 3 groups, got %d", len(resp.Data))
	}
}

func TestDistributeTipSplitsNetAcrossGroups(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
		Groups: []httptransport.GroupInputDTO{
			{Name: "waiters", Percentage: 50},
			{Name: "kitchen", Percentage: 40},
			{Name: "owners", Percentage: 10},
		},
	})
	if err != nil {
		t.Fatalf("configure groups: %v", err)
	}

	if err := module.Service.DistributeTip(context.Background(), "rest-1", "tip-1", decimal.NewFromInt(2700)); err != nil {
		t.Fatalf("distribute tip: %v", err)
	}

	resp, err := module.Handler.ListTipRecordsHandler(context.Background(), "rest-1", "tip-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected one record per group, got %d", len(resp.Data))
	}

	want := map[string]float64{"waiters": 1350, "kitchen": 1080, "owners": 270}
	for _, record := range resp.Data {
		if record.Amount != want[record.GroupName] {
			t.Fatalf("group %s: expected %v, got %v", record.GroupName, want[record.GroupName], record.Amount)
		}
	}
}

func TestDistributeTipWithoutGroupsFails(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	err := module.Service.DistributeTip(context.Background(), "rest-1", "tip-1", decimal.NewFromInt(100))
	if !errors.Is(err, domainerrors.ErrNoGroupsConfigured) {
		t.Fatalf("expected no-groups-configured, got %v", err)
	}
}

func TestDistributeTipRetryDoesNotDuplicateRecords(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
		Groups: []httptransport.GroupInputDTO{
			{Name: "waiters", Percentage: 100},
		},
	})
	if err != nil {
		t.Fatalf("configure groups: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := module.Service.DistributeTip(context.Background(), "rest-1", "tip-1", decimal.NewFromInt(500)); err != nil {
			t.Fatalf("distribute attempt %d: %v", i+1, err)
		}
	}

	resp, err := module.Handler.ListTipRecordsHandler(context.Background(), "rest-1", "tip-1")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected a single record after retry, got %d", len(resp.Data))
	}
}

func TestLedgerTotalsKeepHistoricalSplit(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	configure := func(waiters float64, kitchen float64) {
		t.Helper()
		_, err := module.Handler.ConfigureGroupsHandler(context.Background(), "rest-1", httptransport.ConfigureGroupsRequest{
			Groups: []httptransport.GroupInputDTO{
				{Name: "waiters", Percentage: waiters},
				{Name: "kitchen", Percentage: kitchen},
			},
		})
		if err != nil {
			t.Fatalf("configure %v/%v: %v", waiters, kitchen, err)
		}
	}

	// First tip splits 50/50; the percentages move to 60/40 before the
	// second tip lands.
	configure(50, 50)
	if err := module.Service.DistributeTip(context.Background(), "rest-1", "tip-1", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("first distribute: %v", err)
	}
	configure(60, 40)
	if err := module.Service.DistributeTip(context.Background(), "rest-1", "tip-2", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("second distribute: %v", err)
	}

	now := time.Now().UTC()
	resp, err := module.Handler.LedgerTotalsHandler(context.Background(), "rest-1", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ledger totals: %v", err)
	}

	// Recomputing the 2000 total at today's 60/40 would say 1200/800; the
	// ledger keeps the split each tip actually received.
	totals := make(map[string]float64, len(resp.Data))
	for _, entry := range resp.Data {
		totals[entry.GroupName] = entry.Amount
	}
	if totals["waiters"] != 1100 || totals["kitchen"] != 900 {
		t.Fatalf("expected historical 1100/900, got %v", totals)
	}
}

func TestSaveBankAccountRequiresFields(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	_, err := module.Handler.SaveBankAccountHandler(context.Background(), "rest-1", httptransport.SaveBankAccountRequest{
		GroupName: "owners",
	})
	if !errors.Is(err, domainerrors.ErrInvalidBankAccount) {
		t.Fatalf("expected invalid bank account, got %v", err)
	}
}

func TestSaveBankAccountRoundTrip(t *testing.T) {
	module := distributionengine.NewInMemoryModule(nil)

	saved, err := module.Handler.SaveBankAccountHandler(context.Background(), "rest-1", httptransport.SaveBankAccountRequest{
		GroupName:     "owners",
		BankName:      "Equity",
		AccountName:   "Rest One Owners",
		AccountNumber: "0101010101",
	})
	if err != nil {
		t.Fatalf("save bank account: %v", err)
	}
	if saved.Data.AccountID == "" {
		t.Fatalf("expected account id assigned")
	}

	account, err := module.Service.GetBankAccount(context.Background(), "rest-1", "owners")
	if err != nil {
		t.Fatalf("get bank account: %v", err)
	}
	if account.AccountNumber != "0101010101" {
		t.Fatalf("unexpected account number %q", account.AccountNumber)
	}
}
