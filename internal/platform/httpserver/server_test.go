package httpserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	notificationscheduler "tippy/contexts/payout-core/notification-scheduler"
	payoutengine "tippy/contexts/payout-core/payout-engine"
	distributionengine "tippy/contexts/settlement-core/distribution-engine"
	tipsettlement "tippy/contexts/settlement-core/tip-settlement"
	"tippy/internal/platform/httpserver"
)

func testServer(t *testing.T) *httpserver.Server {
	t.Helper()
	distribution := distributionengine.NewInMemoryModule(nil)
	tips := tipsettlement.NewInMemoryModule(map[string]decimal.Decimal{
		"rest-1": decimal.NewFromInt(10),
	}, distribution.Service, nil)
	payouts := payoutengine.NewInMemoryModule(nil)
	notifications := notificationscheduler.NewInMemoryModule(nil)
	return httpserver.New(tips, distribution, payouts, notifications, nil, "")
}

func doJSON(t *testing.T, server *httpserver.Server, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server := testServer(t)
	rec := doJSON(t, server, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
}

func TestTipLifecycleOverHTTP(t *testing.T) {
	server := testServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/tips", `{
		"restaurant_id": "rest-1",
		"waiter_id": "waiter-1",
		"gross_amount": 1000,
		"target_kind": "waiter",
		"payment_rail": "mobile_money",
		"correlation_id": "corr-http-1"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tip returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			TipID string `json:"tip_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = doJSON(t, server, http.MethodPost, "/webhooks/settlement", `{
		"correlation_id": "corr-http-1",
		"result_status": "success",
		"settled_amount": 1000,
		"receipt_id": "R1"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settlement webhook returned %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/tips/"+created.Data.TipID+"?restaurant_id=rest-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get tip returned %d", rec.Code)
	}
	var fetched struct {
		Data struct {
			Status string  `json:"status"`
			Net    float64 `json:"net_amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.Data.Status != "completed" || fetched.Data.Net != 900 {
		t.Fatalf("expected completed/900, got %s/%v", fetched.Data.Status, fetched.Data.Net)
	}
}

func TestSettlementWebhookAlwaysAcks(t *testing.T) {
	server := testServer(t)

	for _, body := range []string{
		"not json at all",
		`{"correlation_id": "", "result_status": "success"}`,
		`{"correlation_id": "nobody-home", "result_status": "success"}`,
	} {
		rec := doJSON(t, server, http.MethodPost, "/webhooks/settlement", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook body %q returned %d, want 200", body, rec.Code)
		}
		var ack struct {
			ResultCode int `json:"result_code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.ResultCode != 0 {
			t.Fatalf("expected ack code 0, got %d", ack.ResultCode)
		}
	}
}

func TestConfigureGroupsRejectsBadSumOverHTTP(t *testing.T) {
	server := testServer(t)

	rec := doJSON(t, server, http.MethodPut, "/v1/restaurants/rest-1/distribution-groups", `{
		"groups": [
			{"name": "waiters", "percentage": 60},
			{"name": "kitchen", "percentage": 30}
		]
	}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for 90%% sum, got %d: %s", rec.Code, rec.Body.String())
	}
	var errBody struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Code != "percentages_not_whole" {
		t.Fatalf("expected percentages_not_whole, got %q", errBody.Code)
	}
}

func TestDistributionLedgerOverHTTP(t *testing.T) {
	server := testServer(t)

	rec := doJSON(t, server, http.MethodPut, "/v1/restaurants/rest-1/distribution-groups", `{
		"groups": [
			{"name": "waiters", "percentage": 60},
			{"name": "kitchen", "percentage": 40}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("configure groups returned %d: %s", rec.Code, rec.Body.String())
	}

	// A settled restaurant-wide tip feeds the ledger through distribution.
	rec = doJSON(t, server, http.MethodPost, "/v1/tips", `{
		"restaurant_id": "rest-1",
		"gross_amount": 1000,
		"target_kind": "restaurant",
		"payment_rail": "mobile_money",
		"correlation_id": "corr-ledger-1"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tip returned %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, server, http.MethodPost, "/webhooks/settlement", `{
		"correlation_id": "corr-ledger-1",
		"result_status": "success",
		"settled_amount": 1000,
		"receipt_id": "R9"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settlement webhook returned %d", rec.Code)
	}

	month := time.Now().UTC().Format("2006-01")
	rec = doJSON(t, server, http.MethodGet, "/v1/restaurants/rest-1/distribution-ledger?month="+month, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger returned %d: %s", rec.Code, rec.Body.String())
	}
	var ledger struct {
		Data []struct {
			GroupName string  `json:"group_name"`
			Amount    float64 `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ledger); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(ledger.Data) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(ledger.Data))
	}
	totals := map[string]float64{}
	for _, entry := range ledger.Data {
		totals[entry.GroupName] = entry.Amount
	}
	if totals["waiters"] != 540 || totals["kitchen"] != 360 {
		t.Fatalf("expected 540/360 of net 900, got %v", totals)
	}

	rec = doJSON(t, server, http.MethodGet, "/v1/restaurants/rest-1/distribution-ledger?month=2025-13", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month should be rejected, got %d", rec.Code)
	}
}

func TestGeneratePayoutsBadMonthOverHTTP(t *testing.T) {
	server := testServer(t)

	rec := doJSON(t, server, http.MethodPost, "/v1/payouts/generate", `{
		"restaurant_id": "rest-1",
		"month": "2025-13"
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad month, got %d", rec.Code)
	}
}

func TestRailWebhooksAlwaysAck(t *testing.T) {
	server := testServer(t)

	for _, path := range []string{"/webhooks/mobile-money", "/webhooks/bank-transfer"} {
		for _, body := range []string{"garbage", `{"conversation_id": "unknown", "result_code": 0}`} {
			rec := doJSON(t, server, http.MethodPost, path, body)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s with body %q returned %d", path, body, rec.Code)
			}
		}
	}
}
