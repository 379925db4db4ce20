// Package rails holds the outbound clients for the external
// money-movement providers. Submissions are retried with bounded
// attempts here so the application layer sees a single yes/no answer.
package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tippy/contexts/payout-core/payout-engine/ports"
)

const defaultSubmitAttempts = 3

// MobileMoneyClient submits bulk payments to the mobile money provider's
// business-to-customer API.
type MobileMoneyClient struct {
	BaseURL    string
	ShortCode  string
	HTTPClient *http.Client
	Attempts   int
	Logger     *slog.Logger
}

type bulkPaymentRequest struct {
	ShortCode string  `json:"short_code"`
	Phone     string  `json:"phone"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
	Remarks   string  `json:"remarks"`
}

type bulkPaymentResponse struct {
	ResponseCode   string `json:"response_code"`
	ResponseDesc   string `json:"response_description"`
	ConversationID string `json:"conversation_id"`
}

func (c *MobileMoneyClient) SubmitBulkPayment(
	ctx context.Context,
	submission ports.MobileMoneySubmission,
) (ports.RailAcceptance, error) {
	body, err := json.Marshal(bulkPaymentRequest{
		ShortCode: c.ShortCode,
		Phone:     submission.Phone,
		Amount:    submission.Amount.InexactFloat64(),
		Reference: submission.Reference,
		Remarks:   submission.Remarks,
	})
	if err != nil {
		return ports.RailAcceptance{}, fmt.Errorf("encode bulk payment: %w", err)
	}

	var resp bulkPaymentResponse
	if err := c.post(ctx, c.BaseURL+"/b2c/paymentrequest", body, &resp); err != nil {
		return ports.RailAcceptance{}, err
	}
	if resp.ResponseCode != "0" {
		return ports.RailAcceptance{
			Accepted:      false,
			FailureCode:   "mm_" + resp.ResponseCode,
			FailureReason: resp.ResponseDesc,
		}, nil
	}
	return ports.RailAcceptance{
		Accepted:       true,
		ConversationID: resp.ConversationID,
	}, nil
}

func (c *MobileMoneyClient) post(ctx context.Context, url string, body []byte, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultSubmitAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build rail request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := client.Do(req)
		if err != nil {
			lastErr = err
			c.logAttempt(url, attempt, err)
			continue
		}
		func() {
			defer httpResp.Body.Close()
			if httpResp.StatusCode >= 500 {
				lastErr = fmt.Errorf("rail returned status %d", httpResp.StatusCode)
				return
			}
			lastErr = json.NewDecoder(httpResp.Body).Decode(out)
		}()
		if lastErr == nil {
			return nil
		}
		c.logAttempt(url, attempt, lastErr)
	}
	return fmt.Errorf("rail submission exhausted %d attempts: %w", attempts, lastErr)
}

func (c *MobileMoneyClient) logAttempt(url string, attempt int, err error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("mobile money submission attempt failed",
		"event", "mobile_money_attempt_failed",
		"module", "payout-core/payout-engine",
		"layer", "adapter",
		"url", url,
		"attempt", attempt,
		"error", err.Error(),
	)
}

var _ ports.MobileMoneyRail = (*MobileMoneyClient)(nil)
