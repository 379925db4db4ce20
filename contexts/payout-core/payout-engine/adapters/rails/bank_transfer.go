package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tippy/contexts/payout-core/payout-engine/ports"
)

// BankTransferClient submits single transfers to the bank transfer
// provider.
type BankTransferClient struct {
	BaseURL    string
	SourceAcct string
	HTTPClient *http.Client
	Attempts   int
	Logger     *slog.Logger
}

type transferRequest struct {
	SourceAccount string  `json:"source_account"`
	BankName      string  `json:"bank_name"`
	AccountName   string  `json:"account_name"`
	AccountNumber string  `json:"account_number"`
	Amount        float64 `json:"amount"`
	Reference     string  `json:"reference"`
	Narrative     string  `json:"narrative"`
}

type transferResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TransferID string `json:"transfer_id"`
}

func (c *BankTransferClient) SubmitTransfer(
	ctx context.Context,
	submission ports.BankTransferSubmission,
) (ports.RailAcceptance, error) {
	body, err := json.Marshal(transferRequest{
		SourceAccount: c.SourceAcct,
		BankName:      submission.Account.BankName,
		AccountName:   submission.Account.AccountName,
		AccountNumber: submission.Account.AccountNumber,
		Amount:        submission.Amount.InexactFloat64(),
		Reference:     submission.Reference,
		Narrative:     submission.Narrative,
	})
	if err != nil {
		return ports.RailAcceptance{}, fmt.Errorf("encode transfer: %w", err)
	}

	var resp transferResponse
	if err := c.post(ctx, c.BaseURL+"/transfers", body, &resp); err != nil {
		return ports.RailAcceptance{}, err
	}
	switch strings.ToLower(resp.Status) {
	case "accepted", "queued", "pending":
		return ports.RailAcceptance{
			Accepted:       true,
			ConversationID: resp.TransferID,
		}, nil
	default:
		return ports.RailAcceptance{
			Accepted:      false,
			FailureCode:   "transfer_" + strings.ToLower(resp.Status),
			FailureReason: resp.Message,
		}, nil
	}
}

func (c *BankTransferClient) post(ctx context.Context, url string, body []byte, out any) error {
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

func (c *BankTransferClient) logAttempt(url string, attempt int, err error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("bank transfer submission attempt failed",
		"event", "bank_transfer_attempt_failed",
		"module", "payout-core/payout-engine",
		"layer", "adapter",
		"url", url,
		"attempt", attempt,
		"error", err.Error(),
	)
}

var _ ports.BankTransferRail = (*BankTransferClient)(nil)
