package rails

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tippy/contexts/payout-core/payout-engine/ports"
)

// StatusClient answers out-of-band status queries for submissions whose
// callback never arrived. The provider exposes one status endpoint keyed
// by conversation ID regardless of rail.
type StatusClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type statusResponse struct {
	Status         string `json:"status"`
	ResultDesc     string `json:"result_description"`
	TransactionRef string `json:"transaction_ref"`
	FailureCode    string `json:"failure_code"`
}

func (c *StatusClient) QueryStatus(ctx context.Context, conversationID string) (ports.RailStatus, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	url := c.BaseURL + "/transactions/" + conversationID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.RailStatus{}, fmt.Errorf("build status request: %w", err)
	}

	httpResp, err := client.Do(req)
	if err != nil {
		return ports.RailStatus{}, fmt.Errorf("query rail status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		// Unknown conversation: not final, caller leaves the payout alone.
		return ports.RailStatus{}, nil
	}
	if httpResp.StatusCode >= 400 {
		return ports.RailStatus{}, fmt.Errorf("rail status returned %d", httpResp.StatusCode)
	}

	var resp statusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return ports.RailStatus{}, fmt.Errorf("decode rail status: %w", err)
	}

	switch strings.ToLower(resp.Status) {
	case "completed", "success", "settled":
		return ports.RailStatus{
			Final:          true,
			Succeeded:      true,
			TransactionRef: resp.TransactionRef,
		}, nil
	case "failed", "rejected", "cancelled", "expired":
		code := resp.FailureCode
		if code == "" {
			code = "rail_" + strings.ToLower(resp.Status)
		}
		return ports.RailStatus{
			Final:         true,
			FailureCode:   code,
			FailureReason: resp.ResultDesc,
		}, nil
	default:
		return ports.RailStatus{}, nil
	}
}

var _ ports.RailStatusQuery = (*StatusClient)(nil)
