package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateTipRequest struct {
	RestaurantID  string            `json:"restaurant_id"`
	WaiterID      *string           `json:"waiter_id,omitempty"`
	TableID       *string           `json:"table_id,omitempty"`
	Gross         float64           `json:"gross_amount"`
	Target        string            `json:"target_kind"`
	Rail          string            `json:"payment_rail"`
	CorrelationID string            `json:"correlation_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type TipDTO struct {
	TipID         string            `json:"tip_id"`
	RestaurantID  string            `json:"restaurant_id"`
	WaiterID      *string           `json:"waiter_id,omitempty"`
	TableID       *string           `json:"table_id,omitempty"`
	Gross         float64           `json:"gross_amount"`
	Commission    float64           `json:"commission_amount"`
	Net           float64           `json:"net_amount"`
	Target        string            `json:"target_kind"`
	Rail          string            `json:"payment_rail"`
	Status        string            `json:"status"`
	CorrelationID string            `json:"correlation_id"`
	ReceiptID     string            `json:"receipt_id,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

type TipResponse struct {
	Status string `json:"status"`
	Data   TipDTO `json:"data"`
}

type TipListResponse struct {
	Status string   `json:"status"`
	Data   []TipDTO `json:"data"`
}

// SettlementCallbackRequest is the logical shape of the payment provider's
// result callback. Unknown result strings are passed through and rejected by
// the boundary validation, never trusted.
type SettlementCallbackRequest struct {
	CorrelationID string   `json:"correlation_id"`
	Result        string   `json:"result_status"`
	SettledAmount *float64 `json:"settled_amount,omitempty"`
	ReceiptID     string   `json:"receipt_id,omitempty"`
}

// SettlementCallbackResponse is the fixed acknowledgement body; providers
// only look at the result code.
type SettlementCallbackResponse struct {
	ResultCode int    `json:"result_code"`
	ResultDesc string `json:"result_desc"`
}
