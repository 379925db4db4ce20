package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GeneratePayoutsRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Month        string `json:"month"`
	Preview      bool   `json:"preview,omitempty"`
}

type PlanItemDTO struct {
	Recipient    string  `json:"recipient"`
	RecipientKey string  `json:"recipient_key"`
	TotalTips    float64 `json:"total_tips"`
	Commission   float64 `json:"commission_amount"`
	Amount       float64 `json:"amount"`
	TipCount     int     `json:"tip_count"`
	MeetsMinimum bool    `json:"meets_minimum"`
}

type GenerateItemDTO struct {
	Recipient    string  `json:"recipient"`
	RecipientKey string  `json:"recipient_key"`
	Amount       float64 `json:"amount"`
	Status       string  `json:"status"`
	PayoutID     string  `json:"payout_id,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type GeneratePayoutsResponse struct {
	Status string             `json:"status"`
	Data   GeneratePayoutsDTO `json:"data"`
}

type GeneratePayoutsDTO struct {
	RestaurantID string            `json:"restaurant_id"`
	Month        string            `json:"month"`
	Preview      bool              `json:"preview"`
	Plan         []PlanItemDTO     `json:"plan"`
	Items        []GenerateItemDTO `json:"items,omitempty"`
	CreatedCount int               `json:"created_count"`
	FailedCount  int               `json:"failed_count"`
	TotalAmount  float64           `json:"total_amount"`
}

type ProcessPayoutsRequest struct {
	RestaurantID string   `json:"restaurant_id,omitempty"`
	PayoutIDs    []string `json:"payout_ids,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
	Action       string   `json:"action,omitempty"`
}

type BatchItemDTO struct {
	PayoutID       string  `json:"payout_id"`
	Recipient      string  `json:"recipient"`
	RecipientKey   string  `json:"recipient_key"`
	Rail           string  `json:"rail,omitempty"`
	Amount         float64 `json:"amount"`
	Status         string  `json:"status"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type ProcessPayoutsResponse struct {
	Status string            `json:"status"`
	Data   ProcessPayoutsDTO `json:"data"`
}

type ProcessPayoutsDTO struct {
	DryRun         bool           `json:"dry_run"`
	SubmittedCount int            `json:"submitted_count"`
	FailedCount    int            `json:"failed_count"`
	SkippedCount   int            `json:"skipped_count"`
	TotalAmount    float64        `json:"total_amount"`
	Items          []BatchItemDTO `json:"items"`
}

type PayoutDTO struct {
	PayoutID       string  `json:"payout_id"`
	RestaurantID   string  `json:"restaurant_id"`
	Recipient      string  `json:"recipient"`
	WaiterID       string  `json:"waiter_id,omitempty"`
	GroupName      string  `json:"group_name,omitempty"`
	Month          string  `json:"month"`
	TotalTips      float64 `json:"total_tips"`
	Commission     float64 `json:"commission_amount"`
	Amount         float64 `json:"amount"`
	TipCount       int     `json:"tip_count"`
	Status         string  `json:"status"`
	ConversationID string  `json:"conversation_id,omitempty"`
	TransactionRef string  `json:"transaction_ref,omitempty"`
	FailureCode    string  `json:"failure_code,omitempty"`
	FailureReason  string  `json:"failure_reason,omitempty"`
	ProcessedAt    string  `json:"processed_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type PayoutListResponse struct {
	Status string      `json:"status"`
	Data   []PayoutDTO `json:"data"`
}

// MobileMoneyCallbackRequest is the logical shape of the bulk payment
// provider's asynchronous result.
type MobileMoneyCallbackRequest struct {
	ConversationID string `json:"conversation_id"`
	ResultCode     int    `json:"result_code"`
	ResultDesc     string `json:"result_desc,omitempty"`
	ReceiptID      string `json:"receipt_id,omitempty"`
}

// BankTransferCallbackRequest is the bank transfer provider's status
// notification, correlated by the transfer id returned at submission.
type BankTransferCallbackRequest struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	ProviderID string `json:"provider_transfer_id,omitempty"`
}

// RailCallbackResponse is the fixed acknowledgement body for rail
// callbacks.
type RailCallbackResponse struct {
	ResultCode int    `json:"result_code"`
	ResultDesc string `json:"result_desc"`
}
