package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GroupInputDTO struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

type ConfigureGroupsRequest struct {
	Groups []GroupInputDTO `json:"groups"`
}

type DistributionGroupDTO struct {
	GroupID       string  `json:"group_id"`
	RestaurantID  string  `json:"restaurant_id"`
	Name          string  `json:"name"`
	Percentage    float64 `json:"percentage"`
	BankAccountID *string `json:"bank_account_id,omitempty"`
}

type GroupListResponse struct {
	Status string                 `json:"status"`
	Data   []DistributionGroupDTO `json:"data"`
}

type DistributionRecordDTO struct {
	RecordID  string  `json:"record_id"`
	TipID     string  `json:"tip_id"`
	GroupName string  `json:"group_name"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type RecordListResponse struct {
	Status string                  `json:"status"`
	Data   []DistributionRecordDTO `json:"data"`
}

type LedgerGroupTotalDTO struct {
	GroupName string  `json:"group_name"`
	Amount    float64 `json:"amount"`
}

type LedgerTotalsResponse struct {
	Status string                `json:"status"`
	Data   []LedgerGroupTotalDTO `json:"data"`
}

type SaveBankAccountRequest struct {
	GroupName     string `json:"group_name"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

type BankAccountDTO struct {
	AccountID     string `json:"account_id"`
	RestaurantID  string `json:"restaurant_id"`
	GroupName     string `json:"group_name"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Verified      bool   `json:"verified"`
	Default       bool   `json:"default"`
}

type BankAccountResponse struct {
	Status string         `json:"status"`
	Data   BankAccountDTO `json:"data"`
}
