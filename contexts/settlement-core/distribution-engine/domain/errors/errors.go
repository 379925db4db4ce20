package errors

import "errors"

var (
	ErrInvalidGroupInput   = errors.New("distribution group input is invalid")
	ErrPercentagesNotWhole = errors.New("distribution group percentages must sum to 100")
	ErrGroupNotFound       = errors.New("distribution group not found")
	ErrNoGroupsConfigured  = errors.New("restaurant has no distribution groups configured")
	ErrRecordExists        = errors.New("distribution record already exists for this tip and group")
	ErrInvalidBankAccount  = errors.New("bank account input is invalid")
	ErrBankAccountNotFound = errors.New("bank account not found")
	ErrTipNotDistributable = errors.New("tip is not eligible for distribution")
)
