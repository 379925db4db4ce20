package errors

import "errors"

var (
	ErrInvalidMonth          = errors.New("month must be formatted as YYYY-MM")
	ErrInvalidPayoutInput    = errors.New("payout input is invalid")
	ErrPayoutsAlreadyExist   = errors.New("payouts already generated for this restaurant and month")
	ErrPayoutNotFound        = errors.New("payout not found")
	ErrPayoutExists          = errors.New("payout already exists for this recipient and month")
	ErrPayoutNotRetryable    = errors.New("only failed payouts can be reset for retry")
	ErrRecipientUnresolvable = errors.New("payout recipient has no usable disbursement destination")
	ErrRailRejected          = errors.New("disbursement rail rejected the submission")
)
