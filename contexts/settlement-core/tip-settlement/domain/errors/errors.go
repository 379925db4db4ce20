package errors

import "errors"

var (
	ErrInvalidTipInput        = errors.New("tip input is invalid")
	ErrTipNotFound            = errors.New("tip not found")
	ErrTipExists              = errors.New("tip with this correlation id already exists")
	ErrTipAlreadyTerminal     = errors.New("tip is already in a terminal state")
	ErrInvalidCallbackPayload = errors.New("settlement callback payload is invalid")
	ErrRestaurantNotFound     = errors.New("restaurant configuration not found")
)
