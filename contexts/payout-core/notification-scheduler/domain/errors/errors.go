package errors

import "errors"

var (
	ErrInvalidIntentInput = errors.New("notification intent input is invalid")
	ErrIntentExists       = errors.New("notification intent already recorded")
	ErrIntentNotFound     = errors.New("notification intent not found")
)
