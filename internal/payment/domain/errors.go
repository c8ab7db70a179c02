package domain

import (
	"errors"

	"github.com/holdpay/holdpay/internal/guard"
)

var (
	ErrPaymentNotFound  = errors.New("payment_not_found")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrAlreadyProcessed = errors.New("already_processed")
	// ErrInvalidAmount is only returned when the payments.validateAmount
	// policy is on; by default creation accepts any amount.
	ErrInvalidAmount = errors.New("invalid_amount")
)

// Code returns the stable numeric code for a payment error. Codes 1-4 follow
// the original wire contract; 5 covers the optional amount validation.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return 1
	case errors.Is(err, ErrInvalidStatus):
		return 2
	case errors.Is(err, ErrAlreadyProcessed):
		return 3
	case errors.Is(err, guard.ErrUnauthorized):
		return 4
	case errors.Is(err, ErrInvalidAmount):
		return 5
	default:
		return 0
	}
}
