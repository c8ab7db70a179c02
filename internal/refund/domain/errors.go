package domain

import (
	"errors"

	"github.com/holdpay/holdpay/internal/guard"
)

var (
	ErrInvalidAmount    = errors.New("invalid_refund_amount")
	ErrRefundNotFound   = errors.New("refund_not_found")
	ErrInvalidPaymentID = errors.New("invalid_payment_id")
	ErrTransferFailed   = errors.New("transfer_failed")
	ErrNotApproved      = errors.New("not_approved")
	ErrInvalidStatus    = errors.New("invalid_refund_status")
	ErrAlreadyProcessed = errors.New("refund_already_processed")
)

// Code returns the stable numeric code for a refund error. Earlier revisions
// of the wire contract let InvalidStatus and AlreadyProcessed collide with
// TransferFailed and NotApproved; codes 7 and 8 keep every kind distinct.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return 1
	case errors.Is(err, ErrRefundNotFound):
		return 2
	case errors.Is(err, guard.ErrUnauthorized):
		return 3
	case errors.Is(err, ErrInvalidPaymentID):
		return 4
	case errors.Is(err, ErrTransferFailed):
		return 5
	case errors.Is(err, ErrNotApproved):
		return 6
	case errors.Is(err, ErrInvalidStatus):
		return 7
	case errors.Is(err, ErrAlreadyProcessed):
		return 8
	default:
		return 0
	}
}
