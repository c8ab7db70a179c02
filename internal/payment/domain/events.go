package domain

import (
	"math/big"
	"time"

	"github.com/holdpay/holdpay/internal/identity"
)

const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentRefunded  = "payment.refunded"
	EventPaymentCancelled = "payment.cancelled"
)

type CompletedEvent struct {
	PaymentID uint64            `json:"payment_id"`
	Merchant  identity.Identity `json:"merchant"`
	Amount    *big.Int          `json:"amount"`
}

type RefundedEvent struct {
	PaymentID uint64            `json:"payment_id"`
	Customer  identity.Identity `json:"customer"`
	Amount    *big.Int          `json:"amount"`
}

type CancelledEvent struct {
	PaymentID   uint64            `json:"payment_id"`
	CancelledBy identity.Identity `json:"cancelled_by"`
	Timestamp   time.Time         `json:"timestamp"`
}
