package domain

import (
	"math/big"
	"time"

	"github.com/holdpay/holdpay/internal/identity"
)

const (
	EventRefundRequested = "refund.requested"
	EventRefundApproved  = "refund.approved"
	EventRefundRejected  = "refund.rejected"
	EventRefundProcessed = "refund.processed"
)

type RequestedEvent struct {
	RefundID  uint64            `json:"refund_id"`
	PaymentID uint64            `json:"payment_id"`
	Merchant  identity.Identity `json:"merchant"`
	Customer  identity.Identity `json:"customer"`
	Amount    *big.Int          `json:"amount"`
	Token     identity.Identity `json:"token"`
}

type ApprovedEvent struct {
	RefundID   uint64            `json:"refund_id"`
	ApprovedBy identity.Identity `json:"approved_by"`
	ApprovedAt time.Time         `json:"approved_at"`
}

type RejectedEvent struct {
	RefundID   uint64            `json:"refund_id"`
	RejectedBy identity.Identity `json:"rejected_by"`
	RejectedAt time.Time         `json:"rejected_at"`
	Reason     string            `json:"rejection_reason"`
}

type ProcessedEvent struct {
	RefundID    uint64            `json:"refund_id"`
	ProcessedBy identity.Identity `json:"processed_by"`
	Customer    identity.Identity `json:"customer"`
	Amount      *big.Int          `json:"amount"`
	Token       identity.Identity `json:"token"`
	ProcessedAt time.Time         `json:"processed_at"`
}
