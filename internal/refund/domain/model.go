package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/pkg/pagination"
	"gorm.io/gorm"
)

// RefundStatus is the lifecycle state of a refund. Requested may become
// Approved or Rejected; Approved may become Processed; Rejected and
// Processed are terminal.
type RefundStatus string

const (
	StatusRequested RefundStatus = "requested"
	StatusApproved  RefundStatus = "approved"
	StatusRejected  RefundStatus = "rejected"
	StatusProcessed RefundStatus = "processed"
)

func (s RefundStatus) Terminal() bool {
	return s == StatusRejected || s == StatusProcessed
}

// Refund is immutable once created, except for its status. The referenced
// payment is not cross-checked at request time; the admin vets it at
// approval.
type Refund struct {
	ID          uint64            `json:"id"`
	PaymentID   uint64            `json:"payment_id"`
	Merchant    identity.Identity `json:"merchant"`
	Customer    identity.Identity `json:"customer"`
	Amount      *big.Int          `json:"amount"`
	Token       identity.Identity `json:"token"`
	Status      RefundStatus      `json:"status"`
	RequestedAt time.Time         `json:"requested_at"`
	Reason      string            `json:"reason"`
}

type RequestRefundRequest struct {
	Merchant  identity.Identity
	PaymentID uint64
	Customer  identity.Identity
	Amount    *big.Int
	Token     identity.Identity
	Reason    string
}

type Service interface {
	Request(ctx context.Context, req RequestRefundRequest) (uint64, error)
	Get(ctx context.Context, id uint64) (Refund, error)
	Approve(ctx context.Context, admin identity.Identity, id uint64) error
	Reject(ctx context.Context, admin identity.Identity, id uint64, reason string) error
	Process(ctx context.Context, admin identity.Identity, id uint64) error
	ListByCustomer(ctx context.Context, customer identity.Identity, page pagination.Page) ([]Refund, error)
	ListByMerchant(ctx context.Context, merchant identity.Identity, page pagination.Page) ([]Refund, error)
	ListByPayment(ctx context.Context, paymentID uint64, page pagination.Page) ([]Refund, error)
	CountByCustomer(ctx context.Context, customer identity.Identity) (uint64, error)
	CountByMerchant(ctx context.Context, merchant identity.Identity) (uint64, error)
	CountByPayment(ctx context.Context, paymentID uint64) (uint64, error)
}

type Repository interface {
	NextID(ctx context.Context, db *gorm.DB) (uint64, error)
	Insert(ctx context.Context, db *gorm.DB, refund *Refund) error
	Find(ctx context.Context, db *gorm.DB, id uint64) (*Refund, error)
	Save(ctx context.Context, db *gorm.DB, refund *Refund) error
	AppendIndexes(ctx context.Context, db *gorm.DB, refund *Refund) error
	CountByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity) (uint64, error)
	CountByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity) (uint64, error)
	CountByPayment(ctx context.Context, db *gorm.DB, paymentID uint64) (uint64, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity, start, end uint64) ([]Refund, error)
	ListByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity, start, end uint64) ([]Refund, error)
	ListByPayment(ctx context.Context, db *gorm.DB, paymentID uint64, start, end uint64) ([]Refund, error)
}
