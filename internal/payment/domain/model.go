package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/pkg/pagination"
	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle state of a payment. Pending is the only
// state with outgoing transitions.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusRefunded  PaymentStatus = "refunded"
	StatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusCancelled
}

// Payment is immutable once created, except for its status. Amounts are
// 128-bit in the wire contract and accepted as given at creation.
type Payment struct {
	ID        uint64            `json:"id"`
	Customer  identity.Identity `json:"customer"`
	Merchant  identity.Identity `json:"merchant"`
	Amount    *big.Int          `json:"amount"`
	Token     identity.Identity `json:"token"`
	Status    PaymentStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

type CreatePaymentRequest struct {
	Customer identity.Identity
	Merchant identity.Identity
	Amount   *big.Int
	Token    identity.Identity
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (uint64, error)
	Get(ctx context.Context, id uint64) (Payment, error)
	Complete(ctx context.Context, admin identity.Identity, id uint64) error
	Refund(ctx context.Context, admin identity.Identity, id uint64) error
	Cancel(ctx context.Context, caller identity.Identity, id uint64) error
	ListByCustomer(ctx context.Context, customer identity.Identity, page pagination.Page) ([]Payment, error)
	ListByMerchant(ctx context.Context, merchant identity.Identity, page pagination.Page) ([]Payment, error)
	CountByCustomer(ctx context.Context, customer identity.Identity) (uint64, error)
	CountByMerchant(ctx context.Context, merchant identity.Identity) (uint64, error)
}

type Repository interface {
	NextID(ctx context.Context, db *gorm.DB) (uint64, error)
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Find(ctx context.Context, db *gorm.DB, id uint64) (*Payment, error)
	Exists(ctx context.Context, db *gorm.DB, id uint64) (bool, error)
	Save(ctx context.Context, db *gorm.DB, payment *Payment) error
	AppendIndexes(ctx context.Context, db *gorm.DB, payment *Payment) error
	CountByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity) (uint64, error)
	CountByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity) (uint64, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity, start, end uint64) ([]Payment, error)
	ListByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity, start, end uint64) ([]Payment, error)
}
