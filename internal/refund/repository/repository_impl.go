package repository

import (
	"context"
	"strconv"

	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/refund/domain"
	"github.com/holdpay/holdpay/internal/storage"
	"gorm.io/gorm"
)

var counterKey = storage.NewKey("refund_counter")

func recordKey(id uint64) storage.Key {
	return storage.NewKey("refund", strconv.FormatUint(id, 10))
}

func customerBucket(customer identity.Identity) storage.Key {
	return storage.NewKey("customer_refunds", customer.String())
}

func merchantBucket(merchant identity.Identity) storage.Key {
	return storage.NewKey("merchant_refunds", merchant.String())
}

func paymentBucket(paymentID uint64) storage.Key {
	return storage.NewKey("payment_refunds", strconv.FormatUint(paymentID, 10))
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NextID(ctx context.Context, db *gorm.DB) (uint64, error) {
	return storage.NextID(ctx, db, counterKey)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	return storage.Set(ctx, db, recordKey(refund.ID), refund)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id uint64) (*domain.Refund, error) {
	var refund domain.Refund
	ok, err := storage.Get(ctx, db, recordKey(id), &refund)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &refund, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	return storage.Set(ctx, db, recordKey(refund.ID), refund)
}

func (r *repo) AppendIndexes(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	if err := storage.IndexAppend(ctx, db, merchantBucket(refund.Merchant), refund.ID); err != nil {
		return err
	}
	if err := storage.IndexAppend(ctx, db, customerBucket(refund.Customer), refund.ID); err != nil {
		return err
	}
	return storage.IndexAppend(ctx, db, paymentBucket(refund.PaymentID), refund.ID)
}

func (r *repo) CountByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity) (uint64, error) {
	return storage.IndexCount(ctx, db, customerBucket(customer))
}

func (r *repo) CountByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity) (uint64, error) {
	return storage.IndexCount(ctx, db, merchantBucket(merchant))
}

func (r *repo) CountByPayment(ctx context.Context, db *gorm.DB, paymentID uint64) (uint64, error) {
	return storage.IndexCount(ctx, db, paymentBucket(paymentID))
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity, start, end uint64) ([]domain.Refund, error) {
	return r.list(ctx, db, customerBucket(customer), start, end)
}

func (r *repo) ListByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity, start, end uint64) ([]domain.Refund, error) {
	return r.list(ctx, db, merchantBucket(merchant), start, end)
}

func (r *repo) ListByPayment(ctx context.Context, db *gorm.DB, paymentID uint64, start, end uint64) ([]domain.Refund, error) {
	return r.list(ctx, db, paymentBucket(paymentID), start, end)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, bucket storage.Key, start, end uint64) ([]domain.Refund, error) {
	ids, err := storage.IndexSlice(ctx, db, bucket, start, end)
	if err != nil {
		return nil, err
	}
	refunds := make([]domain.Refund, 0, len(ids))
	for _, id := range ids {
		refund, err := r.Find(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if refund == nil {
			continue
		}
		refunds = append(refunds, *refund)
	}
	return refunds, nil
}
