package repository

import (
	"context"
	"strconv"

	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/payment/domain"
	"github.com/holdpay/holdpay/internal/storage"
	"gorm.io/gorm"
)

// Storage keys mirror the original contract layout: one record per payment,
// a single allocation counter, and per-customer/per-merchant index buckets.
var counterKey = storage.NewKey("payment_counter")

func recordKey(id uint64) storage.Key {
	return storage.NewKey("payment", strconv.FormatUint(id, 10))
}

func customerBucket(customer identity.Identity) storage.Key {
	return storage.NewKey("customer_payments", customer.String())
}

func merchantBucket(merchant identity.Identity) storage.Key {
	return storage.NewKey("merchant_payments", merchant.String())
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NextID(ctx context.Context, db *gorm.DB) (uint64, error) {
	return storage.NextID(ctx, db, counterKey)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return storage.Set(ctx, db, recordKey(payment.ID), payment)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id uint64) (*domain.Payment, error) {
	var payment domain.Payment
	ok, err := storage.Get(ctx, db, recordKey(id), &payment)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, id uint64) (bool, error) {
	return storage.Has(ctx, db, recordKey(id))
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return storage.Set(ctx, db, recordKey(payment.ID), payment)
}

func (r *repo) AppendIndexes(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	if err := storage.IndexAppend(ctx, db, customerBucket(payment.Customer), payment.ID); err != nil {
		return err
	}
	return storage.IndexAppend(ctx, db, merchantBucket(payment.Merchant), payment.ID)
}

func (r *repo) CountByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity) (uint64, error) {
	return storage.IndexCount(ctx, db, customerBucket(customer))
}

func (r *repo) CountByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity) (uint64, error) {
	return storage.IndexCount(ctx, db, merchantBucket(merchant))
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customer identity.Identity, start, end uint64) ([]domain.Payment, error) {
	return r.list(ctx, db, customerBucket(customer), start, end)
}

func (r *repo) ListByMerchant(ctx context.Context, db *gorm.DB, merchant identity.Identity, start, end uint64) ([]domain.Payment, error) {
	return r.list(ctx, db, merchantBucket(merchant), start, end)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, bucket storage.Key, start, end uint64) ([]domain.Payment, error) {
	ids, err := storage.IndexSlice(ctx, db, bucket, start, end)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		payment, err := r.Find(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			continue
		}
		payments = append(payments, *payment)
	}
	return payments, nil
}
