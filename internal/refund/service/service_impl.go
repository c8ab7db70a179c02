package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	obsmetrics "github.com/holdpay/holdpay/internal/observability/metrics"
	"github.com/holdpay/holdpay/internal/outbox"
	outboxdomain "github.com/holdpay/holdpay/internal/outbox/domain"
	"github.com/holdpay/holdpay/internal/refund/domain"
	tokendomain "github.com/holdpay/holdpay/internal/token/domain"
	"github.com/holdpay/holdpay/pkg/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Guard      *guard.Guard
	Outbox     *outbox.Emitter
	Transferor tokendomain.Transferor
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	policy     *config.PolicyHolder
	guard      *guard.Guard
	outbox     *outbox.Emitter
	transferor tokendomain.Transferor
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("refund.service"),
		clock:      p.Clock,
		policy:     p.Policy,
		guard:      p.Guard,
		outbox:     p.Outbox,
		transferor: p.Transferor,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Request stores a new refund in Requested state and indexes it for the
// merchant, the customer, and the referenced payment. The merchant must be
// the invoking principal. The payment reference is not resolved here; the
// admin vets it before approval.
func (s *Service) Request(ctx context.Context, req domain.RequestRefundRequest) (uint64, error) {
	if err := s.guard.RequireSelf(ctx, req.Merchant); err != nil {
		return 0, s.fail(err)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return 0, s.fail(domain.ErrInvalidAmount)
	}
	if req.PaymentID == 0 {
		return 0, s.fail(domain.ErrInvalidPaymentID)
	}

	var (
		id  uint64
		evt outboxdomain.Event
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if id, err = s.repo.NextID(ctx, tx); err != nil {
			return err
		}
		refund := &domain.Refund{
			ID:          id,
			PaymentID:   req.PaymentID,
			Merchant:    req.Merchant,
			Customer:    req.Customer,
			Amount:      req.Amount,
			Token:       req.Token,
			Status:      domain.StatusRequested,
			RequestedAt: s.clock.Now(),
			Reason:      req.Reason,
		}
		if err := s.repo.Insert(ctx, tx, refund); err != nil {
			return err
		}
		if err := s.repo.AppendIndexes(ctx, tx, refund); err != nil {
			return err
		}
		evt, err = s.outbox.Record(ctx, tx, domain.EventRefundRequested, outboxdomain.EntityKindRefund, id, domain.RequestedEvent{
			RefundID:  id,
			PaymentID: req.PaymentID,
			Merchant:  req.Merchant,
			Customer:  req.Customer,
			Amount:    req.Amount,
			Token:     req.Token,
		})
		return err
	})
	if err != nil {
		return 0, s.fail(err)
	}

	s.outbox.Publish(evt)
	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindRefund, "requested")
	s.log.Info("refund requested",
		zap.Uint64("refund_id", id),
		zap.Uint64("payment_id", req.PaymentID),
		zap.String("merchant", req.Merchant.String()),
	)
	return id, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (domain.Refund, error) {
	refund, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return domain.Refund{}, err
	}
	if refund == nil {
		return domain.Refund{}, domain.ErrRefundNotFound
	}
	return *refund, nil
}

// Approve moves a requested refund to Approved. Admin-gated.
func (s *Service) Approve(ctx context.Context, admin identity.Identity, id uint64) error {
	return s.review(ctx, admin, id, domain.StatusApproved, "")
}

// Reject moves a requested refund to Rejected, recording the reason.
// Admin-gated.
func (s *Service) Reject(ctx context.Context, admin identity.Identity, id uint64, reason string) error {
	return s.review(ctx, admin, id, domain.StatusRejected, reason)
}

func (s *Service) review(ctx context.Context, admin identity.Identity, id uint64, target domain.RefundStatus, reason string) error {
	if err := s.guard.RequireAdmin(ctx, admin); err != nil {
		return s.fail(err)
	}

	var evt outboxdomain.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		refund, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}
		if refund == nil {
			return domain.ErrRefundNotFound
		}
		if refund.Status != domain.StatusRequested {
			return domain.ErrInvalidStatus
		}
		refund.Status = target

		if err := s.repo.Save(ctx, tx, refund); err != nil {
			return err
		}

		now := s.clock.Now()
		switch target {
		case domain.StatusApproved:
			evt, err = s.outbox.Record(ctx, tx, domain.EventRefundApproved, outboxdomain.EntityKindRefund, id, domain.ApprovedEvent{
				RefundID:   id,
				ApprovedBy: admin,
				ApprovedAt: now,
			})
		case domain.StatusRejected:
			evt, err = s.outbox.Record(ctx, tx, domain.EventRefundRejected, outboxdomain.EntityKindRefund, id, domain.RejectedEvent{
				RefundID:   id,
				RejectedBy: admin,
				RejectedAt: now,
				Reason:     reason,
			})
		}
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	s.outbox.Publish(evt)
	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindRefund, string(target))
	s.log.Info("refund reviewed", zap.Uint64("refund_id", id), zap.String("status", string(target)))
	return nil
}

// Process settles an approved refund: the engine draws the merchant's
// allowance to move the amount to the customer, then marks the refund
// Processed. A failed transfer aborts the whole transaction and leaves the
// refund Approved, so processing can be retried once the allowance or
// balance is fixed.
func (s *Service) Process(ctx context.Context, admin identity.Identity, id uint64) error {
	if err := s.guard.RequireAdmin(ctx, admin); err != nil {
		return s.fail(err)
	}

	var evt outboxdomain.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		refund, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}
		if refund == nil {
			return domain.ErrRefundNotFound
		}
		if refund.Status != domain.StatusApproved {
			return domain.ErrNotApproved
		}

		if err := s.transferor.TransferFrom(ctx, tx, refund.Token, refund.Merchant, refund.Customer, refund.Amount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}

		refund.Status = domain.StatusProcessed
		if err := s.repo.Save(ctx, tx, refund); err != nil {
			return err
		}

		evt, err = s.outbox.Record(ctx, tx, domain.EventRefundProcessed, outboxdomain.EntityKindRefund, id, domain.ProcessedEvent{
			RefundID:    id,
			ProcessedBy: admin,
			Customer:    refund.Customer,
			Amount:      refund.Amount,
			Token:       refund.Token,
			ProcessedAt: s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	s.outbox.Publish(evt)
	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindRefund, string(domain.StatusProcessed))
	s.log.Info("refund processed", zap.Uint64("refund_id", id))
	return nil
}

func (s *Service) ListByCustomer(ctx context.Context, customer identity.Identity, page pagination.Page) ([]domain.Refund, error) {
	page = page.Normalize(s.policy.Get().Pagination.MaxLimit)
	count, err := s.repo.CountByCustomer(ctx, s.db, customer)
	if err != nil {
		return nil, err
	}
	start, end := page.Window(count)
	return s.repo.ListByCustomer(ctx, s.db, customer, start, end)
}

func (s *Service) ListByMerchant(ctx context.Context, merchant identity.Identity, page pagination.Page) ([]domain.Refund, error) {
	page = page.Normalize(s.policy.Get().Pagination.MaxLimit)
	count, err := s.repo.CountByMerchant(ctx, s.db, merchant)
	if err != nil {
		return nil, err
	}
	start, end := page.Window(count)
	return s.repo.ListByMerchant(ctx, s.db, merchant, start, end)
}

func (s *Service) ListByPayment(ctx context.Context, paymentID uint64, page pagination.Page) ([]domain.Refund, error) {
	page = page.Normalize(s.policy.Get().Pagination.MaxLimit)
	count, err := s.repo.CountByPayment(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	start, end := page.Window(count)
	return s.repo.ListByPayment(ctx, s.db, paymentID, start, end)
}

func (s *Service) CountByCustomer(ctx context.Context, customer identity.Identity) (uint64, error) {
	return s.repo.CountByCustomer(ctx, s.db, customer)
}

func (s *Service) CountByMerchant(ctx context.Context, merchant identity.Identity) (uint64, error) {
	return s.repo.CountByMerchant(ctx, s.db, merchant)
}

func (s *Service) CountByPayment(ctx context.Context, paymentID uint64) (uint64, error) {
	return s.repo.CountByPayment(ctx, s.db, paymentID)
}

func (s *Service) fail(err error) error {
	if code := domain.Code(err); code != 0 {
		s.obsMetrics.ObserveFailure(outboxdomain.EntityKindRefund, strconv.Itoa(code))
	}
	return err
}
