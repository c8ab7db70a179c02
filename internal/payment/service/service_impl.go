package service

import (
	"context"
	"math/big"
	"strconv"

	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	obsmetrics "github.com/holdpay/holdpay/internal/observability/metrics"
	"github.com/holdpay/holdpay/internal/outbox"
	outboxdomain "github.com/holdpay/holdpay/internal/outbox/domain"
	"github.com/holdpay/holdpay/internal/payment/domain"
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
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		clock:      p.Clock,
		policy:     p.Policy,
		guard:      p.Guard,
		outbox:     p.Outbox,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Create stores a new pending payment and indexes it for both parties.
// The customer must be the invoking principal.
func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (uint64, error) {
	if err := s.guard.RequireSelf(ctx, req.Customer); err != nil {
		return 0, s.fail(err)
	}

	amount := req.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	if s.policy.Get().Payments.ValidateAmount && amount.Sign() <= 0 {
		return 0, s.fail(domain.ErrInvalidAmount)
	}

	var id uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if id, err = s.repo.NextID(ctx, tx); err != nil {
			return err
		}
		payment := &domain.Payment{
			ID:        id,
			Customer:  req.Customer,
			Merchant:  req.Merchant,
			Amount:    amount,
			Token:     req.Token,
			Status:    domain.StatusPending,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		return s.repo.AppendIndexes(ctx, tx, payment)
	})
	if err != nil {
		return 0, s.fail(err)
	}

	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindPayment, "created")
	s.log.Info("payment created",
		zap.Uint64("payment_id", id),
		zap.String("customer", req.Customer.String()),
		zap.String("merchant", req.Merchant.String()),
	)
	return id, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (domain.Payment, error) {
	payment, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return *payment, nil
}

// Complete moves a pending payment to completed. Admin-gated.
func (s *Service) Complete(ctx context.Context, admin identity.Identity, id uint64) error {
	return s.settle(ctx, admin, id, domain.StatusCompleted)
}

// Refund moves a pending payment to refunded. Admin-gated.
func (s *Service) Refund(ctx context.Context, admin identity.Identity, id uint64) error {
	return s.settle(ctx, admin, id, domain.StatusRefunded)
}

// settle is the shared admin transition out of Pending. Re-running the same
// transition reports AlreadyProcessed; any other terminal state reports
// InvalidStatus.
func (s *Service) settle(ctx context.Context, admin identity.Identity, id uint64, target domain.PaymentStatus) error {
	if err := s.guard.RequireAdmin(ctx, admin); err != nil {
		return s.fail(err)
	}

	var evt outboxdomain.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.Exists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}

		payment, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}

		switch payment.Status {
		case domain.StatusPending:
			payment.Status = target
		case target:
			return domain.ErrAlreadyProcessed
		default:
			return domain.ErrInvalidStatus
		}

		if err := s.repo.Save(ctx, tx, payment); err != nil {
			return err
		}

		switch target {
		case domain.StatusCompleted:
			evt, err = s.outbox.Record(ctx, tx, domain.EventPaymentCompleted, outboxdomain.EntityKindPayment, id, domain.CompletedEvent{
				PaymentID: id,
				Merchant:  payment.Merchant,
				Amount:    payment.Amount,
			})
		case domain.StatusRefunded:
			evt, err = s.outbox.Record(ctx, tx, domain.EventPaymentRefunded, outboxdomain.EntityKindPayment, id, domain.RefundedEvent{
				PaymentID: id,
				Customer:  payment.Customer,
				Amount:    payment.Amount,
			})
		}
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	s.outbox.Publish(evt)
	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindPayment, string(target))
	s.log.Info("payment settled", zap.Uint64("payment_id", id), zap.String("status", string(target)))
	return nil
}

// Cancel moves a pending payment to cancelled. The caller must be the
// payment's customer or merchant.
func (s *Service) Cancel(ctx context.Context, caller identity.Identity, id uint64) error {
	if err := s.guard.RequireSelf(ctx, caller); err != nil {
		return s.fail(err)
	}

	var evt outboxdomain.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.Exists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}

		payment, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := s.guard.RequireParticipant(ctx, caller, payment.Customer, payment.Merchant); err != nil {
			return err
		}

		// Repeated cancellation is InvalidStatus, not AlreadyProcessed.
		if payment.Status != domain.StatusPending {
			return domain.ErrInvalidStatus
		}
		payment.Status = domain.StatusCancelled

		if err := s.repo.Save(ctx, tx, payment); err != nil {
			return err
		}

		evt, err = s.outbox.Record(ctx, tx, domain.EventPaymentCancelled, outboxdomain.EntityKindPayment, id, domain.CancelledEvent{
			PaymentID:   id,
			CancelledBy: caller,
			Timestamp:   s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	s.outbox.Publish(evt)
	s.obsMetrics.ObserveTransition(outboxdomain.EntityKindPayment, string(domain.StatusCancelled))
	s.log.Info("payment cancelled", zap.Uint64("payment_id", id), zap.String("cancelled_by", caller.String()))
	return nil
}

func (s *Service) ListByCustomer(ctx context.Context, customer identity.Identity, page pagination.Page) ([]domain.Payment, error) {
	page = page.Normalize(s.policy.Get().Pagination.MaxLimit)
	count, err := s.repo.CountByCustomer(ctx, s.db, customer)
	if err != nil {
		return nil, err
	}
	start, end := page.Window(count)
	return s.repo.ListByCustomer(ctx, s.db, customer, start, end)
}

func (s *Service) ListByMerchant(ctx context.Context, merchant identity.Identity, page pagination.Page) ([]domain.Payment, error) {
	page = page.Normalize(s.policy.Get().Pagination.MaxLimit)
	count, err := s.repo.CountByMerchant(ctx, s.db, merchant)
	if err != nil {
		return nil, err
	}
	start, end := page.Window(count)
	return s.repo.ListByMerchant(ctx, s.db, merchant, start, end)
}

func (s *Service) CountByCustomer(ctx context.Context, customer identity.Identity) (uint64, error) {
	return s.repo.CountByCustomer(ctx, s.db, customer)
}

func (s *Service) CountByMerchant(ctx context.Context, merchant identity.Identity) (uint64, error) {
	return s.repo.CountByMerchant(ctx, s.db, merchant)
}

func (s *Service) fail(err error) error {
	if code := domain.Code(err); code != 0 {
		s.obsMetrics.ObserveFailure(outboxdomain.EntityKindPayment, strconv.Itoa(code))
	}
	return err
}
