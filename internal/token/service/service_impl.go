package service

import (
	"context"
	"errors"
	"math/big"

	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/token/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	spender identity.Identity
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("token.service"),
		clock:   p.Clock,
		spender: identity.Identity(p.Cfg.SpenderID),
	}
}

func (s *Service) Mint(ctx context.Context, token, to identity.Identity, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := s.balance(ctx, tx, token, to)
		if err != nil {
			return err
		}
		return s.saveBalance(ctx, tx, token, to, new(big.Int).Add(balance, amount))
	})
}

func (s *Service) Approve(ctx context.Context, token, owner, spender identity.Identity, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	record := domain.Allowance{
		Token:     token.String(),
		Owner:     owner.String(),
		Spender:   spender.String(),
		Amount:    amount.String(),
		UpdatedAt: s.clock.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}, {Name: "owner"}, {Name: "spender"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&record).Error
}

func (s *Service) BalanceOf(ctx context.Context, token, holder identity.Identity) (*big.Int, error) {
	return s.balance(ctx, s.db, token, holder)
}

func (s *Service) AllowanceOf(ctx context.Context, token, owner, spender identity.Identity) (*big.Int, error) {
	return s.allowance(ctx, s.db, token, owner, spender)
}

// TransferFrom draws down the owner's allowance to the engine spender and
// moves amount from the owner to the recipient. Either every row changes or
// none does.
func (s *Service) TransferFrom(ctx context.Context, db *gorm.DB, token, from, to identity.Identity, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if db == nil {
		db = s.db
	}
	return db.Transaction(func(tx *gorm.DB) error {
		allowance, err := s.allowance(ctx, tx, token, from, s.spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}

		fromBalance, err := s.balance(ctx, tx, token, from)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return domain.ErrInsufficientBalance
		}

		toBalance, err := s.balance(ctx, tx, token, to)
		if err != nil {
			return err
		}

		if err := s.saveAllowance(ctx, tx, token, from, new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
		if err := s.saveBalance(ctx, tx, token, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		return s.saveBalance(ctx, tx, token, to, new(big.Int).Add(toBalance, amount))
	})
}

func (s *Service) balance(ctx context.Context, db *gorm.DB, token, holder identity.Identity) (*big.Int, error) {
	var record domain.Balance
	err := db.WithContext(ctx).
		Where("token = ? AND holder = ?", token.String(), holder.String()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(record.Amount)
}

func (s *Service) allowance(ctx context.Context, db *gorm.DB, token, owner, spender identity.Identity) (*big.Int, error) {
	var record domain.Allowance
	err := db.WithContext(ctx).
		Where("token = ? AND owner = ? AND spender = ?", token.String(), owner.String(), spender.String()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(record.Amount)
}

func (s *Service) saveBalance(ctx context.Context, db *gorm.DB, token, holder identity.Identity, amount *big.Int) error {
	record := domain.Balance{
		Token:     token.String(),
		Holder:    holder.String(),
		Amount:    amount.String(),
		UpdatedAt: s.clock.Now(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}, {Name: "holder"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&record).Error
}

func (s *Service) saveAllowance(ctx context.Context, db *gorm.DB, token, owner identity.Identity, amount *big.Int) error {
	record := domain.Allowance{
		Token:     token.String(),
		Owner:     owner.String(),
		Spender:   s.spender.String(),
		Amount:    amount.String(),
		UpdatedAt: s.clock.Now(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}, {Name: "owner"}, {Name: "spender"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&record).Error
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, domain.ErrInvalidAmount
	}
	return value, nil
}
