package domain

import (
	"context"
	"errors"
	"math/big"

	"github.com/holdpay/holdpay/internal/identity"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount         = errors.New("invalid_token_amount")
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
)

// Transferor moves token value between parties on behalf of the engine. The
// db argument lets settlement join the caller's transaction so a failed
// lifecycle write also rolls the transfer back; passing nil uses the
// ledger's own connection.
type Transferor interface {
	TransferFrom(ctx context.Context, db *gorm.DB, token, from, to identity.Identity, amount *big.Int) error
}

// Service is the full token ledger surface, including the administrative
// funding operations exposed over HTTP.
type Service interface {
	Transferor

	Mint(ctx context.Context, token, to identity.Identity, amount *big.Int) error
	Approve(ctx context.Context, token, owner, spender identity.Identity, amount *big.Int) error
	BalanceOf(ctx context.Context, token, holder identity.Identity) (*big.Int, error)
	AllowanceOf(ctx context.Context, token, owner, spender identity.Identity) (*big.Int, error)
}
