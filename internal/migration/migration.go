package migration

import (
	"context"
	"fmt"

	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/identity"
	outboxdomain "github.com/holdpay/holdpay/internal/outbox/domain"
	"github.com/holdpay/holdpay/internal/storage"
	tokendomain "github.com/holdpay/holdpay/internal/token/domain"
	"gorm.io/gorm"
)

// Run creates the engine's tables. The schema is small and additive, so
// AutoMigrate covers every supported dialect without per-dialect SQL files.
func Run(db *gorm.DB) error {
	err := db.AutoMigrate(
		&storage.Entry{},
		&outboxdomain.Event{},
		&tokendomain.Balance{},
		&tokendomain.Allowance{},
		&identity.APIToken{},
	)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SeedTokens installs bootstrap API tokens so the HTTP surface is usable
// before any out-of-band token provisioning.
func SeedTokens(ctx context.Context, db *gorm.DB, pairs string, clk clock.Clock) error {
	if pairs == "" {
		return nil
	}
	resolver := identity.NewResolver(db)
	return resolver.Seed(ctx, pairs, clk.Now())
}
