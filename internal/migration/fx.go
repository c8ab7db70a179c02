package migration

import (
	"context"

	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, clk clock.Clock) error {
		if err := Run(conn); err != nil {
			return err
		}
		return SeedTokens(context.Background(), conn, cfg.SeedTokens, clk)
	}),
)
