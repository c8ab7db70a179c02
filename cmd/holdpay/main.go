package main

import (
	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/migration"
	obsmetrics "github.com/holdpay/holdpay/internal/observability/metrics"
	"github.com/holdpay/holdpay/internal/outbox"
	"github.com/holdpay/holdpay/internal/payment"
	"github.com/holdpay/holdpay/internal/ratelimit"
	"github.com/holdpay/holdpay/internal/refund"
	"github.com/holdpay/holdpay/internal/server"
	"github.com/holdpay/holdpay/internal/token"
	"github.com/holdpay/holdpay/pkg/db"
	"github.com/holdpay/holdpay/pkg/log"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		log.Module,
		db.Module,
		clock.Module,
		migration.Module,
		identity.Module,
		guard.Module,
		outbox.Module,
		obsmetrics.Module,
		token.Module,
		payment.Module,
		refund.Module,
		ratelimit.Module,
		server.Module,
	).Run()
}
