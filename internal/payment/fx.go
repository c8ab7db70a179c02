package payment

import (
	"github.com/holdpay/holdpay/internal/payment/repository"
	"github.com/holdpay/holdpay/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
