package refund

import (
	"github.com/holdpay/holdpay/internal/refund/repository"
	"github.com/holdpay/holdpay/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
