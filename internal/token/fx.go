package token

import (
	"github.com/holdpay/holdpay/internal/token/domain"
	"github.com/holdpay/holdpay/internal/token/service"
	"go.uber.org/fx"
)

var Module = fx.Module("token.ledger",
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Transferor { return s }),
)
