package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	obsmetrics "github.com/holdpay/holdpay/internal/observability/metrics"
	paymentdomain "github.com/holdpay/holdpay/internal/payment/domain"
	"github.com/holdpay/holdpay/internal/ratelimit"
	refunddomain "github.com/holdpay/holdpay/internal/refund/domain"
	tokendomain "github.com/holdpay/holdpay/internal/token/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	resolver   *identity.Resolver
	guard      *guard.Guard
	paymentSvc paymentdomain.Service
	refundSvc  refunddomain.Service
	tokenSvc   tokendomain.Service
	limiter    *ratelimit.TokenBucket
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Resolver   *identity.Resolver
	Guard      *guard.Guard
	PaymentSvc paymentdomain.Service
	RefundSvc  refunddomain.Service
	TokenSvc   tokendomain.Service
	Limiter    *ratelimit.TokenBucket `optional:"true"`
	Locker     *ratelimit.Locker      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		resolver:   p.Resolver,
		guard:      p.Guard,
		paymentSvc: p.PaymentSvc,
		refundSvc:  p.RefundSvc,
		tokenSvc:   p.TokenSvc,
		limiter:    p.Limiter,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}

	s.registerRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1", s.Identity())

	// -------- Payments --------
	v1.POST("/payments", s.AuthRequired(), s.RateLimit(), s.CreatePayment)
	v1.GET("/payments/:id", s.GetPayment)
	v1.POST("/payments/:id/complete", s.AuthRequired(), s.RateLimit(), s.CompletePayment)
	v1.POST("/payments/:id/refund", s.AuthRequired(), s.RateLimit(), s.RefundPayment)
	v1.POST("/payments/:id/cancel", s.AuthRequired(), s.RateLimit(), s.CancelPayment)

	v1.GET("/customers/:id/payments", s.ListCustomerPayments)
	v1.GET("/customers/:id/payments/count", s.CountCustomerPayments)
	v1.GET("/merchants/:id/payments", s.ListMerchantPayments)
	v1.GET("/merchants/:id/payments/count", s.CountMerchantPayments)

	// -------- Refunds --------
	v1.POST("/refunds", s.AuthRequired(), s.RateLimit(), s.RequestRefund)
	v1.GET("/refunds/:id", s.GetRefund)
	v1.POST("/refunds/:id/approve", s.AuthRequired(), s.RateLimit(), s.ApproveRefund)
	v1.POST("/refunds/:id/reject", s.AuthRequired(), s.RateLimit(), s.RejectRefund)
	v1.POST("/refunds/:id/process", s.AuthRequired(), s.RateLimit(), s.ProcessRefund)

	v1.GET("/customers/:id/refunds", s.ListCustomerRefunds)
	v1.GET("/customers/:id/refunds/count", s.CountCustomerRefunds)
	v1.GET("/merchants/:id/refunds", s.ListMerchantRefunds)
	v1.GET("/merchants/:id/refunds/count", s.CountMerchantRefunds)
	v1.GET("/payments/:id/refunds", s.ListPaymentRefunds)
	v1.GET("/payments/:id/refunds/count", s.CountPaymentRefunds)

	// -------- Token ledger --------
	v1.POST("/tokens/mint", s.AuthRequired(), s.RateLimit(), s.MintTokens)
	v1.POST("/tokens/approve", s.AuthRequired(), s.RateLimit(), s.ApproveAllowance)
	v1.GET("/tokens/:token/balances/:holder", s.GetBalance)
	v1.GET("/tokens/:token/allowances/:owner", s.GetAllowance)

	// -------- Admin --------
	v1.POST("/admin/initialize", s.AuthRequired(), s.RateLimit(), s.InitializeAdmin)
	v1.GET("/admin", s.GetAdmin)
}
