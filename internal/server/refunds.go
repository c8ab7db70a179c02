package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/identity"
	refunddomain "github.com/holdpay/holdpay/internal/refund/domain"
	"github.com/holdpay/holdpay/pkg/pagination"
	"go.uber.org/zap"
)

const settlementLockTTL = 30 * time.Second

type requestRefundRequest struct {
	PaymentID uint64 `json:"payment_id"`
	Customer  string `json:"customer"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Reason    string `json:"reason"`
}

func (s *Server) RequestRefund(c *gin.Context) {
	var req requestRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := s.refundSvc.Request(c.Request.Context(), refunddomain.RequestRefundRequest{
		Merchant:  principal(c),
		PaymentID: req.PaymentID,
		Customer:  identity.Identity(strings.TrimSpace(req.Customer)),
		Amount:    amount,
		Token:     identity.Identity(strings.TrimSpace(req.Token)),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": id}})
}

func (s *Server) GetRefund(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	refund, err := s.refundSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) ApproveRefund(c *gin.Context) {
	s.transitionRefund(c, s.refundSvc.Approve)
}

func (s *Server) RejectRefund(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; an empty body is a bare rejection.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	s.transitionRefund(c, func(ctx context.Context, admin identity.Identity, id uint64) error {
		return s.refundSvc.Reject(ctx, admin, id, strings.TrimSpace(req.Reason))
	})
}

// ProcessRefund serializes settlement per refund with a best-effort redis
// lock; concurrent calls on another replica get a conflict instead of racing
// the transfer.
func (s *Server) ProcessRefund(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	lockKey := fmt.Sprintf("settlement/%d", id)
	token, ok, err := s.locker.TryLock(c.Request.Context(), lockKey, settlementLockTTL)
	if err != nil {
		s.log.Warn("settlement lock unavailable", zap.Error(err))
	} else if !ok {
		AbortWithError(c, ErrSettlementBusy)
		return
	}
	defer func() {
		if err := s.locker.Release(c.Request.Context(), lockKey, token); err != nil {
			s.log.Warn("settlement lock release failed", zap.Error(err))
		}
	}()

	if err := s.refundSvc.Process(c.Request.Context(), principal(c), id); err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	refund, err := s.refundSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) transitionRefund(c *gin.Context, transition func(ctx context.Context, admin identity.Identity, id uint64) error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := transition(c.Request.Context(), principal(c), id); err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	refund, err := s.refundSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refund})
}

func (s *Server) ListCustomerRefunds(c *gin.Context) {
	s.listRefunds(c, s.refundSvc.ListByCustomer)
}

func (s *Server) ListMerchantRefunds(c *gin.Context) {
	s.listRefunds(c, s.refundSvc.ListByMerchant)
}

func (s *Server) listRefunds(c *gin.Context, list func(ctx context.Context, party identity.Identity, page pagination.Page) ([]refunddomain.Refund, error)) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	party := identity.Identity(strings.TrimSpace(c.Param("id")))
	refunds, err := list(c.Request.Context(), party, page)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refunds})
}

func (s *Server) ListPaymentRefunds(c *gin.Context) {
	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	refunds, err := s.refundSvc.ListByPayment(c.Request.Context(), paymentID, page)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": refunds})
}

func (s *Server) CountCustomerRefunds(c *gin.Context) {
	s.countRefunds(c, s.refundSvc.CountByCustomer)
}

func (s *Server) CountMerchantRefunds(c *gin.Context) {
	s.countRefunds(c, s.refundSvc.CountByMerchant)
}

func (s *Server) CountPaymentRefunds(c *gin.Context) {
	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	total, err := s.refundSvc.CountByPayment(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": total}})
}

func (s *Server) countRefunds(c *gin.Context, count func(ctx context.Context, party identity.Identity) (uint64, error)) {
	party := identity.Identity(strings.TrimSpace(c.Param("id")))
	total, err := count(c.Request.Context(), party)
	if err != nil {
		AbortWithError(c, refundFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": total}})
}
