package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/identity"
	paymentdomain "github.com/holdpay/holdpay/internal/payment/domain"
	"github.com/holdpay/holdpay/pkg/pagination"
)

type createPaymentRequest struct {
	Customer string `json:"customer"`
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Token    string `json:"token"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := s.paymentSvc.Create(c.Request.Context(), paymentdomain.CreatePaymentRequest{
		Customer: identity.Identity(strings.TrimSpace(req.Customer)),
		Merchant: identity.Identity(strings.TrimSpace(req.Merchant)),
		Amount:   amount,
		Token:    identity.Identity(strings.TrimSpace(req.Token)),
	})
	if err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": id}})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) CompletePayment(c *gin.Context) {
	s.transitionPayment(c, s.paymentSvc.Complete)
}

func (s *Server) RefundPayment(c *gin.Context) {
	s.transitionPayment(c, s.paymentSvc.Refund)
}

func (s *Server) CancelPayment(c *gin.Context) {
	s.transitionPayment(c, s.paymentSvc.Cancel)
}

func (s *Server) transitionPayment(c *gin.Context, transition func(ctx context.Context, caller identity.Identity, id uint64) error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := transition(c.Request.Context(), principal(c), id); err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ListCustomerPayments(c *gin.Context) {
	s.listPayments(c, s.paymentSvc.ListByCustomer)
}

func (s *Server) ListMerchantPayments(c *gin.Context) {
	s.listPayments(c, s.paymentSvc.ListByMerchant)
}

func (s *Server) listPayments(c *gin.Context, list func(ctx context.Context, party identity.Identity, page pagination.Page) ([]paymentdomain.Payment, error)) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	party := identity.Identity(strings.TrimSpace(c.Param("id")))
	payments, err := list(c.Request.Context(), party, page)
	if err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) CountCustomerPayments(c *gin.Context) {
	s.countPayments(c, s.paymentSvc.CountByCustomer)
}

func (s *Server) CountMerchantPayments(c *gin.Context) {
	s.countPayments(c, s.paymentSvc.CountByMerchant)
}

func (s *Server) countPayments(c *gin.Context, count func(ctx context.Context, party identity.Identity) (uint64, error)) {
	party := identity.Identity(strings.TrimSpace(c.Param("id")))
	total, err := count(c.Request.Context(), party)
	if err != nil {
		AbortWithError(c, paymentFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": total}})
}
