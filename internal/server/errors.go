package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	paymentdomain "github.com/holdpay/holdpay/internal/payment/domain"
	refunddomain "github.com/holdpay/holdpay/internal/refund/domain"
	tokendomain "github.com/holdpay/holdpay/internal/token/domain"
	"gorm.io/gorm"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrSettlementBusy = errors.New("settlement_in_progress")
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// domainError carries the stable numeric code of the owning state machine.
// Payments and refunds number their taxonomies independently, so the handler
// that saw the failure attaches the right code.
type domainError struct {
	err  error
	code int
}

func (e *domainError) Error() string { return e.err.Error() }
func (e *domainError) Unwrap() error { return e.err }

func paymentFailure(err error) error {
	if err == nil {
		return nil
	}
	return &domainError{err: err, code: paymentdomain.Code(err)}
}

func refundFailure(err error) error {
	if err == nil {
		return nil
	}
	return &domainError{err: err, code: refunddomain.Code(err)}
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	payload := errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}

	var dErr *domainError
	if errors.As(err, &dErr) {
		payload.Code = dErr.code
	}

	status := statusFor(err)
	if status != http.StatusInternalServerError {
		payload.Type = errorType(err)
		payload.Message = payload.Type
	}

	return status, payload
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, guard.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, refunddomain.ErrRefundNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, refunddomain.ErrInvalidAmount),
		errors.Is(err, refunddomain.ErrInvalidPaymentID),
		errors.Is(err, tokendomain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrAlreadyProcessed),
		errors.Is(err, refunddomain.ErrInvalidStatus),
		errors.Is(err, refunddomain.ErrAlreadyProcessed),
		errors.Is(err, refunddomain.ErrNotApproved),
		errors.Is(err, guard.ErrAlreadyInitialized),
		errors.Is(err, ErrSettlementBusy):
		return http.StatusConflict
	case errors.Is(err, refunddomain.ErrTransferFailed),
		errors.Is(err, tokendomain.ErrInsufficientBalance),
		errors.Is(err, tokendomain.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorType surfaces the sentinel text, peeling the code wrapper first.
func errorType(err error) string {
	var dErr *domainError
	if errors.As(err, &dErr) {
		err = dErr.err
	}
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
