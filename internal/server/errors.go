package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/namevault/namevault/internal/customer/domain"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/domains/guard"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	processordomain "github.com/namevault/namevault/internal/processor/domain"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	subscriptiondomain "github.com/namevault/namevault/internal/subscription/domain"
	transferdomain "github.com/namevault/namevault/internal/transfer/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

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
		c.Header("Content-Type", "application/json")
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
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, transferdomain.ErrNotOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, processordomain.ErrUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "processor_unavailable",
			Message: "payment processor unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, domainsdomain.ErrInvalidFQDN),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, orderdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, processordomain.ErrRejected):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, domainsdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, transferdomain.ErrNotFound),
		errors.Is(err, recondomain.ErrRunNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, domainsdomain.ErrInvalidTransition),
		errors.Is(err, domainsdomain.ErrDomainExists),
		errors.Is(err, guard.ErrNotForward),
		errors.Is(err, guard.ErrTerminalStatus),
		errors.Is(err, guard.ErrHoldRequired),
		errors.Is(err, transferdomain.ErrNotTransferable),
		errors.Is(err, transferdomain.ErrTransferLocked),
		errors.Is(err, transferdomain.ErrTransferExists),
		errors.Is(err, transferdomain.ErrSameOwner),
		errors.Is(err, transferdomain.ErrInvalidState):
		return true
	default:
		return false
	}
}
