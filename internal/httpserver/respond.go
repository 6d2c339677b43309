package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

// respondError maps domain errors to HTTP statuses. Reconciliation failures
// get their own shape: the payment went through, so the client must never
// read the response as a plain failure.
func (h *handlers) respondError(c *gin.Context, err error) {
	var rerr *domain.ReconciliationError
	if errors.As(err, &rerr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           "payment received but order could not be finalized; support has been notified",
			"paymentCaptured": true,
			"gatewayOrderId":  rerr.GatewayOrderID,
		})
		return
	}

	var cerr *domain.CouponError
	if errors.As(err, &cerr) {
		status := http.StatusBadRequest
		if cerr.Reason == domain.CouponNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": cerr.Error(), "code": cerr.Code, "reason": string(cerr.Reason)})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDraftExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrAddressMissing),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrSignatureInvalid),
		errors.Is(err, domain.ErrReturnWindowClosed):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Printf("internal error: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
