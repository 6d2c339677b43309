package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutsvc "storefront/internal/service/checkout"
)

func (h *handlers) paymentCallback(c *gin.Context) {
	var in checkoutsvc.CallbackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.deps.Checkout.HandleCallback(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) paymentFailure(c *gin.Context) {
	var in checkoutsvc.FailureInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Checkout.RecordFailure(c.Request.Context(), userID(c), in); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *handlers) retryPayment(c *gin.Context) {
	intent, err := h.deps.Checkout.RetryPayment(c.Request.Context(), userID(c), c.Param("orderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}
