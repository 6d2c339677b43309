package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.deps.Orders.UpdateStatus(c.Request.Context(), c.Param("orderID"), domain.OrderStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) approveReturn(c *gin.Context) {
	if err := h.deps.Orders.ApproveReturn(c.Request.Context(), c.Param("requestID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *handlers) rejectReturn(c *gin.Context) {
	if err := h.deps.Orders.RejectReturn(c.Request.Context(), c.Param("requestID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *handlers) receiveReturn(c *gin.Context) {
	if err := h.deps.Orders.ReceiveReturn(c.Request.Context(), c.Param("requestID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
