package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type returnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.Orders.List(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.deps.Orders.Get(c.Request.Context(), userID(c), c.Param("orderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	order, err := h.deps.Orders.Cancel(c.Request.Context(), userID(c), c.Param("orderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) cancelOrderItem(c *gin.Context) {
	order, err := h.deps.Orders.CancelItem(c.Request.Context(), userID(c), c.Param("orderID"), c.Param("itemID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) requestReturn(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rr, err := h.deps.Orders.RequestReturn(c.Request.Context(), userID(c), c.Param("orderID"), c.Param("itemID"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rr == nil {
		c.JSON(http.StatusOK, gin.H{"status": "already_requested"})
		return
	}
	c.JSON(http.StatusCreated, rr)
}
