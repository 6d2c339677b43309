package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type applyCouponRequest struct {
	Code      string `json:"code" binding:"required"`
	AddressID string `json:"addressId"`
}

type applyWalletRequest struct {
	AddressID string `json:"addressId"`
}

type paymentIntentRequest struct {
	AddressID string `json:"addressId"`
}

// checkoutPreview returns the priced cart plus a stale stock check, so the
// client can surface dead checkouts before opening the payment widget.
func (h *handlers) checkoutPreview(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	view, err := h.deps.Cart.View(ctx, uid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	_, raw, err := h.deps.Cart.PricedLines(ctx, uid)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.deps.Cart.CheckStock(raw); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.deps.Checkout.ApplyCoupon(c.Request.Context(), userID(c), req.AddressID, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handlers) removeCoupon(c *gin.Context) {
	state, err := h.deps.Checkout.RemoveCoupon(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handlers) applyWallet(c *gin.Context) {
	var req applyWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.deps.Checkout.ApplyWallet(c.Request.Context(), userID(c), req.AddressID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handlers) createPaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	intent, err := h.deps.Checkout.CreatePaymentIntent(c.Request.Context(), userID(c), req.AddressID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}
