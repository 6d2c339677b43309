package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type walletReader interface {
	GetByUser(ctx context.Context, userID string) (*domain.Wallet, error)
	Transactions(ctx context.Context, walletID string) ([]domain.Transaction, error)
}

func (h *handlers) getWallet(c *gin.Context) {
	ctx := c.Request.Context()
	wallet, err := h.deps.Wallets.GetByUser(ctx, userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	txns, err := h.deps.Wallets.Transactions(ctx, wallet.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "transactions": txns})
}
