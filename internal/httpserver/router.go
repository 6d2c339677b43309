package httpserver

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	ordersvc "storefront/internal/service/order"
)

// Deps carries the wired services the handlers dispatch to.
type Deps struct {
	Cart     *cartsvc.Service
	Checkout *checkoutsvc.Service
	Orders   *ordersvc.Service
	Wallets  walletReader
	Metrics  http.Handler
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-ID", "X-Admin")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	h := &handlers{deps: deps, logger: logger}

	api := router.Group("/api", requireUser())
	{
		api.GET("/cart", h.getCart)
		api.POST("/cart/items", h.addCartItem)
		api.PATCH("/cart/items/:lineID", h.updateCartItem)
		api.DELETE("/cart/items/:lineID", h.removeCartItem)

		api.GET("/checkout/preview", h.checkoutPreview)
		api.POST("/checkout/coupon", h.applyCoupon)
		api.DELETE("/checkout/coupon", h.removeCoupon)
		api.POST("/checkout/wallet", h.applyWallet)
		api.POST("/checkout/payment-intent", h.createPaymentIntent)

		api.POST("/payments/callback", h.paymentCallback)
		api.POST("/payments/failure", h.paymentFailure)

		api.GET("/orders", h.listOrders)
		api.GET("/orders/:orderID", h.getOrder)
		api.POST("/orders/:orderID/retry-payment", h.retryPayment)
		api.POST("/orders/:orderID/cancel", h.cancelOrder)
		api.POST("/orders/:orderID/items/:itemID/cancel", h.cancelOrderItem)
		api.POST("/orders/:orderID/items/:itemID/return", h.requestReturn)

		api.GET("/wallet", h.getWallet)
	}

	admin := router.Group("/api/admin", requireUser(), requireAdmin())
	{
		admin.POST("/orders/:orderID/status", h.updateOrderStatus)
		admin.POST("/returns/:requestID/approve", h.approveReturn)
		admin.POST("/returns/:requestID/reject", h.rejectReturn)
		admin.POST("/returns/:requestID/receive", h.receiveReturn)
	}

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
