package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/gateway"
	"storefront/internal/httpserver"
	"storefront/internal/metrics"
	"storefront/internal/notifier"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
	couponrepo "storefront/internal/repository/coupon"
	offerrepo "storefront/internal/repository/offer"
	orderrepo "storefront/internal/repository/order"
	variantrepo "storefront/internal/repository/variant"
	walletrepo "storefront/internal/repository/wallet"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	ordersvc "storefront/internal/service/order"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	variantRepo := variantrepo.NewPostgres(dbpool)
	cartRepo := cartrepo.NewPostgres(dbpool)
	offerRepo := offerrepo.NewPostgres(dbpool)
	couponRepo := couponrepo.NewPostgres(dbpool)
	walletRepo := walletrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool)
	addressRepo := addressrepo.NewPostgres(dbpool)

	checkoutMetrics := metrics.NewCheckout()
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.Currency)

	cartService := cartsvc.New(cartRepo, variantRepo, offerRepo, cfg.ShippingPaise)
	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		DB:         dbpool,
		Aggregator: cartService,
		CartRepo:   cartRepo,
		Orders:     orderRepo,
		Variants:   variantRepo,
		Coupons:    couponRepo,
		Wallets:    walletRepo,
		Addresses:  addressRepo,
		Gateway:    gw,
		Notifier:   notifier.NewLog(logger),
		Metrics:    checkoutMetrics,
		Logger:     logger,

		ShippingPaise: cfg.ShippingPaise,
		DraftTTL:      cfg.DraftTTL,
	})
	orderService := ordersvc.New(dbpool, orderRepo, variantRepo, walletRepo, couponRepo, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		Wallets:  walletRepo,
		Metrics:  metrics.Handler(),
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go checkoutService.RunSweeper(sweepCtx, cfg.SweepInterval)

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
