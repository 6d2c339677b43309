package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout holds the counters for the money-moving pipeline.
type Checkout struct {
	OrdersFinalized   prometheus.Counter
	CallbackReplays   prometheus.Counter
	PaymentFailures   prometheus.Counter
	Reconciliations   prometheus.Counter
	CouponRedemptions prometheus.Counter
}

func NewCheckout() *Checkout {
	m := &Checkout{
		OrdersFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_finalized_total",
			Help:      "Draft orders promoted to committed orders.",
		}),
		CallbackReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "gateway_callback_replays_total",
			Help:      "Gateway success callbacks received for an already-finalized order.",
		}),
		PaymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payment_failures_total",
			Help:      "Gateway-reported payment failures.",
		}),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payment_reconciliation_cases_total",
			Help:      "Payments captured by the gateway whose local finalization failed.",
		}),
		CouponRedemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "coupon_redemptions_total",
			Help:      "Coupons redeemed at order finalization.",
		}),
	}
	prometheus.MustRegister(
		m.OrdersFinalized,
		m.CallbackReplays,
		m.PaymentFailures,
		m.Reconciliations,
		m.CouponRedemptions,
	)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
