// Package notifier is the fire-and-forget order confirmation collaborator.
// Delivery failures never roll back an order.
package notifier

import (
	"context"
	"log"

	"storefront/internal/domain"
)

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order)
}

// LogNotifier writes confirmations to the application log. Real email delivery
// lives outside this service.
type LogNotifier struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, order domain.Order) {
	n.logger.Printf("order confirmation: %s final=%d paise items=%d", order.OrderID, order.FinalPricePaise, len(order.Items))
}
