package output

import (
	"context"

	"github.com/northpay/gateway/internal/core"
)

// OrderMessaging is an output port (secondary port) for settlement messaging.
// Secondary adapters (RabbitMQ implementations) will implement this.
type OrderMessaging interface {
	// PublishOrderPaid publishes a settlement message for a paid order.
	PublishOrderPaid(ctx context.Context, order *core.Order) error
	// Close closes the messaging connection.
	Close() error
}
