package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/output"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName  = "payments"
	QueueName     = "payment_settlements"
	RoutingKey    = "payment.settled"
	PrefetchCount = 1 // Process one message at a time per worker
)

// SettlementMessage notifies downstream consumers that an order was settled.
type SettlementMessage struct {
	OrderID   uuid.UUID `json:"order_id"`
	Provider  string    `json:"provider"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// RabbitMQClient is a secondary adapter that implements the OrderMessaging
// output port and the worker-side settlement consumer.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

var _ output.OrderMessaging = (*RabbitMQClient)(nil)

// NewRabbitMQClient connects to RabbitMQ and declares the settlement
// exchange, queue and binding.
func NewRabbitMQClient(amqpURL string, log *zap.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		QueueName,
		RoutingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
		log:     log,
	}, nil
}

// PublishOrderPaid publishes a settlement message for a paid order.
func (c *RabbitMQClient) PublishOrderPaid(ctx context.Context, order *core.Order) error {
	message := SettlementMessage{
		OrderID:   order.UniqueID,
		Provider:  order.Provider,
		Amount:    order.Amount.String(),
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // Make message persistent
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.log.Info("published settlement message",
		zap.String("order_id", order.UniqueID.String()))
	return nil
}

// ConsumeSettlements starts consuming settlement messages. Handler errors
// requeue the message, except core.ErrOrderNotFound which is terminal.
func (c *RabbitMQClient) ConsumeSettlements(handler func(SettlementMessage) error) error {
	err := c.channel.Qos(
		PrefetchCount,
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		QueueName,
		"",    // consumer tag
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("started consuming settlement messages")

	go func() {
		for msg := range msgs {
			var settlement SettlementMessage
			if err := json.Unmarshal(msg.Body, &settlement); err != nil {
				c.log.Error("failed to unmarshal message", zap.Error(err))
				msg.Nack(false, false) // Malformed, drop
				continue
			}

			if err := handler(settlement); err != nil {
				c.log.Error("failed to process settlement",
					zap.String("order_id", settlement.OrderID.String()),
					zap.Error(err))
				if isTerminalError(err) {
					msg.Ack(false) // Acknowledge to remove from queue
				} else {
					msg.Nack(false, true) // Requeue for retry
				}
				continue
			}

			msg.Ack(false)
			c.log.Info("processed settlement",
				zap.String("order_id", settlement.OrderID.String()))
		}
	}()

	return nil
}

// Close closes the RabbitMQ connection.
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// isTerminalError reports whether retrying the message can never succeed.
func isTerminalError(err error) bool {
	return errors.Is(err, core.ErrOrderNotFound)
}
