package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-console/internal/models"
	"order-console/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQP carries document change events over a RabbitMQ fanout exchange
type AMQP struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQP connects and declares the fanout exchange
func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare failed: %w", err)
	}

	return &AMQP{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   util.GetLogger(),
	}, nil
}

// Notify publishes a DocumentChanged event to the exchange
func (a *AMQP) Notify(ctx context.Context, event *models.DocumentChangedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = a.channel.PublishWithContext(ctx,
		a.exchange,
		event.Collection,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.EventID,
			Timestamp:   time.Now(),
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to amqp: %w", err)
	}
	return nil
}

// StartConsuming binds a private queue to the exchange and hands every
// delivery body to handler until ctx is done or the channel closes
func (a *AMQP) StartConsuming(ctx context.Context, handler func(context.Context, []byte) error) error {
	q, err := a.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp queue declare failed: %w", err)
	}

	if err := a.channel.QueueBind(q.Name, "", a.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp queue bind failed: %w", err)
	}

	msgs, err := a.channel.Consume(
		q.Name,
		"order-console", // consumer tag
		true,            // auto-ack
		true,            // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume failed: %w", err)
	}

	a.logger.Info("Starting AMQP consumer",
		zap.String("exchange", a.exchange),
		zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			util.ChangeEventsConsumedTotal.WithLabelValues("amqp").Inc()
			if err := handler(ctx, msg.Body); err != nil {
				a.logger.Error("Error handling delivery", zap.Error(err))
			}
		}
	}
}

// Close closes the channel and the connection
func (a *AMQP) Close() error {
	if err := a.channel.Close(); err != nil {
		_ = a.conn.Close()
		return err
	}
	return a.conn.Close()
}
