package worker

import (
	"context"

	"order-console/internal/broker"
	"order-console/internal/models"
	"order-console/internal/util"

	"go.uber.org/zap"
)

// Waker schedules a fresh snapshot of a collection
type Waker interface {
	Wake(collection string)
}

func wakeOnChange(eh *broker.EventHandler, feed Waker) {
	eh.OnDocumentChanged(func(_ context.Context, event *models.DocumentChangedEvent) error {
		feed.Wake(event.Collection)
		return nil
	})
}

// ChangeWorker turns Kafka change events into feed wake-ups
type ChangeWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewChangeWorker creates a new Kafka change worker
func NewChangeWorker(consumer *broker.Consumer, feed Waker) *ChangeWorker {
	eventHandler := broker.NewEventHandler()
	wakeOnChange(eventHandler, feed)

	return &ChangeWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *ChangeWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting change worker", zap.String("transport", "kafka"))
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ChangeWorker) Stop() error {
	w.logger.Info("Stopping change worker", zap.String("transport", "kafka"))
	return w.consumer.Close()
}

// AMQPChangeWorker turns RabbitMQ change events into feed wake-ups
type AMQPChangeWorker struct {
	amqp         *broker.AMQP
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAMQPChangeWorker creates a new RabbitMQ change worker
func NewAMQPChangeWorker(amqp *broker.AMQP, feed Waker) *AMQPChangeWorker {
	eventHandler := broker.NewEventHandler()
	wakeOnChange(eventHandler, feed)

	return &AMQPChangeWorker{
		amqp:         amqp,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *AMQPChangeWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting change worker", zap.String("transport", "amqp"))
	return w.amqp.StartConsuming(ctx, w.eventHandler.HandleBody)
}
