package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"archer/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

// rabbitMQPublisher implements EventPublisher on a durable topic exchange.
// amqp channels are not safe for concurrent publishes, hence the mutex.
type rabbitMQPublisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// NewRabbitMQPublisher dials url and declares the exchange.
func NewRabbitMQPublisher(url, exchange, routingKey string, logger *slog.Logger) (service.EventPublisher, error) {
	if routingKey == "" {
		routingKey = "score.event"
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()

		return nil, errors.Wrap(err, "failed to open RabbitMQ channel")
	}

	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()

			return nil, errors.Wrapf(err, "failed to declare exchange %s", exchange)
		}
	}

	return &rabbitMQPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// PublishScoreEvent publishes the event as a persistent JSON message
func (p *rabbitMQPublisher) PublishScoreEvent(ctx context.Context, event *service.ScoreEventMessage) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	headers := amqp.Table{}
	for k, v := range eventAttributes(event) {
		headers[k] = v
	}

	p.mu.Lock()
	err = p.ch.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: event.RequestID,
		Headers:       headers,
		Body:          body,
	})
	p.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to publish score event")
	}

	p.logger.DebugContext(ctx, "[RabbitMQ] Event published",
		slog.String("account_id", event.AccountID),
		slog.String("kind", event.Kind),
	)

	return nil
}

// Close closes the channel and the connection
func (p *rabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	connErr := p.conn.Close()
	if chErr != nil {
		return errors.WithStack(chErr)
	}

	return errors.WithStack(connErr)
}
