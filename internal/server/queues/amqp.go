package queues

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialAMQP is a seam for testing amqp.Dial.
var dialAMQP = func(url string) (io.Closer, amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// AMQPPublisher publishes persistent JSON messages to direct exchanges over
// a single channel. Channels are not goroutine safe, hence the mutex.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     io.Closer
	ch       amqpChannel
	declared map[string]bool
	closed   bool
	logger   logging.Logger
}

func NewAMQPPublisher(url string, logger logging.Logger) (*AMQPPublisher, error) {
	conn, ch, err := dialAMQP(url)
	if err != nil {
		return nil, fmt.Errorf("amqp connect error: %w", err)
	}
	logger.Info(context.Background(), "connected to RabbitMQ")
	return newAMQPPublisher(conn, ch, logger), nil
}

func newAMQPPublisher(conn io.Closer, ch amqpChannel, logger logging.Logger) *AMQPPublisher {
	return &AMQPPublisher{conn: conn, ch: ch, declared: map[string]bool{}, logger: logger}
}

func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte, logLabel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: publisher closed", common.ErrDispatch)
	}

	if !p.declared[exchange] {
		if err := p.ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%w: declare %s: %v", common.ErrDispatch, exchange, err)
		}
		p.declared[exchange] = true
	}

	err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("%w: publish %s/%s: %v", common.ErrDispatch, exchange, routingKey, err)
	}

	p.logger.Info(ctx, logLabel, "exchange", exchange, "routingKey", routingKey)
	return nil
}

// Close closes the channel, then the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var chErr, connErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	if chErr != nil {
		return chErr
	}
	return connErr
}
