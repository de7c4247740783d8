package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel is the subset of *amqp.Channel the publisher uses
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPPublisher publishes each event type to its own durable queue on the default exchange.
// A channel closed by the broker is reopened on the next Publish.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	reopen   func() (amqpChannel, error)
	prefix   string
	mu       sync.Mutex
	declared map[string]bool
	logger   *zap.Logger
}

// DialAMQP opens a connection and a channel to RabbitMQ
func DialAMQP(url, prefix string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("prefix", prefix))

	p := newAMQPPublisher(ch, prefix, logger)
	p.conn = conn
	p.reopen = func() (amqpChannel, error) {
		if p.conn == nil || p.conn.IsClosed() {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, fmt.Errorf("rabbitmq redial failed: %w", err)
			}
			p.conn = conn
		}
		ch, err := p.conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
		}
		return ch, nil
	}
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, prefix string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		ch:       ch,
		prefix:   prefix,
		declared: make(map[string]bool),
		logger:   logger,
	}
}

// Publish declares the event queue on first use and sends a persistent message.
// A publish that fails on a closed channel is retried once on a fresh one.
func (p *AMQPPublisher) Publish(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	queue := routingKey(p.prefix, event.Type)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch.IsClosed() {
		if err := p.reconnect(); err != nil {
			return err
		}
	}

	err = p.publish(ctx, queue, msg)
	if errors.Is(err, amqp.ErrClosed) {
		if rerr := p.reconnect(); rerr != nil {
			return errors.Join(err, rerr)
		}
		err = p.publish(ctx, queue, msg)
	}
	if err != nil {
		return err
	}

	p.logger.Debug("event published",
		zap.String("queue", queue),
		zap.String("event_id", event.ID.String()))
	return nil
}

// publish must be called with p.mu held
func (p *AMQPPublisher) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			return fmt.Errorf("rabbitmq queue declare failed: %w", err)
		}
		p.declared[queue] = true
	}

	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	return nil
}

// reconnect swaps in a fresh channel; must be called with p.mu held
func (p *AMQPPublisher) reconnect() error {
	if p.reopen == nil {
		return fmt.Errorf("rabbitmq channel closed: %w", amqp.ErrClosed)
	}

	ch, err := p.reopen()
	if err != nil {
		p.logger.Warn("failed to reopen rabbitmq channel", zap.Error(err))
		return err
	}

	p.ch = ch
	// redeclare lazily on the new channel
	p.declared = make(map[string]bool)
	p.logger.Info("reopened rabbitmq channel", zap.String("prefix", p.prefix))
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		firstErr = err
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
