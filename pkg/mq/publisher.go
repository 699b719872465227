// Package mq publishes domain events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for marketplace domain events.
const (
	KeySessionConfirmed = "session.confirmed"
	KeyBookingCanceled  = "booking.canceled"
)

// ErrClosed is returned when publishing on a closed Publisher.
var ErrClosed = errors.New("mq: publisher closed")

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends JSON messages to a durable topic exchange.
// A single AMQP channel is not safe for concurrent publishes, so calls are
// serialized through a one-slot semaphore. amqp091 ignores the context passed
// to PublishWithContext, so the deadline is enforced here: a caller whose ctx
// ends while waiting for the slot or for a stalled broker gets ctx.Err().
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	sem      chan struct{}
	closed   atomic.Bool
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{
		ch:       ch,
		sem:      make(chan struct{}, 1),
		exchange: exchange,
	}
}

// PublishJSON marshals v and publishes it as a persistent message under key.
// It returns when the broker accepted the frame or ctx is done, whichever comes first.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	if p.closed.Load() {
		return ErrClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", key, err)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", key, ctx.Err())
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	}

	// The slot is released by the publishing goroutine, so a stalled write
	// keeps later callers waiting only until their own deadline.
	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", key, ctx.Err())
	}
}

func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
