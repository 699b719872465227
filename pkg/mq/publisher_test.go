package mq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	messages []amqp.Publishing
	keys     []string
	err      error
	block    chan struct{}
	closed   bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestPublishJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "marketplace.events")

	err := p.PublishJSON(context.Background(), KeySessionConfirmed, map[string]string{"booking": "facility:1"})
	require.NoError(t, err)

	require.Len(t, ch.messages, 1)
	assert.Equal(t, []string{KeySessionConfirmed}, ch.keys)
	assert.Equal(t, "application/json", ch.messages[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.messages[0].DeliveryMode)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.messages[0].Body, &body))
	assert.Equal(t, "facility:1", body["booking"])
}

func TestPublishJSON_MarshalError(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "marketplace.events")

	err := p.PublishJSON(context.Background(), KeyBookingCanceled, make(chan int))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "marshal booking.canceled event")
	assert.Empty(t, ch.messages)
}

func TestPublishJSON_BrokerError(t *testing.T) {
	p := newPublisher(&fakeChannel{err: amqp.ErrClosed}, "marketplace.events")

	err := p.PublishJSON(context.Background(), KeySessionConfirmed, struct{}{})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestPublishJSON_AfterClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "marketplace.events")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)

	err := p.PublishJSON(context.Background(), KeySessionConfirmed, struct{}{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, ch.messages)
}

func TestPublishJSON_StalledBrokerHonorsDeadline(t *testing.T) {
	ch := &fakeChannel{block: make(chan struct{})}
	p := newPublisher(ch, "marketplace.events")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishJSON(ctx, KeySessionConfirmed, struct{}{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// A second caller waiting for the slot is bounded by its own deadline too
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	err = p.PublishJSON(ctx2, KeyBookingCanceled, struct{}{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Once the broker drains, the slot frees up again
	close(ch.block)
	require.Eventually(t, func() bool {
		return p.PublishJSON(context.Background(), KeySessionConfirmed, struct{}{}) == nil
	}, time.Second, 10*time.Millisecond)
}
