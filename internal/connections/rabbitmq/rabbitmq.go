// Package rabbitmq is a small AMQP 0-9-1 client for request/reply calls.
// Requests are published with publisher confirms and the mandatory flag, so
// a request nobody consumes fails fast with ErrUnroutable instead of timing out.
package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"grocery-fleet/internal/common/ids"
)

var (
	ErrUnroutable = errors.New("rabbitmq: request unroutable")
	ErrNacked     = errors.New("rabbitmq: publish nacked by broker")
	ErrClosed     = errors.New("rabbitmq: connection closed")
)

type Client struct {
	url string

	mu       sync.Mutex // one call at a time
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms <-chan amqp.Confirmation
	returns  <-chan amqp.Return
	replies  <-chan amqp.Delivery
	replyTo  string
}

// Dial connects to url (amqp:// or amqps://) and prepares an exclusive reply queue.
func Dial(url string) (*Client, error) {
	c := &Client{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	var (
		conn *amqp.Connection
		err  error
	)
	if strings.HasPrefix(c.url, "amqps://") {
		conn, err = amqp.DialTLS(c.url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(c.url)
	}
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return err
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 8))
	returns := ch.NotifyReturn(make(chan amqp.Return, 8))

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return err
	}
	replies, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return err
	}

	c.conn, c.ch = conn, ch
	c.confirms, c.returns, c.replies = confirms, returns, replies
	c.replyTo = q.Name
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.ch = nil, nil
}

// Ping reports ErrClosed when the connection or its channel is gone. It does
// not wait for a call in flight, which proves the channel is in use.
func (c *Client) Ping() error {
	if !c.mu.TryLock() {
		return nil
	}
	defer c.mu.Unlock()
	if !c.usable() {
		return ErrClosed
	}
	return nil
}

func (c *Client) usable() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.ch != nil && !c.ch.IsClosed()
}

// Call publishes body to queue on the default exchange and waits for the reply
// carrying the same correlation id. A lost connection is re-established on the
// next call, and so is a channel the broker closed on its own.
func (c *Client) Call(ctx context.Context, queue string, body []byte, contentType string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.usable() || !c.drain() {
		c.closeLocked()
		if err := c.connect(); err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
	}

	corrID := ids.NewULID()
	seq := c.ch.GetNextPublishSeqNo()
	err := c.ch.PublishWithContext(ctx, "", queue, true, false, amqp.Publishing{
		ContentType:   contentType,
		CorrelationId: corrID,
		ReplyTo:       c.replyTo,
		Timestamp:     time.Now(),
		DeliveryMode:  amqp.Transient,
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	if err := c.awaitConfirm(ctx, seq); err != nil {
		return nil, err
	}
	// The broker sends basic.return before the confirm, so it is already queued.
returned:
	for {
		select {
		case r, ok := <-c.returns:
			if !ok {
				return nil, ErrClosed
			}
			if r.CorrelationId == corrID {
				return nil, fmt.Errorf("%w: %s (%s)", ErrUnroutable, queue, r.ReplyText)
			}
		default:
			break returned
		}
	}

	for {
		select {
		case d, ok := <-c.replies:
			if !ok {
				return nil, ErrClosed
			}
			if d.CorrelationId != corrID {
				continue // late reply to an earlier call that timed out
			}
			return d.Body, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) awaitConfirm(ctx context.Context, seq uint64) error {
	for {
		select {
		case conf, ok := <-c.confirms:
			if !ok {
				return ErrClosed
			}
			if conf.DeliveryTag < seq {
				continue
			}
			if !conf.Ack {
				return ErrNacked
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain discards confirms and returns left over from calls that gave up early.
// It reports false once either notification channel has been closed.
func (c *Client) drain() bool {
	for {
		select {
		case _, ok := <-c.confirms:
			if !ok {
				return false
			}
		case _, ok := <-c.returns:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
