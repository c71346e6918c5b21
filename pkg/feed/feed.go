// Package feed consumes order status-change notifications pushed by the
// platform over RabbitMQ, so a live view can refresh on events instead of
// polling blind.
//
// The feed is advisory only: a notice just names an order that changed,
// and the handler refetches the canonical record through the normal
// reconciliation path. Losing the feed therefore degrades to polling, it
// never corrupts state.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/mpetrenko/orderlens/pkg/model"
)

// StatusNotice is the message the backend fans out on every status
// change.
type StatusNotice struct {
	OrderID       int64        `json:"order_id"`
	OrderNumber   string       `json:"order_number,omitempty"`
	OldStatus     model.Status `json:"old_status"`
	NewStatus     model.Status `json:"new_status"`
	ChangedBy     string       `json:"changed_by,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Handler receives each decoded notice. It runs on the consumer
// goroutine; long work should be handed off.
type Handler func(StatusNotice)

// Consumer subscribes to the status fanout exchange.
type Consumer struct {
	url      string
	exchange string
	handler  Handler
}

// New builds a consumer for the given AMQP URL and fanout exchange.
func New(url, exchange string, h Handler) *Consumer {
	return &Consumer{url: url, exchange: exchange, handler: h}
}

// Run connects and consumes until the context is canceled or the
// connection drops. Malformed notices are skipped, not fatal.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}

	// Private queue per consumer; the broker names and removes it.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-closed:
			if e != nil {
				return fmt.Errorf("amqp channel closed: %w", e)
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			notice, err := decodeNotice(d.Body)
			if err != nil {
				continue
			}
			c.handler(notice)
		}
	}
}

// decodeNotice parses a raw notice and rejects ones without an order id.
func decodeNotice(body []byte) (StatusNotice, error) {
	var n StatusNotice
	if err := json.Unmarshal(body, &n); err != nil {
		return StatusNotice{}, err
	}
	if n.OrderID <= 0 {
		return StatusNotice{}, errors.New("notice missing order_id")
	}
	return n, nil
}
