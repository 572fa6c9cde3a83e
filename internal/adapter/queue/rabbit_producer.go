package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

const (
	paymentsExchange = "payments.events"

	webhookRoutingKey = "payments.webhook.received"
	WebhookQueue      = "payments.webhook.q"

	confirmationRoutingKey = "notifications.order.confirmed"
	ConfirmationQueue      = "notifications.order.confirmed.q"

	failureRoutingKey = "notifications.payment.failed"
	FailureQueue      = "notifications.payment.failed.q"
)

// RabbitProducer publishes verified webhooks for asynchronous
// reconciliation and customer notifications for the delivery workers.
// It implements usecase.Notifier.
type RabbitProducer struct {
	mu sync.RWMutex
	ch *amqp.Channel
}

// NewRabbitProducer sets up the exchange, queues, and bindings once at startup.
func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	if err := declareTopology(ch); err != nil {
		return nil, err
	}
	return &RabbitProducer{ch: ch}, nil
}

// Reset swaps in a channel from a fresh connection after a broker
// outage. Topology is re-declared since the broker may have restarted
// without it.
func (p *RabbitProducer) Reset(ch *amqp.Channel) error {
	if err := declareTopology(ch); err != nil {
		return err
	}
	p.mu.Lock()
	p.ch = ch
	p.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		paymentsExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	bindings := []struct{ queue, key string }{
		{WebhookQueue, webhookRoutingKey},
		{ConfirmationQueue, confirmationRoutingKey},
		{FailureQueue, failureRoutingKey},
	}
	for _, b := range bindings {
		q, err := ch.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(q.Name, b.key, paymentsExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}

	// publisher confirms
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirm mode: %w", err)
	}
	return nil
}

// PublishWebhook enqueues a signature-verified gateway delivery. The HTTP
// endpoint stays fast; the consumer does the reconciliation work.
func (p *RabbitProducer) PublishWebhook(ctx context.Context, msg usecase.QueuedWebhook) error {
	return p.publish(ctx, webhookRoutingKey, msg)
}

func (p *RabbitProducer) SendOrderConfirmation(ctx context.Context, msg usecase.OrderConfirmationMsg) error {
	return p.publish(ctx, confirmationRoutingKey, msg)
}

func (p *RabbitProducer) SendPaymentFailure(ctx context.Context, msg usecase.PaymentFailureMsg) error {
	return p.publish(ctx, failureRoutingKey, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, key string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	if err := ch.PublishWithContext(
		ctx,
		paymentsExchange,
		key,
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

var _ usecase.Notifier = (*RabbitProducer)(nil)
