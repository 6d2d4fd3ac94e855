package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/tracing"
)

const (
	exchangeName = "mailsync-direct"

	routingKeyEmailReconciled = "email.reconciled"
	routingKeySyncCompleted   = "sync.completed"
)

type rabbitPublisher struct {
	url  string
	log  logger.Logger
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher connects lazily: a broker outage at startup must not
// keep the service from ingesting email
func NewRabbitPublisher(url string, log logger.Logger) interfaces.EventPublisher {
	return &rabbitPublisher{
		url: url,
		log: log,
	}
}

func (p *rabbitPublisher) PublishEmailReconciled(ctx context.Context, event dto.EmailReconciled) error {
	return p.publish(ctx, routingKeyEmailReconciled, event)
}

func (p *rabbitPublisher) PublishSyncCompleted(ctx context.Context, event dto.SyncCompleted) error {
	return p.publish(ctx, routingKeySyncCompleted, event)
}

func (p *rabbitPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rabbitPublisher.publish")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("routing-key", routingKey)

	if p.url == "" {
		// Events disabled
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal event")
	}

	ch, err := p.channel()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err = ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		// Drop the cached channel so the next publish reconnects
		p.invalidate()
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to publish event")
	}
	return nil
}

func (p *rabbitPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "failed to declare exchange")
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *rabbitPublisher) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *rabbitPublisher) Close() error {
	p.invalidate()
	return nil
}
