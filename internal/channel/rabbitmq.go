package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

// amqpSession is an open connection with one channel and a declared exchange.
type amqpSession interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpDialer func(url, exchange string) (amqpSession, error)

type rabbitSession struct {
	conn *amqp.Connection
	*amqp.Channel
}

func (s *rabbitSession) Close() error {
	_ = s.Channel.Close()
	return s.conn.Close()
}

func dialRabbit(url, exchange string) (amqpSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}
	return &rabbitSession{conn: conn, Channel: ch}, nil
}

// RabbitMQ publishes JSON envelopes to a topic exchange from its own worker,
// reconnecting once when a publish fails.
type RabbitMQ struct {
	cfg  config.RabbitMQConfig
	log  *slog.Logger
	now  func() time.Time
	dial amqpDialer

	worker *notify.Worker

	mu      sync.Mutex
	session amqpSession
}

func NewRabbitMQ(cfg config.RabbitMQConfig, deps Deps) *RabbitMQ {
	deps = deps.withDefaults()
	return &RabbitMQ{
		cfg:  cfg,
		log:  deps.Log.With("channel", "rabbitmq"),
		now:  deps.Now,
		dial: dialRabbit,
	}
}

func (r *RabbitMQ) Name() string { return "rabbitmq" }

func (r *RabbitMQ) Initialize(context.Context) (bool, error) {
	const op = "channel.RabbitMQ.Initialize"

	if !r.cfg.Enabled || r.cfg.URL == "" {
		return false, nil
	}
	s, err := r.dial(r.cfg.URL, r.cfg.Exchange)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	r.session = s
	r.worker = notify.NewWorker("rabbitmq", r.cfg.QueueSize, time.Second, r.log)
	return true, nil
}

func (r *RabbitMQ) Shutdown(ctx context.Context) error {
	var err error
	if r.worker != nil {
		err = r.worker.Close(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		if cerr := r.session.Close(); err == nil {
			err = cerr
		}
		r.session = nil
	}
	return err
}

func (r *RabbitMQ) publish(ctx context.Context, env notify.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Type:         env.Type,
		Timestamp:    env.At,
		Body:         body,
	}
	return r.worker.Enqueue(ctx, func(ctx context.Context) error {
		return r.deliver(ctx, msg)
	})
}

func (r *RabbitMQ) deliver(ctx context.Context, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		err := r.session.PublishWithContext(ctx, r.cfg.Exchange, r.cfg.RoutingKey, false, false, msg)
		if err == nil {
			return nil
		}
		r.log.Warn("publish failed, reconnecting", "error", err)
		_ = r.session.Close()
		r.session = nil
	}

	s, err := r.dial(r.cfg.URL, r.cfg.Exchange)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	r.session = s
	return s.PublishWithContext(ctx, r.cfg.Exchange, r.cfg.RoutingKey, false, false, msg)
}

func (r *RabbitMQ) SendStockAlert(ctx context.Context, a notify.Alert) error {
	return r.publish(ctx, notify.AlertEnvelope(a))
}

func (r *RabbitMQ) SendStatusUpdate(ctx context.Context, rep notify.StatusReport) error {
	return r.publish(ctx, notify.StatusEnvelope(rep))
}

func (r *RabbitMQ) SendStartupMessage(ctx context.Context, text string) error {
	return r.publish(ctx, notify.TextEnvelope(text, r.now()))
}
