// Package publisher forwards back-office notifications to RabbitMQ so other
// processes (mailers, audit consumers) can react to content changes.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"foundation_site/internal/domain"
)

// Config describes the topology. Notifications are routed on a topic
// exchange as "<RoutingKey>.<resource>.<kind>"; QueueName receives all of them.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	Source     string
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger.With("component", "publisher"),
	}, nil
}

func declare(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey+".#", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}
	return nil
}

// NotificationMessage is the body published for every notification.
type NotificationMessage struct {
	Source       string              `json:"source,omitempty"`
	Notification domain.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (r *RabbitMQ) routingKey(n domain.Notification) string {
	resource := n.Resource
	if resource == "" {
		resource = "general"
	}
	return strings.Join([]string{r.cfg.RoutingKey, resource, string(n.Kind)}, ".")
}

// Publish sends n and waits for the broker to confirm it.
func (r *RabbitMQ) Publish(ctx context.Context, n domain.Notification) error {
	now := time.Now().UTC()
	body, err := json.Marshal(NotificationMessage{
		Source:       r.cfg.Source,
		Notification: n,
		Timestamp:    now,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := r.routingKey(n)
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.cfg.Exchange, key, false, false,
		amqp.Publishing{
			MessageId:    uuid.NewString(),
			AppId:        r.cfg.Source,
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(n.Kind),
			Headers:      amqp.Table{"resource": n.Resource, "action": n.Action},
			Body:         body,
			Timestamp:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return errors.New("publish notification: broker nacked")
	}

	r.logger.Debug("published notification", "routing_key", key, "action", n.Action)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
