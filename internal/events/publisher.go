// Package events fans lifecycle events out to a message broker after the
// database transaction that recorded them has committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"coinfluence/internal/models"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "events")

// Publisher delivers committed lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event models.PledgeEvent) error
	Close() error
}

// Message is the broker payload for one lifecycle event.
type Message struct {
	ID                uint                   `json:"id"`
	EventType         string                 `json:"eventType"`
	InfluencerID      *uint                  `json:"influencerId,omitempty"`
	InfluencerAddress string                 `json:"influencerAddress,omitempty"`
	UserAddress       string                 `json:"userAddress,omitempty"`
	Data              map[string]interface{} `json:"data,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// NewMessage converts an event row to its broker payload.
func NewMessage(event models.PledgeEvent) Message {
	return Message{
		ID:                event.ID,
		EventType:         string(event.EventType),
		InfluencerID:      event.InfluencerID,
		InfluencerAddress: event.InfluencerAddress,
		UserAddress:       event.UserAddress,
		Data:              event.EventData,
		CreatedAt:         event.CreatedAt,
	}
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, models.PledgeEvent) error { return nil }
func (Noop) Close() error { return nil }

// AMQPPublisher publishes events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex
}

// DialAMQP connects to RabbitMQ, retrying with exponential backoff until
// maxElapsed, and declares the event queue.
func DialAMQP(ctx context.Context, url, queue string, maxElapsed time.Duration) (*AMQPPublisher, error) {
	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		attempt++
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warnf("Failed to connect to RabbitMQ (attempt %d): %v", attempt, err)
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(maxElapsed))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	log.WithField("queue", queue).Info("Connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, channel: ch, queue: queue}, nil
}

// Publish sends one event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event models.PledgeEvent) error {
	body, err := json.Marshal(NewMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Type:         string(event.EventType),
			Timestamp:    event.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Recorder keeps published events in memory. Tests use it to assert what
// left the process.
type Recorder struct {
	mu     sync.Mutex
	Events []models.PledgeEvent
}

func (r *Recorder) Publish(_ context.Context, event models.PledgeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the event types published so far, in order.
func (r *Recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.EventType
	}
	return out
}
