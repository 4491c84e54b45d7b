// Package audit hands decision events off to Kafka. The engine does not
// persist audit trails; it produces events and downstream consumers own
// retention. Publishing is asynchronous and best-effort: a full buffer or
// broker outage drops events rather than slowing the decision path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one decision hand-off record.
type Event struct {
	UserID   string    `json:"user_id,omitempty"`
	TenantID string    `json:"tenant_id,omitempty"`
	Action   string    `json:"action"`
	Resource string    `json:"resource,omitempty"`
	Allowed  bool      `json:"allowed"`
	Source   string    `json:"source"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

const defaultBuffer = 1024

// Publisher produces decision events to a Kafka topic through a
// single background worker.
type Publisher struct {
	client *kgo.Client
	topic  string
	events chan Event
	logger *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithBuffer sets the event channel capacity.
func WithBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
		}
	}
}

// New connects to the given brokers and starts the publish worker.
// Returns nil if brokers is empty (audit hand-off not configured).
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if topic == "" {
		return nil, fmt.Errorf("audit topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		events: make(chan Event, defaultBuffer),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Emit enqueues an event without blocking. Events are dropped when the
// buffer is full; the decision path never waits on the broker.
func (p *Publisher) Emit(_ context.Context, event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("audit buffer full, dropping decision event",
			"action", event.Action,
			"source", event.Source,
		)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.events {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("encode audit event", "error", err)
			continue
		}
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(event.UserID),
			Value: payload,
		}
		p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
			if err != nil {
				p.logger.Warn("produce audit event", "error", err)
			}
		})
	}
	// Flush whatever the worker handed to the client before it exits.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
}

// Close drains buffered events, flushes the producer, and releases the
// client. Safe to call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.events)
		p.wg.Wait()
		p.client.Close()
	})
}
