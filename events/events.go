// Package events publishes and consumes document lifecycle notifications
// over Kafka, adapting pkg/kafka's Producer/Consumer to the two topics a
// Database's hooks care about: a document being indexed and a document
// being removed. This is entirely optional ambient wiring — a Database
// never depends on it, and callers that don't configure Kafka never
// construct a Publisher.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lucid-search/lucid/pkg/config"
	"github.com/lucid-search/lucid/pkg/kafka"
	"github.com/lucid-search/lucid/pkg/resilience"
)

// DocumentIndexed is published after a document is inserted.
type DocumentIndexed struct {
	DatabaseID string         `json:"database_id"`
	ID         string         `json:"id"`
	Document   map[string]any `json:"document"`
}

// DocumentRemoved is published after a document is removed.
type DocumentRemoved struct {
	DatabaseID string `json:"database_id"`
	ID         string `json:"id"`
}

// Publisher fans document lifecycle events out to Kafka, one producer
// per topic. Wire it into a Database via Hooks.AfterInsert/AfterRemove.
// Publishes run behind a circuit breaker so a stalled broker degrades to
// fast failures instead of piling up latency on every insert/remove.
type Publisher struct {
	indexed *kafka.Producer
	removed *kafka.Producer
	cb      *resilience.CircuitBreaker
	logger  *slog.Logger
}

// NewPublisher creates a Publisher for the configured topics.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		indexed: kafka.NewProducer(cfg, cfg.Topics.DocumentIndexed),
		removed: kafka.NewProducer(cfg, cfg.Topics.DocumentRemoved),
		cb:      resilience.NewCircuitBreaker("kafka-publisher", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "event-publisher"),
	}
}

// PublishIndexed publishes a DocumentIndexed event, keyed by id so all
// events for the same document land on the same partition.
func (p *Publisher) PublishIndexed(ctx context.Context, databaseID, id string, doc map[string]any) {
	err := p.cb.Execute(func() error {
		return p.indexed.Publish(ctx, kafka.Event{
			Key:   id,
			Value: DocumentIndexed{DatabaseID: databaseID, ID: id, Document: doc},
		})
	})
	if err != nil {
		p.logger.Error("publish document indexed failed", "id", id, "error", err)
	}
}

// PublishRemoved publishes a DocumentRemoved event.
func (p *Publisher) PublishRemoved(ctx context.Context, databaseID, id string) {
	err := p.cb.Execute(func() error {
		return p.removed.Publish(ctx, kafka.Event{
			Key:   id,
			Value: DocumentRemoved{DatabaseID: databaseID, ID: id},
		})
	})
	if err != nil {
		p.logger.Error("publish document removed failed", "id", id, "error", err)
	}
}

// CircuitState reports the current state of the publish circuit breaker,
// for exporting as a metric.
func (p *Publisher) CircuitState() resilience.State {
	return p.cb.GetState()
}

// Close closes both underlying producers.
func (p *Publisher) Close() error {
	if err := p.indexed.Close(); err != nil {
		return fmt.Errorf("closing indexed producer: %w", err)
	}
	if err := p.removed.Close(); err != nil {
		return fmt.Errorf("closing removed producer: %w", err)
	}
	return nil
}

// Subscriber consumes DocumentIndexed/DocumentRemoved events, for
// secondary processes that mirror a Database's writes (e.g. a replica
// rebuilding its index from the event stream rather than from RPC
// calls directly).
type Subscriber struct {
	indexed *kafka.Consumer
	removed *kafka.Consumer
}

// NewSubscriber creates a Subscriber invoking onIndexed/onRemoved for
// each decoded event.
func NewSubscriber(cfg config.KafkaConfig, onIndexed func(context.Context, DocumentIndexed) error, onRemoved func(context.Context, DocumentRemoved) error) *Subscriber {
	indexedHandler := func(ctx context.Context, _ []byte, value []byte) error {
		evt, err := kafka.DecodeJSON[DocumentIndexed](value)
		if err != nil {
			return err
		}
		return onIndexed(ctx, evt)
	}
	removedHandler := func(ctx context.Context, _ []byte, value []byte) error {
		evt, err := kafka.DecodeJSON[DocumentRemoved](value)
		if err != nil {
			return err
		}
		return onRemoved(ctx, evt)
	}
	return &Subscriber{
		indexed: kafka.NewConsumer(cfg, cfg.Topics.DocumentIndexed, indexedHandler),
		removed: kafka.NewConsumer(cfg, cfg.Topics.DocumentRemoved, removedHandler),
	}
}

// Start runs both consume loops until ctx is cancelled, returning once
// both have stopped.
func (s *Subscriber) Start(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- s.indexed.Start(ctx) }()
	go func() { errCh <- s.removed.Start(ctx) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes both underlying consumers.
func (s *Subscriber) Close() error {
	if err := s.indexed.Close(); err != nil {
		return fmt.Errorf("closing indexed consumer: %w", err)
	}
	return s.removed.Close()
}
