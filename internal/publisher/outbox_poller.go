package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "checkout-events"
	batchSize    = 100
)

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*localstore.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
	DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	pruneTick time.Duration
	retention time.Duration
	repo      EventStore
	writer    MessageWriter
	log       zerolog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order id, same partition
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo EventStore, writer MessageWriter, log zerolog.Logger) *OutboxPoller {
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		pruneTick: time.Hour,
		retention: 7 * 24 * time.Hour,
		repo:      repo,
		writer:    writer,
		log:       log.With().Str("component", "outbox_poller").Logger(),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	pruneTicker := time.NewTicker(p.pruneTick)
	defer eventTicker.Stop()
	defer pruneTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-pruneTicker.C:
			p.pruneProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and closes the writer.
func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to publish event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark event as processed")
			continue
		}
	}
}

func (p *OutboxPoller) pruneProcessedEvents(ctx context.Context) {
	deleted, err := p.repo.DeleteProcessedEvents(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.Error().Err(err).Msg("failed to prune processed events")
		return
	}
	if deleted > 0 {
		p.log.Info().Int64("deleted", deleted).Msg("pruned processed outbox events")
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *localstore.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
