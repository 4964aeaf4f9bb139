// Package kafka publishes task events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
)

// Publisher writes events to one topic through a sync producer
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

var _ domainevents.Publisher = (*Publisher)(nil)

// NewProducerConfig returns the producer settings used for events. Every
// send waits for all in-sync replicas.
func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// NewPublisher dials the configured brokers
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("kafka producer for %v: %w", cfg.Brokers, err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewPublisherWithProducer publishes through producer, which the Publisher
// then owns.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger.Named("kafka"),
	}
}

// Publish sends event keyed by its aggregate id so the events of one task
// stay ordered on a single partition.
func (p *Publisher) Publish(ctx context.Context, event domainevents.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := p.message(event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", event.EventType(), err)
	}

	p.logger.Debug("event published",
		zap.Stringer("event_id", event.ID()),
		zap.String("event_type", event.EventType()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Publisher) message(event domainevents.Event) (*sarama.ProducerMessage, error) {
	body, err := json.Marshal(domainevents.NewEnvelope(event))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	header := func(k, v string) sarama.RecordHeader {
		return sarama.RecordHeader{Key: []byte(k), Value: []byte(v)}
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID().String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			header("event_id", event.ID().String()),
			header("event_type", event.EventType()),
			header("aggregate_type", event.AggregateType()),
		},
		Timestamp: event.CreatedAt(),
	}, nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
