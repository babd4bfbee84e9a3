package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	DocumentCreatedTopic    = "document.created"
	DocumentRegenerateTopic = "document.regenerate"
)

type DocumentCreatedEvent struct {
	EventID   string    `json:"event_id"`
	Message   string    `json:"message"`
	EventTime time.Time `json:"event_time"`
}

type RegenerationRequestedEvent struct {
	EventID   string                     `json:"event_id"`
	Request   models.RegenerationRequest `json:"request"`
	EventTime time.Time                  `json:"event_time"`
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

// NewKafkaProducer connects to a comma separated broker list.
func NewKafkaProducer(brokers string, logger *logrus.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return NewKafkaProducerFrom(producer, logger), nil
}

func NewKafkaProducerFrom(producer sarama.SyncProducer, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		logger:   logger,
	}
}

// Send publishes an announcement. The channel id is the topic.
func (p *KafkaProducer) Send(ctx context.Context, channelID, message string) error {
	event := DocumentCreatedEvent{
		EventID:   uuid.NewString(),
		Message:   message,
		EventTime: time.Now(),
	}
	return p.publish(channelID, event.EventID, event)
}

// EnqueueRegeneration asks the regenerator to render and persist a document
// again. Messages are keyed by document id so that requests for one document
// stay ordered.
func (p *KafkaProducer) EnqueueRegeneration(ctx context.Context, req models.RegenerationRequest) error {
	event := RegenerationRequestedEvent{
		EventID:   uuid.NewString(),
		Request:   req,
		EventTime: time.Now(),
	}
	return p.publish(DocumentRegenerateTopic, req.DocumentID, event)
}

func (p *KafkaProducer) publish(topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"key":       key,
	}).Info("Event published to Kafka")
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
