package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	DocumentRegenerateDLQTopic = "document.regenerate.dlq"
	MaxRetries                 = 3
	InitialRetryDelay          = 1 * time.Second
	MaxRetryDelay              = 30 * time.Second
)

type RegenerationHandler interface {
	HandleRegeneration(ctx context.Context, req models.RegenerationRequest) error
	IsRetryable(err error) bool
}

type ConsumerMetrics struct {
	ProcessedCount int64
	RetryCount     int64
	DLQCount       int64
	SuccessCount   int64
	FailureCount   int64
}

type MessageMetadata struct {
	RetryCount    int       `json:"retry_count"`
	FirstFailure  time.Time `json:"first_failure"`
	LastFailure   time.Time `json:"last_failure"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
}

// RegenerationConsumer works through document.regenerate with exponential
// backoff. Requests that still fail are moved to the dead letter topic.
type RegenerationConsumer struct {
	consumerGroup sarama.ConsumerGroup
	producer      sarama.SyncProducer
	handler       *regenerationGroupHandler
	logger        *logrus.Logger
	topics        []string
}

type regenerationGroupHandler struct {
	handler  RegenerationHandler
	producer sarama.SyncProducer
	logger   *logrus.Logger
	metrics  *ConsumerMetrics
	sleep    func(ctx context.Context, d time.Duration)
}

func NewRegenerationConsumer(brokers, groupID string, handler RegenerationHandler, logger *logrus.Logger) (*RegenerationConsumer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumerGroup, err := sarama.NewConsumerGroup(strings.Split(brokers, ","), groupID, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), newProducerConfig())
	if err != nil {
		consumerGroup.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	return &RegenerationConsumer{
		consumerGroup: consumerGroup,
		producer:      producer,
		handler:       newRegenerationGroupHandler(handler, producer, logger),
		logger:        logger,
		topics:        []string{DocumentRegenerateTopic},
	}, nil
}

func newRegenerationGroupHandler(handler RegenerationHandler, producer sarama.SyncProducer, logger *logrus.Logger) *regenerationGroupHandler {
	return &regenerationGroupHandler{
		handler:  handler,
		producer: producer,
		logger:   logger,
		metrics:  &ConsumerMetrics{},
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *RegenerationConsumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		default:
			if err := c.consumerGroup.Consume(ctx, c.topics, c.handler); err != nil {
				c.logger.WithError(err).Error("Error consuming from Kafka")
				return err
			}
		}
	}
}

func (c *RegenerationConsumer) Close() error {
	if err := c.producer.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close producer")
	}
	return c.consumerGroup.Close()
}

func (c *RegenerationConsumer) Metrics() ConsumerMetrics {
	return c.handler.snapshot()
}

func (h *regenerationGroupHandler) snapshot() ConsumerMetrics {
	return ConsumerMetrics{
		ProcessedCount: atomic.LoadInt64(&h.metrics.ProcessedCount),
		RetryCount:     atomic.LoadInt64(&h.metrics.RetryCount),
		DLQCount:       atomic.LoadInt64(&h.metrics.DLQCount),
		SuccessCount:   atomic.LoadInt64(&h.metrics.SuccessCount),
		FailureCount:   atomic.LoadInt64(&h.metrics.FailureCount),
	}
}

func (h *regenerationGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup")
	return nil
}

func (h *regenerationGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *regenerationGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if h.process(session.Context(), message) {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			h.logger.Info("Consumer group session context cancelled")
			return nil
		}
	}
}

// process reports whether the message is finished with. A message
// interrupted by shutdown is left unmarked for redelivery.
func (h *regenerationGroupHandler) process(ctx context.Context, message *sarama.ConsumerMessage) bool {
	atomic.AddInt64(&h.metrics.ProcessedCount, 1)

	if err := h.handleWithRetry(ctx, message); err != nil {
		if ctx.Err() != nil {
			h.logger.WithError(err).Warn("Regeneration interrupted, message left for redelivery")
			return false
		}
		h.logger.WithError(err).Error("Failed to regenerate document after retries")
		atomic.AddInt64(&h.metrics.FailureCount, 1)

		if dlqErr := h.sendToDLQ(message, err); dlqErr != nil {
			h.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
		} else {
			atomic.AddInt64(&h.metrics.DLQCount, 1)
		}
		return true
	}
	atomic.AddInt64(&h.metrics.SuccessCount, 1)
	return true
}

func (h *regenerationGroupHandler) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event RegenerationRequestedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal regeneration event: %w", err)
	}
	log := h.logger.WithFields(logrus.Fields{
		"document_id": event.Request.DocumentID,
		"partition":   message.Partition,
		"offset":      message.Offset,
	})

	retryDelay := InitialRetryDelay
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   retryDelay,
			}).Info("Retrying document regeneration")

			h.sleep(ctx, retryDelay)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			atomic.AddInt64(&h.metrics.RetryCount, 1)

			retryDelay = retryDelay * 2
			if retryDelay > MaxRetryDelay {
				retryDelay = MaxRetryDelay
			}
		}

		err := h.handler.HandleRegeneration(ctx, event.Request)
		if err == nil {
			log.Info("Document regenerated")
			return nil
		}
		if !h.handler.IsRetryable(err) {
			log.WithError(err).Error("Non-retryable error encountered")
			return err
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("Retryable error regenerating document")
	}

	return fmt.Errorf("exhausted retries for document %s", event.Request.DocumentID)
}

func (h *regenerationGroupHandler) sendToDLQ(message *sarama.ConsumerMessage, processingError error) error {
	now := time.Now()
	metadata := MessageMetadata{
		RetryCount:    MaxRetries,
		FirstFailure:  now,
		LastFailure:   now,
		OriginalTopic: message.Topic,
		ErrorMessage:  processingError.Error(),
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	dlqMessage := &sarama.ProducerMessage{
		Topic: DocumentRegenerateDLQTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("metadata"), Value: metadataBytes},
			{Key: []byte("original_topic"), Value: []byte(message.Topic)},
			{Key: []byte("original_partition"), Value: []byte(strconv.Itoa(int(message.Partition)))},
			{Key: []byte("original_offset"), Value: []byte(strconv.FormatInt(message.Offset, 10))},
			{Key: []byte("failure_time"), Value: []byte(now.Format(time.RFC3339))},
			{Key: []byte(replayCountHeader), Value: []byte(strconv.Itoa(replayCount(message.Headers)))},
		},
	}

	partition, offset, err := h.producer.SendMessage(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"dlq_topic":     DocumentRegenerateDLQTopic,
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"original_key":  string(message.Key),
		"error":         processingError.Error(),
	}).Warn("Message sent to dead letter queue")
	return nil
}
