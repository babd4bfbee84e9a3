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
	"github.com/sirupsen/logrus"
)

const (
	// MaxReplays bounds how often one request may travel from the dead
	// letter topic back to document.regenerate.
	MaxReplays = 3

	replayCountHeader = "replay_count"
)

type DLQMetrics struct {
	ReplayedCount int64
	ParkedCount   int64
	FailedCount   int64
}

// DLQProcessor drains document.regenerate.dlq and republishes each request
// to document.regenerate after a delay. Requests that were already replayed
// MaxReplays times are parked: logged and acknowledged without a replay.
type DLQProcessor struct {
	consumer sarama.ConsumerGroup
	producer sarama.SyncProducer
	handler  *dlqConsumerHandler
	logger   *logrus.Logger
}

type dlqConsumerHandler struct {
	producer    sarama.SyncProducer
	replayTopic string
	delay       time.Duration
	logger      *logrus.Logger
	metrics     *DLQMetrics
	sleep       func(ctx context.Context, d time.Duration)
	now         func() time.Time
}

func NewDLQProcessor(brokers, groupID string, delay time.Duration, logger *logrus.Logger) (*DLQProcessor, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumer, err := sarama.NewConsumerGroup(strings.Split(brokers, ","), groupID, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), newProducerConfig())
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &DLQProcessor{
		consumer: consumer,
		producer: producer,
		handler:  newDLQConsumerHandler(producer, delay, logger),
		logger:   logger,
	}, nil
}

func newDLQConsumerHandler(producer sarama.SyncProducer, delay time.Duration, logger *logrus.Logger) *dlqConsumerHandler {
	return &dlqConsumerHandler{
		producer:    producer,
		replayTopic: DocumentRegenerateTopic,
		delay:       delay,
		logger:      logger,
		metrics:     &DLQMetrics{},
		sleep:       sleepContext,
		now:         time.Now,
	}
}

func (p *DLQProcessor) ProcessDLQ(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("DLQ processor context cancelled")
			return nil
		default:
			if err := p.consumer.Consume(ctx, []string{DocumentRegenerateDLQTopic}, p.handler); err != nil {
				p.logger.WithError(err).Error("Error consuming from DLQ")
				return err
			}
		}
	}
}

func (p *DLQProcessor) Metrics() DLQMetrics {
	return DLQMetrics{
		ReplayedCount: atomic.LoadInt64(&p.handler.metrics.ReplayedCount),
		ParkedCount:   atomic.LoadInt64(&p.handler.metrics.ParkedCount),
		FailedCount:   atomic.LoadInt64(&p.handler.metrics.FailedCount),
	}
}

func (p *DLQProcessor) Close() error {
	if err := p.producer.Close(); err != nil {
		p.logger.WithError(err).Error("Failed to close producer")
	}
	return p.consumer.Close()
}

func (h *dlqConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session setup")
	return nil
}

func (h *dlqConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session cleanup")
	return nil
}

func (h *dlqConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
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
			return nil
		}
	}
}

// process reports whether the message may be marked. A failed replay leaves
// the message unmarked so the next session picks it up again.
func (h *dlqConsumerHandler) process(ctx context.Context, message *sarama.ConsumerMessage) bool {
	var metadata MessageMetadata
	if raw := headerValue(message.Headers, "metadata"); raw != nil {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			h.logger.WithError(err).Warn("Failed to unmarshal DLQ metadata")
		}
	}
	replays := replayCount(message.Headers)

	log := h.logger.WithFields(logrus.Fields{
		"key":            string(message.Key),
		"partition":      message.Partition,
		"offset":         message.Offset,
		"original_topic": metadata.OriginalTopic,
		"error_message":  metadata.ErrorMessage,
		"replay_count":   replays,
	})

	if replays >= MaxReplays {
		log.Error("Regeneration request exceeded maximum replays, parking it")
		atomic.AddInt64(&h.metrics.ParkedCount, 1)
		return true
	}

	log.WithField("delay", h.delay).Warn("Replaying regeneration request from DLQ")
	h.sleep(ctx, h.delay)
	if ctx.Err() != nil {
		return false
	}

	if err := h.replay(message, replays+1); err != nil {
		log.WithError(err).Error("Failed to replay DLQ message")
		atomic.AddInt64(&h.metrics.FailedCount, 1)
		return false
	}
	atomic.AddInt64(&h.metrics.ReplayedCount, 1)
	return true
}

func (h *dlqConsumerHandler) replay(message *sarama.ConsumerMessage, replays int) error {
	replayMessage := &sarama.ProducerMessage{
		Topic: h.replayTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(replayCountHeader), Value: []byte(strconv.Itoa(replays))},
			{Key: []byte("replayed_from_dlq"), Value: []byte("true")},
			{Key: []byte("replay_time"), Value: []byte(h.now().Format(time.RFC3339))},
		},
	}

	partition, offset, err := h.producer.SendMessage(replayMessage)
	if err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"replay_topic":     h.replayTopic,
		"replay_partition": partition,
		"replay_offset":    offset,
		"key":              string(message.Key),
	}).Info("Message replayed from DLQ")
	return nil
}

func headerValue(headers []*sarama.RecordHeader, key string) []byte {
	for _, header := range headers {
		if header != nil && string(header.Key) == key {
			return header.Value
		}
	}
	return nil
}

// replayCount reads the replay counter a message carries. Missing or
// malformed counters count as zero.
func replayCount(headers []*sarama.RecordHeader) int {
	n, err := strconv.Atoi(string(headerValue(headers, replayCountHeader)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
