package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEnqueueRegeneration(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event RegenerationRequestedEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Request.DocumentID != "SR-0042" || event.EventID == "" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})
	producer := NewKafkaProducerFrom(mock, testLogger())
	defer producer.Close()

	err := producer.EnqueueRegeneration(context.Background(), models.RegenerationRequest{
		DocumentID: "SR-0042",
		Reason:     "upload failed",
	})

	require.NoError(t, err)
}

func TestSendPublishesAnnouncement(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event DocumentCreatedEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Message != "<b>New</b>" {
			return fmt.Errorf("unexpected message %q", event.Message)
		}
		return nil
	})
	producer := NewKafkaProducerFrom(mock, testLogger())
	defer producer.Close()

	require.NoError(t, producer.Send(context.Background(), DocumentCreatedTopic, "<b>New</b>"))
}

func TestSendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig())
	mock.ExpectSendMessageAndFail(errors.New("broker down"))
	producer := NewKafkaProducerFrom(mock, testLogger())
	defer producer.Close()

	err := producer.Send(context.Background(), DocumentCreatedTopic, "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
