package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"signal-relay/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, newProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev MessageEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		assert.Equal(t, uint(7), ev.ChatID)
		assert.Equal(t, uint(42), ev.ID)
		return nil
	})

	pub := NewMessagePublisher(producer, "chat.messages")
	err := pub.PublishMessage(context.Background(), &models.Message{
		ID: 42, ChatID: 7, SenderID: 1, Content: "secret", Type: "text", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestPublishMessageFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, newProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewMessagePublisher(producer, "chat.messages")
	err := pub.PublishMessage(context.Background(), &models.Message{ID: 1, ChatID: 1})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestPublishMessageCancelled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, newProducerConfig())
	pub := NewMessagePublisher(producer, "chat.messages")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.PublishMessage(ctx, &models.Message{ID: 1}), context.Canceled)
	require.NoError(t, pub.Close())
}
