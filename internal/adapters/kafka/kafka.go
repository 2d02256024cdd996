package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"signal-relay/internal/models"

	"github.com/IBM/sarama"
)

// MessageEvent is the record written for every persisted chat message.
type MessageEvent struct {
	ID        uint   `json:"id"`
	ChatID    uint   `json:"chatId"`
	SenderID  uint   `json:"senderId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	TTL       int    `json:"ttl"`
}

// MessagePublisher writes message events keyed by chat id so a chat's events
// stay on one partition in order. Content is deliberately left out.
type MessagePublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "signal-relay"
	config.Producer.MaxMessageBytes = 1000000
	return config
}

func InitKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(brokers, newProducerConfig())
}

func NewMessagePublisher(producer sarama.SyncProducer, topic string) *MessagePublisher {
	return &MessagePublisher{producer: producer, topic: topic}
}

func (p *MessagePublisher) PublishMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(MessageEvent{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Type:      msg.Type,
		Timestamp: msg.Timestamp.UnixMilli(),
		TTL:       msg.TTL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(msg.ChatID), 10)),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message event: %w", err)
	}
	return nil
}

func (p *MessagePublisher) Close() error {
	return p.producer.Close()
}
