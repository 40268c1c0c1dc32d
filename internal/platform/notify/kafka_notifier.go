package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"account_backend/internal/feature/auth/usecase"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// codeMessage is the JSON body consumed by the email/SMS delivery workers.
type codeMessage struct {
	AccountID        string    `json:"account_id"`
	Channel          string    `json:"channel"`
	Recipient        string    `json:"recipient"`
	Code             string    `json:"code"`
	Purpose          string    `json:"purpose"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	IssuedAt         time.Time `json:"issued_at"`
}

// KafkaNotifier publishes code deliveries to a topic keyed by account id.
type KafkaNotifier struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time
}

var _ usecase.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier wraps a writer.
func NewKafkaNotifier(writer MessageWriter, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger, now: time.Now}
}

// NewKafkaWriter builds an async writer so Notify does not wait for the broker.
func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("failed to deliver notification batch",
					zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

// Notify encodes the notification and hands it to the writer.
func (n *KafkaNotifier) Notify(ctx context.Context, msg usecase.Notification) error {
	body, err := json.Marshal(codeMessage{
		AccountID:        msg.AccountID,
		Channel:          string(msg.Channel),
		Recipient:        msg.Recipient,
		Code:             msg.Code,
		Purpose:          string(msg.Purpose),
		ExpiresInSeconds: int64(msg.ExpiresIn / time.Second),
		IssuedAt:         n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AccountID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "purpose", Value: []byte(msg.Purpose)},
		},
	}); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
