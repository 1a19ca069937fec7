package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
)

const (
	schemaVersion = "1.0"

	// VerificationCodeRequested is consumed by the notification service, which renders and sends the e-mail.
	VerificationCodeRequested = "notification.verification_code.requested"
)

// NotificationPublisher hands verification codes to the notification service over Kafka.
type NotificationPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewNotificationPublisher constructs a Kafka-backed code mailer.
func NewNotificationPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type verificationCodePayload struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SendVerificationCode enqueues the code message. It returns once the message
// is accepted by the producer or ctx ends.
func (p *NotificationPublisher) SendVerificationCode(ctx context.Context, msg domain.VerificationCodeMessage) error {
	id := msg.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	ts := msg.RequestedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: VerificationCodeRequested,
		AccountID: msg.AccountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: verificationCodePayload{
			Email:       msg.Email,
			DisplayName: msg.DisplayName,
			Code:        msg.Code,
			ExpiresAt:   msg.ExpiresAt.UTC(),
		},
		Metadata: metadata,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(VerificationCodeRequested),
		Key:   sarama.StringEncoder(msg.AccountID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(VerificationCodeRequested)},
			{Key: []byte("event_id"), Value: []byte(id)},
		},
	}

	select {
	case p.producer.Input() <- message:
		p.logger.Debug("verification code queued",
			zap.String("event_id", id),
			zap.String("email", logger.MaskEmail(msg.Email)),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue verification code: %w", ctx.Err())
	}
}

var _ port.CodeMailer = (*NotificationPublisher)(nil)
