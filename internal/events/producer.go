package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"marketplace/internal/logger"
	"marketplace/internal/models"
)

const (
	TopicOrderCreated    = "order.created"
	TopicPaymentCaptured = "payment.captured"
	TopicReturnRequested = "return.requested"
	TopicReturnReviewed  = "return.reviewed"
	TopicReportCreated   = "report.created"
	TopicUserDeactivated = "user.deactivated"
)

// Topics lists every stream the service writes to.
var Topics = []string{
	TopicOrderCreated,
	TopicPaymentCaptured,
	TopicReturnRequested,
	TopicReturnReviewed,
	TopicReportCreated,
	TopicUserDeactivated,
}

// Publisher is the full event surface of the service. Producer implements
// it against Kafka; Nop drops everything when streaming is disabled.
type Publisher interface {
	PublishOrderCreated(order models.Order) error
	PublishPaymentCaptured(order models.Order) error
	PublishReturnRequested(req models.ReturnRequest) error
	PublishReturnReviewed(req models.ReturnRequest) error
	PublishReportCreated(report models.Report) error
	PublishUserDeactivated(userID string) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishOrderCreated(models.Order) error            { return nil }
func (Nop) PublishPaymentCaptured(models.Order) error         { return nil }
func (Nop) PublishReturnRequested(models.ReturnRequest) error { return nil }
func (Nop) PublishReturnReviewed(models.ReturnRequest) error  { return nil }
func (Nop) PublishReportCreated(models.Report) error          { return nil }
func (Nop) PublishUserDeactivated(string) error               { return nil }

// Producer streams marketplace lifecycle events to Kafka, one writer per
// topic.
type Producer struct {
	writers map[string]*kafka.Writer
	logger  *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writers := make(map[string]*kafka.Writer, len(Topics))
	for _, topic := range Topics {
		writers[topic] = kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{writers: writers, logger: log}
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.logger.Debug("KAFKA", fmt.Sprintf("Publishing to [%s]: %s", topic, string(msgBytes)))

	return p.writers[topic].WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams a freshly placed order.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(TopicOrderCreated, order.ID, order)
}

// PublishPaymentCaptured streams an order whose payment just settled.
func (p *Producer) PublishPaymentCaptured(order models.Order) error {
	return p.publish(TopicPaymentCaptured, order.ID, order)
}

// PublishReturnRequested streams a newly opened return request.
func (p *Producer) PublishReturnRequested(req models.ReturnRequest) error {
	return p.publish(TopicReturnRequested, req.ID, req)
}

// PublishReturnReviewed streams a return request decision.
func (p *Producer) PublishReturnReviewed(req models.ReturnRequest) error {
	return p.publish(TopicReturnReviewed, req.ID, req)
}

// PublishReportCreated streams a new report.
func (p *Producer) PublishReportCreated(report models.Report) error {
	return p.publish(TopicReportCreated, report.ID, report)
}

// PublishUserDeactivated streams an account deactivation.
func (p *Producer) PublishUserDeactivated(userID string) error {
	return p.publish(TopicUserDeactivated, userID, map[string]string{"user_id": userID})
}

// Close shuts down every topic writer.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
