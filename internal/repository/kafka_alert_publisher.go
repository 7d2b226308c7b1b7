package repository

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

const alertPublishTimeout = 5 * time.Second

// KafkaAlertPublisher fans alerts out to a Kafka topic, keyed by item
// so per-item ordering is preserved across partitions.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic, l: l}
}

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, a *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, alertPublishTimeout)
	defer cancel()

	key := []byte(fmt.Sprintf("%d", a.ItemID))
	if err := p.producer.Publish(ctx, p.topic, key, a); err != nil {
		if p.l != nil {
			p.l.Error("alert publish failed",
				applogger.String("topic", p.topic),
				applogger.Int64("item_id", a.ItemID),
				applogger.String("alert_type", a.AlertType),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)
