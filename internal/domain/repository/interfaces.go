package repository

import (
	"context"

	"PriceCast/internal/domain/models"
)

// HistoryFetcher provides ordered historical price observations for an item.
type HistoryFetcher interface {
	// FetchHistory returns up to `days` days of observations ordered by
	// timestamp ascending. An empty slice means no usable data.
	FetchHistory(ctx context.Context, itemID int64, days int) ([]models.PriceObservation, error)
	// FetchLatest returns the most recent single observation.
	FetchLatest(ctx context.Context, itemID int64) (models.PriceObservation, error)
}

// ModelStore persists trained model records. One blob per item, written
// atomically; a failed write leaves the previous blob intact.
type ModelStore interface {
	Save(record *models.ModelRecord) error
	Load(itemID int64) (*models.ModelRecord, error)
	Delete(itemID int64) error
	SaveMetrics(record *models.ModelRecord) error
	List() ([]int64, error)
}

// AlertStore persists alerts append-only, one file per triggered event.
type AlertStore interface {
	Append(alert *models.Alert) error
}

// AlertPublisher pushes triggered alerts to an external bus.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert) error
	Close() error
}

// MarketStream is a live feed of price ticks.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordTraining(strategy string)
	RecordError(kind string)
	RecordLastPrice(itemID int64, price float64)
	RecordLatency(op string, seconds float64)
	RecordAlert(severity string)
	RecordCacheSize(n int)
}
