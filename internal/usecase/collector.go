package usecase

import (
	"context"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/pkg/logger"
)

// Collector consumes the live market stream and keeps the newest tick
// per item, so predictions can quote the current price without a
// database round trip.
type Collector struct {
	stream  repository.MarketStream
	metrics repository.Metrics
	log     *logger.Logger

	mu     sync.RWMutex
	latest map[int64]models.PriceTick
}

// NewCollector creates a Collector over the stream.
func NewCollector(stream repository.MarketStream, metrics repository.Metrics, log *logger.Logger) *Collector {
	return &Collector{
		stream:  stream,
		metrics: metrics,
		log:     log,
		latest:  make(map[int64]models.PriceTick),
	}
}

// Run connects, subscribes and consumes ticks until the context ends.
// Stream errors trigger reconnects with linear backoff.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	defer c.stream.Close()

	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	ticks, errs := c.stream.Read(ctx)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			attempt = 0
			c.store(tick)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			attempt++
			c.log.Warn("market stream error",
				logger.Int("attempt", attempt),
				logger.Error(err))
			c.metrics.RecordError("stream")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("market stream reconnect failed", logger.Error(rerr))
				continue
			}
			if serr := c.stream.Subscribe(ctx); serr != nil {
				c.log.Error("market stream resubscribe failed", logger.Error(serr))
				continue
			}
			ticks, errs = c.stream.Read(ctx)
		}
	}
}

func (c *Collector) store(tick *models.PriceTick) {
	if tick == nil || tick.Price <= 0 {
		return
	}
	c.mu.Lock()
	c.latest[tick.ItemID] = *tick
	c.mu.Unlock()
	c.metrics.RecordLastPrice(tick.ItemID, tick.Price)
}

// Latest returns the newest tick seen for an item.
func (c *Collector) Latest(itemID int64) (models.PriceTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tick, ok := c.latest[itemID]
	return tick, ok
}
