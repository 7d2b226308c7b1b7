package usecase

import (
	"context"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/logger"
)

// batchWorkers is the fan-out width of a batch prediction run.
const batchWorkers = 8

// BatchPredict forecasts many items concurrently. Per-item failures
// land in their outcome bucket instead of failing the run.
func (m *Manager) BatchPredict(ctx context.Context, itemIDs []int64, days int, mode string) *models.BatchResult {
	started := time.Now()
	result := &models.BatchResult{
		TotalRequested: len(itemIDs),
		Stats:          make(map[string]int),
	}
	if len(itemIDs) == 0 {
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	jobs := make(chan int64)

	workers := batchWorkers
	if len(itemIDs) < workers {
		workers = len(itemIDs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for itemID := range jobs {
				forecast, bucket := m.predictOne(ctx, itemID, days, mode)
				mu.Lock()
				result.Stats[bucket]++
				if forecast != nil {
					result.Results = append(result.Results, forecast)
					result.TotalSuccess++
				}
				mu.Unlock()
			}
		}()
	}

	for _, itemID := range itemIDs {
		select {
		case jobs <- itemID:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return result
		}
	}
	close(jobs)
	wg.Wait()

	m.metrics.RecordLatency("batch_predict", time.Since(started).Seconds())
	m.log.Info("batch prediction finished",
		logger.Int("requested", result.TotalRequested),
		logger.Int("succeeded", result.TotalSuccess),
		logger.Any("stats", result.Stats))
	return result
}

func (m *Manager) predictOne(ctx context.Context, itemID int64, days int, mode string) (*models.Forecast, string) {
	forecast, source, err := m.Predict(ctx, itemID, days, mode)
	if err != nil {
		bucket := source
		if bucket == "" {
			bucket = models.OutcomeError
		}
		m.log.Warn("batch item failed",
			logger.Int64("item_id", itemID),
			logger.String("bucket", bucket),
			logger.Error(err))
		return nil, bucket
	}
	return forecast, source
}

// TrainSweep runs a training cycle over every item the store knows,
// serially. Used by the scheduler for the nightly refresh.
func (m *Manager) TrainSweep(ctx context.Context) map[string]int {
	stats := make(map[string]int)
	itemIDs, err := m.store.List()
	if err != nil {
		m.log.Error("list models for sweep failed", logger.Error(err))
		return stats
	}
	for _, itemID := range itemIDs {
		if ctx.Err() != nil {
			return stats
		}
		_, strategy, err := m.Train(ctx, itemID)
		if err != nil {
			stats[trainOutcome(err)]++
			continue
		}
		stats[strategy]++
	}
	m.log.Info("training sweep finished", logger.Any("stats", stats))
	return stats
}
