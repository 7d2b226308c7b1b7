package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const snapshotTable = "pricecast.price_snapshots"

// CHHistoryRepo reads price observations from ClickHouse.
type CHHistoryRepo struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHHistoryRepo(ch *pkgch.Client) *CHHistoryRepo {
	return &CHHistoryRepo{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHHistoryRepo) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHHistoryRepo) FetchHistory(ctx context.Context, itemID int64, days int) ([]models.PriceObservation, error) {
	start := time.Now()
	since := util.DaysAgo(days)
	const q = `
        SELECT ts, buy_price, sell_price, buy_orders, sell_orders
        FROM ` + snapshotTable + `
        WHERE item_id = ? AND ts >= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, itemID, since)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_history query error",
				applogger.Int64("item_id", itemID),
				applogger.Int("days", days),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceObservation, 0, 256)
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.Timestamp, &o.BuyPrice, &o.SellPrice, &o.BuyOrderCount, &o.SellOrderCount); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse fetch_history scan error",
					applogger.Int64("item_id", itemID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch_history rows error",
				applogger.Int64("item_id", itemID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse fetch_history ok",
			applogger.Int64("item_id", itemID),
			applogger.Int("days", days),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHHistoryRepo) FetchLatest(ctx context.Context, itemID int64) (models.PriceObservation, error) {
	const q = `
        SELECT ts, buy_price, sell_price, buy_orders, sell_orders
        FROM ` + snapshotTable + `
        WHERE item_id = ?
        ORDER BY ts DESC
        LIMIT 1
    `
	var o models.PriceObservation
	err := s.db.QueryRowContext(ctx, q, itemID).
		Scan(&o.Timestamp, &o.BuyPrice, &o.SellPrice, &o.BuyOrderCount, &o.SellOrderCount)
	if err != nil {
		if s.l != nil && err != sql.ErrNoRows {
			s.l.Error("clickhouse fetch_latest error",
				applogger.Int64("item_id", itemID),
				applogger.Error(err),
			)
		}
		return models.PriceObservation{}, fmt.Errorf("fetch latest: %w", err)
	}
	return o, nil
}

var _ domrepo.HistoryFetcher = (*CHHistoryRepo)(nil)
