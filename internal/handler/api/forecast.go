package api

import (
	"errors"
	"fmt"
	"time"

	models "PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// respCacheTTL bounds how stale a served forecast can be.
const respCacheTTL = time.Minute

// ForecastHandler exposes the model lifecycle over HTTP.
type ForecastHandler struct {
	logger       *xlogger.Logger
	manager      *usecase.Manager
	respCache    cache.Service
	trainLimiter *ratelimit.Limiter
	started      time.Time
}

func NewForecastHandler(logger *xlogger.Logger, manager *usecase.Manager, respCache cache.Service) *ForecastHandler {
	return &ForecastHandler{
		logger:       logger,
		manager:      manager,
		respCache:    respCache,
		trainLimiter: ratelimit.New(),
		started:      time.Now(),
	}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/predict/:item_id", h.Predict)
	g.POST("/batch-predict", h.BatchPredict)
	g.POST("/train/:item_id", h.Train)
	g.POST("/clear-cache", h.ClearCache)
	g.GET("/cache-status", h.CacheStatus)
	g.GET("/alerts", h.Alerts)
	g.POST("/alerts/:id/ack", h.AckAlert)
	g.GET("/alerts/summary", h.AlertSummary)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"cached_models":  h.manager.CacheStatus().Size,
	})
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := cache.GenerateKeyWithParams("forecast", req.ItemID, req.Days, req.Mode)
	if h.respCache != nil {
		var cached any
		if err := h.respCache.Get(c.Request().Context(), key, &cached); err == nil {
			return xhttp.SuccessResponse(c, cached)
		}
	}

	forecast, source, err := h.manager.Predict(c.Request().Context(), req.ItemID, req.Days, req.Mode)
	if err != nil {
		h.logger.Error("predict usecase error",
			xlogger.Int64("item_id", req.ItemID),
			xlogger.String("bucket", source),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapUsecaseError(err))
	}

	payload := map[string]any{
		"source":   source,
		"forecast": forecast,
	}
	if h.respCache != nil {
		_ = h.respCache.Set(c.Request().Context(), key, payload, respCacheTTL)
	}
	return xhttp.SuccessResponse(c, payload)
}

func (h *ForecastHandler) BatchPredict(c echo.Context) error {
	req := &models.BatchPredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result := h.manager.BatchPredict(c.Request().Context(), req.ItemIDs, req.Days, req.Mode)
	return xhttp.SuccessResponse(c, result)
}

func (h *ForecastHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// training burns CPU; 3 burst, one refill per minute per item
	if !h.trainLimiter.Allow(fmt.Sprintf("train:%d", req.ItemID), 3, 1.0/60) {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many training requests for item", 429))
	}

	record, strategy, err := h.manager.Train(c.Request().Context(), req.ItemID)
	if err != nil {
		h.logger.Error("train usecase error",
			xlogger.Int64("item_id", req.ItemID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapUsecaseError(err))
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"strategy": strategy,
		"metrics":  record.Metrics,
		"weights":  record.Weights,
	})
}

func (h *ForecastHandler) ClearCache(c echo.Context) error {
	if h.respCache != nil {
		_ = h.respCache.DeleteByPattern(c.Request().Context(), "forecast:*")
	}
	evicted := h.manager.ClearCache()
	h.logger.Info("model cache cleared", xlogger.Int("evicted", evicted))
	return xhttp.SuccessResponse(c, map[string]any{"evicted": evicted})
}

func (h *ForecastHandler) CacheStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.manager.CacheStatus())
}

func (h *ForecastHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	alerts := h.manager.Alerts().List(req.ItemID)
	if since := xhttp.ParseTimeDefault(req.Since, time.Time{}); !since.IsZero() {
		filtered := alerts[:0]
		for _, a := range alerts {
			if a.Timestamp.After(since) {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *ForecastHandler) AckAlert(c echo.Context) error {
	req := &models.AckAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.manager.Alerts().Acknowledge(req.AlertID, req.Actor); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("alert %s not found", req.AlertID))
	}
	return xhttp.SuccessResponse(c, map[string]any{"acknowledged": req.AlertID})
}

func (h *ForecastHandler) AlertSummary(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.manager.Alerts().Summary())
}

// mapUsecaseError turns lifecycle errors into HTTP application errors.
// Data guards are client-visible conditions, not server faults.
func mapUsecaseError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrDataInsufficient):
		return xhttp.NewAppError("ERR_DATA_INSUFFICIENT", "", "not enough price history", 422).WithError(err)
	case errors.Is(err, usecase.ErrDataStale):
		return xhttp.NewAppError("ERR_DATA_STALE", "", "price history is stale", 422).WithError(err)
	case errors.Is(err, usecase.ErrLowLiquidity):
		return xhttp.NewAppError("ERR_LOW_LIQUIDITY", "", "order book too thin to model", 422).WithError(err)
	case errors.Is(err, usecase.ErrPriceStagnation):
		return xhttp.NewAppError("ERR_PRICE_STAGNATION", "", "price has not moved recently", 422).WithError(err)
	case errors.Is(err, usecase.ErrNoModel):
		return xhttp.NotFoundError("no trained model for item")
	case errors.Is(err, usecase.ErrTrainingFailed):
		return xhttp.InternalError("training failed")
	default:
		return err
	}
}
