package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/pkg/logger"
)

// recentSummaryCap bounds the alert list embedded in a summary.
const recentSummaryCap = 10

// RetrainTrigger asks the lifecycle layer to schedule a full retrain,
// typically through the job queue.
type RetrainTrigger interface {
	TriggerRetrain(ctx context.Context, itemID int64, reason string) error
}

// Engine evaluates the rule set against merged item metrics, keeps the
// recent alert index in memory and fans triggered alerts out to the
// store and the publisher.
type Engine struct {
	mu        sync.RWMutex
	rules     []Rule
	alerts    map[string]*models.Alert
	order     []string
	lastFired map[string]time.Time

	cooldown  time.Duration
	maxAlerts int
	store     repository.AlertStore
	publisher repository.AlertPublisher
	trigger   RetrainTrigger
	metrics   repository.Metrics
	log       *logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCooldown suppresses repeat alerts for the same item and rule
// within d.
func WithCooldown(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.cooldown = d
		}
	}
}

// WithPublisher fans triggered alerts out to an event bus.
func WithPublisher(p repository.AlertPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithRetrainTrigger schedules a full retrain when severe drift fires.
func WithRetrainTrigger(t RetrainTrigger) EngineOption {
	return func(e *Engine) { e.trigger = t }
}

// WithRules replaces the default rule set.
func WithRules(rules []Rule) EngineOption {
	return func(e *Engine) {
		if len(rules) > 0 {
			e.rules = rules
		}
	}
}

// NewEngine creates an Engine with the default rules, a 1 hour cooldown
// and an in-memory index capped at 500 alerts.
func NewEngine(store repository.AlertStore, metrics repository.Metrics, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:     DefaultRules(),
		alerts:    make(map[string]*models.Alert),
		lastFired: make(map[string]time.Time),
		cooldown:  time.Hour,
		maxAlerts: 500,
		store:     store,
		metrics:   metrics,
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule against the merged metrics and returns the
// alerts that fired. Cooldown suppression, persistence, publishing and
// the retrain trigger all happen here.
func (e *Engine) Evaluate(ctx context.Context, itemID int64, merged map[string]any) []*models.Alert {
	now := time.Now()
	var fired []*models.Alert

	for _, rule := range e.rules {
		if !rule.When(merged) {
			continue
		}
		if e.onCooldown(itemID, rule.Name, now) {
			continue
		}

		alert := &models.Alert{
			ID:          uuid.NewString(),
			Timestamp:   now,
			ItemID:      itemID,
			AlertType:   rule.Name,
			Severity:    rule.Severity,
			Title:       rule.Title,
			Message:     rule.Describe(merged),
			Metrics:     merged,
			Recommended: rule.Recommended,
		}
		e.register(alert)
		fired = append(fired, alert)

		if e.metrics != nil {
			e.metrics.RecordAlert(alert.Severity)
		}
		if e.store != nil {
			if err := e.store.Append(alert); err != nil {
				e.log.Error("persist alert failed",
					logger.String("alert_id", alert.ID),
					logger.Int64("item_id", itemID),
					logger.Error(err))
			}
		}
		if e.publisher != nil {
			if err := e.publisher.PublishAlert(ctx, alert); err != nil {
				e.log.Warn("publish alert failed",
					logger.String("alert_type", alert.AlertType),
					logger.Error(err))
			}
		}
		if e.trigger != nil && rule.Name == "severe_drift" {
			reason := fmt.Sprintf("severe drift: %s", alert.Message)
			if err := e.trigger.TriggerRetrain(ctx, itemID, reason); err != nil {
				e.log.Warn("retrain trigger failed",
					logger.Int64("item_id", itemID),
					logger.Error(err))
			}
		}

		e.log.Warn("alert fired",
			logger.String("alert_type", alert.AlertType),
			logger.String("severity", alert.Severity),
			logger.Int64("item_id", itemID),
			logger.String("message", alert.Message))
	}
	return fired
}

func (e *Engine) onCooldown(itemID int64, rule string, now time.Time) bool {
	key := fmt.Sprintf("%d:%s", itemID, rule)
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return true
	}
	e.lastFired[key] = now
	return false
}

func (e *Engine) register(alert *models.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts[alert.ID] = alert
	e.order = append(e.order, alert.ID)
	for len(e.order) > e.maxAlerts {
		delete(e.alerts, e.order[0])
		e.order = e.order[1:]
	}
}

// List returns alerts newest first, optionally filtered by item. A zero
// itemID means all items.
func (e *Engine) List(itemID int64) []*models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*models.Alert, 0, len(e.order))
	for i := len(e.order) - 1; i >= 0; i-- {
		a := e.alerts[e.order[i]]
		if itemID != 0 && a.ItemID != itemID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Acknowledge marks an alert as handled by actor.
func (e *Engine) Acknowledge(id, actor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s not found", id)
	}
	if a.Acknowledged {
		return nil
	}
	now := time.Now()
	a.Acknowledged = true
	a.AcknowledgedBy = actor
	a.AcknowledgedAt = &now
	return nil
}

// Summary aggregates the in-memory index.
func (e *Engine) Summary() models.AlertSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := models.AlertSummary{
		Total:      len(e.order),
		BySeverity: make(map[string]int),
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for i := len(e.order) - 1; i >= 0; i-- {
		a := e.alerts[e.order[i]]
		s.BySeverity[a.Severity]++
		if !a.Acknowledged {
			s.Unacknowledged++
		}
		if a.Timestamp.After(cutoff) && len(s.Recent) < recentSummaryCap {
			s.Recent = append(s.Recent, *a)
		}
	}
	return s
}
