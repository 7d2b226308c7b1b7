package models

import "time"

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one triggered rule evaluation. Immutable except for the
// acknowledgement fields; the store is append-only.
type Alert struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	ItemID         int64          `json:"item_id"`
	AlertType      string         `json:"alert_type"`
	Severity       string         `json:"severity"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Metrics        map[string]any `json:"metrics,omitempty"`
	Recommended    string         `json:"recommended_action"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
}

// AlertSummary is the severity-bucketed overview of the alert index.
type AlertSummary struct {
	Total          int            `json:"total_alerts"`
	Unacknowledged int            `json:"unacknowledged"`
	BySeverity     map[string]int `json:"by_severity"`
	Recent         []Alert        `json:"recent_alerts"`
}
