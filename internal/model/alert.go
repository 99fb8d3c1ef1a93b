// Alert records produced by the detection cycle and the lifecycle states they move through.
// Shared by the db, service and handler layers, so it lives in model.

package model

import "time"

// Severity - alert severity
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}

// AlertStatus - lifecycle state
//
// ACTIVE -> RESOLVED and ACTIVE -> DISMISSED are the only transitions;
// both targets are terminal.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "ACTIVE"
	AlertStatusResolved  AlertStatus = "RESOLVED"
	AlertStatusDismissed AlertStatus = "DISMISSED"
)

func (s AlertStatus) Valid() bool {
	return s == AlertStatusActive || s == AlertStatusResolved || s == AlertStatusDismissed
}

// Terminal reports whether no further transition is allowed from s.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusDismissed
}

// Alert - one anomaly alert for a (campaign, metric) pair
type Alert struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaignId"`
	MetricName MetricName `json:"metricName"`
	Severity   Severity   `json:"severity"`

	// Expected/Actual are a snapshot taken at detection time,
	// not a reference to a stored observation
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`

	Message     string      `json:"message"`
	Status      AlertStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	ResolvedAt  *time.Time  `json:"resolvedAt"`
	DismissedAt *time.Time  `json:"dismissedAt"`
}

// AlertListItem - alert joined with its campaign name for list views
type AlertListItem struct {
	Alert
	CampaignName string `json:"campaignName"`
}

// AlertFilter - optional filters for alert listing; zero values mean "any"
type AlertFilter struct {
	CampaignID string
	Severity   Severity
	Status     AlertStatus
	Start      *time.Time
	End        *time.Time
	Limit      int
}

// AlertEvent - payload published on alert lifecycle transitions
type AlertEvent struct {
	Type       string    `json:"type"` // created, resolved, dismissed
	Alert      Alert     `json:"alert"`
	OccurredAt time.Time `json:"occurredAt"`
}
