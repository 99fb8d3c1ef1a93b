package model

import "time"

// MetricName - tracked campaign metric (display name as stored)
type MetricName string

const (
	MetricCTR         MetricName = "CTR"
	MetricCPC         MetricName = "CPC"
	MetricROAS        MetricName = "ROAS"
	MetricConversions MetricName = "Conversions"
	MetricSpend       MetricName = "Spend"
	MetricBounceRate  MetricName = "Bounce Rate"
)

// TrackedMetrics is the fixed scan order used by every detection cycle.
var TrackedMetrics = []MetricName{
	MetricCTR,
	MetricCPC,
	MetricROAS,
	MetricConversions,
	MetricSpend,
	MetricBounceRate,
}

// SettingsKey - prefix used by the settings record (ctrSensitivity, bounceThreshold, ...)
func (m MetricName) SettingsKey() string {
	switch m {
	case MetricCTR:
		return "ctr"
	case MetricCPC:
		return "cpc"
	case MetricROAS:
		return "roas"
	case MetricConversions:
		return "conversion"
	case MetricSpend:
		return "spend"
	case MetricBounceRate:
		return "bounce"
	}
	return ""
}

func (m MetricName) Valid() bool {
	return m.SettingsKey() != ""
}

// ParseMetricName accepts either the display name or the settings key.
func ParseMetricName(s string) (MetricName, bool) {
	for _, m := range TrackedMetrics {
		if string(m) == s || m.SettingsKey() == s {
			return m, true
		}
	}
	return "", false
}

// Observation - one immutable metric reading for a campaign
type Observation struct {
	ID          int64      `json:"id"`
	CampaignID  string     `json:"campaignId"`
	Name        MetricName `json:"name"`
	Value       float64    `json:"value"`
	Threshold   float64    `json:"threshold"`
	Sensitivity int        `json:"sensitivity"`
	Timestamp   time.Time  `json:"timestamp"`
}

// RecordObservationRequest - POST /api/v1/campaigns/:id/metrics payload
type RecordObservationRequest struct {
	Name      string     `json:"name" binding:"required"`
	Value     *float64   `json:"value" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
}
