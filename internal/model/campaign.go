package model

import "time"

// Campaign - advertising campaign whose health the engine maintains
type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HealthScore int       `json:"healthScore"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Health score penalties per ACTIVE alert. A CRITICAL alert is also counted
// as active, so it costs both.
const (
	ActiveAlertPenalty   = 10
	CriticalAlertPenalty = 20
)

// HealthScore - clamp(0, 100, 100 - 10*active - 20*critical)
func HealthScore(active, critical int) int {
	score := 100 - ActiveAlertPenalty*active - CriticalAlertPenalty*critical
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CampaignStatus - dashboard status; alert severities plus OK
type CampaignStatus string

const CampaignStatusOK CampaignStatus = "OK"

// CampaignListResponse - campaign row with derived alert status
type CampaignListResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	HealthScore int            `json:"healthScore"`
	AlertStatus CampaignStatus `json:"alertStatus"`
}

// CampaignDetailResponse - campaign with recent observations, active alerts and suggestions
type CampaignDetailResponse struct {
	Campaign     Campaign       `json:"campaign"`
	AlertStatus  CampaignStatus `json:"alertStatus"`
	Observations []Observation  `json:"observations"`
	ActiveAlerts []Alert        `json:"activeAlerts"`
	Suggestions  []string       `json:"suggestions"`
}

// CreateCampaignRequest - POST /api/v1/campaigns payload
type CreateCampaignRequest struct {
	Name string `json:"name" binding:"required"`
}
