package service

import (
	"context"
	"time"

	"github.com/adwatch/backend/internal/model"
)

// CampaignStore - campaign reads and health score writes
type CampaignStore interface {
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error)
	UpdateCampaignHealthScore(ctx context.Context, id string, score int) error
	// RecomputeHealthScore applies model.HealthScore to the campaign's ACTIVE
	// alerts and stores the result atomically.
	RecomputeHealthScore(ctx context.Context, campaignID string) (int, error)
}

// ObservationStore - append-only metric readings
type ObservationStore interface {
	RecordObservation(ctx context.Context, obs model.Observation) (*model.Observation, error)
	// LatestObservations returns up to limit readings for one metric, newest first.
	LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error)
	// RecentObservations returns up to limit readings across all metrics, newest first.
	RecentObservations(ctx context.Context, campaignID string, limit int) ([]model.Observation, error)
}

// AlertStore - alert persistence
//
// CreateAlert must enforce at most one ACTIVE alert per (campaign, metric)
// atomically and return model.ErrDuplicateActive when one already exists.
// TransitionAlert is a compare-and-swap from ACTIVE.
type AlertStore interface {
	FindActiveAlert(ctx context.Context, campaignID string, metric model.MetricName, since time.Time) (*model.Alert, error)
	CreateAlert(ctx context.Context, a model.Alert) (*model.Alert, error)
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	ListAlerts(ctx context.Context, f model.AlertFilter) ([]model.AlertListItem, error)
	ListActiveAlerts(ctx context.Context, campaignID string) ([]model.Alert, error)
	TransitionAlert(ctx context.Context, id string, to model.AlertStatus, at time.Time) (*model.Alert, error)
	CountActiveAlerts(ctx context.Context, campaignID string) (total, critical int, err error)
}

// SettingsStore - singleton settings record; GetSettings returns model.ErrConfigMissing when absent
type SettingsStore interface {
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) (*model.Settings, error)
}

// Store - everything the engine needs from persistence
type Store interface {
	CampaignStore
	ObservationStore
	AlertStore
	SettingsStore
	EnsureSchema(ctx context.Context) error
	Close()
}
