package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adwatch/backend/internal/model"
)

// DetailObservationLimit - readings shown on the campaign detail view
const DetailObservationLimit = 30

type campaignStore interface {
	CampaignStore
	ObservationStore
	ListActiveAlerts(ctx context.Context, campaignID string) ([]model.Alert, error)
}

type CampaignService struct {
	store    campaignStore
	settings *SettingsService
}

func NewCampaignService(store campaignStore, settings *SettingsService) *CampaignService {
	return &CampaignService{store: store, settings: settings}
}

// AlertStatus - severity of the newest ACTIVE alert, else a band of the health score
func AlertStatus(active []model.Alert, healthScore int) model.CampaignStatus {
	if len(active) > 0 {
		newest := active[0]
		for _, a := range active[1:] {
			if a.Timestamp.After(newest.Timestamp) {
				newest = a
			}
		}
		return model.CampaignStatus(newest.Severity)
	}
	switch {
	case healthScore < 50:
		return model.CampaignStatus(model.SeverityCritical)
	case healthScore < 70:
		return model.CampaignStatus(model.SeverityWarning)
	case healthScore < 85:
		return model.CampaignStatus(model.SeverityInfo)
	}
	return model.CampaignStatusOK
}

// List - campaigns ordered by health score ascending with their derived status
func (s *CampaignService) List(ctx context.Context) ([]model.CampaignListResponse, error) {
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CampaignListResponse, 0, len(campaigns))
	for _, c := range campaigns {
		active, err := s.store.ListActiveAlerts(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CampaignListResponse{
			ID:          c.ID,
			Name:        c.Name,
			HealthScore: c.HealthScore,
			AlertStatus: AlertStatus(active, c.HealthScore),
		})
	}
	return out, nil
}

// Get - campaign with recent readings, active alerts and suggestions
func (s *CampaignService) Get(ctx context.Context, id string) (*model.CampaignDetailResponse, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	obs, err := s.store.RecentObservations(ctx, id, DetailObservationLimit)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ListActiveAlerts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CampaignDetailResponse{
		Campaign:     *c,
		AlertStatus:  AlertStatus(active, c.HealthScore),
		Observations: obs,
		ActiveAlerts: active,
		Suggestions:  Suggestions(active, c.HealthScore),
	}, nil
}

func (s *CampaignService) Create(ctx context.Context, name string) (*model.Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", ErrInvalidInput)
	}
	return s.store.CreateCampaign(ctx, model.Campaign{Name: name, HealthScore: 100})
}

// RecordObservation appends a reading stamped with the settings in effect now.
func (s *CampaignService) RecordObservation(ctx context.Context, campaignID string, req model.RecordObservationRequest) (*model.Observation, error) {
	metric, ok := model.ParseMetricName(req.Name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, req.Name)
	}
	if req.Value == nil {
		return nil, fmt.Errorf("%w: value is required", ErrInvalidInput)
	}
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	ms := settings.For(metric)

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	return s.store.RecordObservation(ctx, model.Observation{
		CampaignID:  campaignID,
		Name:        metric,
		Value:       *req.Value,
		Threshold:   ms.Threshold,
		Sensitivity: ms.Sensitivity,
		Timestamp:   ts,
	})
}
