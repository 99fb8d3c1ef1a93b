package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adwatch/backend/internal/model"
)

// Memory - process-local store used by tests and STORE_DRIVER=memory
//
// One mutex guards everything, so CreateAlert's active-pair check and
// insert are a single critical section.
type Memory struct {
	mu           sync.Mutex
	campaigns    map[string]model.Campaign
	observations []model.Observation
	alerts       map[string]model.Alert
	settings     *model.Settings
	nextObsID    int64
}

func NewMemory() *Memory {
	return &Memory{
		campaigns: make(map[string]model.Campaign),
		alerts:    make(map[string]model.Alert),
	}
}

func (m *Memory) EnsureSchema(ctx context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].HealthScore != list[j].HealthScore {
			return list[i].HealthScore < list[j].HealthScore
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (m *Memory) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("get campaign %s: %w", id, model.ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fillCampaign(&c)
	if _, exists := m.campaigns[c.ID]; exists {
		return nil, fmt.Errorf("create campaign %s: already exists", c.ID)
	}
	m.campaigns[c.ID] = c
	return &c, nil
}

func (m *Memory) UpdateCampaignHealthScore(ctx context.Context, id string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("update health score %s: %w", id, model.ErrNotFound)
	}
	c.HealthScore = score
	m.campaigns[id] = c
	return nil
}

// RecomputeHealthScore counts and writes under one lock.
func (m *Memory) RecomputeHealthScore(ctx context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID]
	if !ok {
		return 0, fmt.Errorf("recompute health score %s: %w", campaignID, model.ErrNotFound)
	}
	var total, critical int
	for _, a := range m.alerts {
		if a.CampaignID != campaignID || a.Status != model.AlertStatusActive {
			continue
		}
		total++
		if a.Severity == model.SeverityCritical {
			critical++
		}
	}
	c.HealthScore = model.HealthScore(total, critical)
	m.campaigns[campaignID] = c
	return c.HealthScore, nil
}

func (m *Memory) RecordObservation(ctx context.Context, obs model.Observation) (*model.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[obs.CampaignID]; !ok {
		return nil, fmt.Errorf("record observation for %s: %w", obs.CampaignID, model.ErrNotFound)
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}
	m.nextObsID++
	obs.ID = m.nextObsID
	m.observations = append(m.observations, obs)
	return &obs, nil
}

func (m *Memory) LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error) {
	return m.observationsWhere(limit, func(o model.Observation) bool {
		return o.CampaignID == campaignID && o.Name == metric
	}), nil
}

func (m *Memory) RecentObservations(ctx context.Context, campaignID string, limit int) ([]model.Observation, error) {
	return m.observationsWhere(limit, func(o model.Observation) bool {
		return o.CampaignID == campaignID
	}), nil
}

func (m *Memory) observationsWhere(limit int, match func(model.Observation) bool) []model.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []model.Observation{}
	for _, o := range m.observations {
		if match(o) {
			list = append(list, o)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID > list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (m *Memory) FindActiveAlert(ctx context.Context, campaignID string, metric model.MetricName, since time.Time) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.CampaignID == campaignID && a.MetricName == metric &&
			a.Status == model.AlertStatusActive && !a.Timestamp.Before(since) {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateAlert(ctx context.Context, a model.Alert) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[a.CampaignID]; !ok {
		return nil, fmt.Errorf("create alert for %s: %w", a.CampaignID, model.ErrNotFound)
	}
	for _, existing := range m.alerts {
		if existing.CampaignID == a.CampaignID && existing.MetricName == a.MetricName &&
			existing.Status == model.AlertStatusActive {
			return nil, fmt.Errorf("create alert %s/%s: %w", a.CampaignID, a.MetricName, model.ErrDuplicateActive)
		}
	}
	fillAlert(&a)
	m.alerts[a.ID] = a
	return &a, nil
}

func (m *Memory) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("get alert %s: %w", id, model.ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) ListAlerts(ctx context.Context, f model.AlertFilter) ([]model.AlertListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []model.AlertListItem{}
	for _, a := range m.alerts {
		if !matchAlert(a, f) {
			continue
		}
		list = append(list, model.AlertListItem{Alert: a, CampaignName: m.campaigns[a.CampaignID].Name})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID > list[j].ID
	})
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list, nil
}

func matchAlert(a model.Alert, f model.AlertFilter) bool {
	switch {
	case f.CampaignID != "" && a.CampaignID != f.CampaignID:
		return false
	case f.Severity != "" && a.Severity != f.Severity:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Start != nil && a.Timestamp.Before(*f.Start):
		return false
	case f.End != nil && a.Timestamp.After(*f.End):
		return false
	}
	return true
}

func (m *Memory) ListActiveAlerts(ctx context.Context, campaignID string) ([]model.Alert, error) {
	items, err := m.ListAlerts(ctx, model.AlertFilter{CampaignID: campaignID, Status: model.AlertStatusActive})
	if err != nil {
		return nil, err
	}
	list := make([]model.Alert, 0, len(items))
	for _, it := range items {
		list = append(list, it.Alert)
	}
	return list, nil
}

func (m *Memory) TransitionAlert(ctx context.Context, id string, to model.AlertStatus, at time.Time) (*model.Alert, error) {
	if _, err := transitionColumn(to); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("transition alert %s: %w", id, model.ErrNotFound)
	}
	if a.Status != model.AlertStatusActive {
		return nil, fmt.Errorf("alert %s is %s: %w", id, a.Status, model.ErrInvalidTransition)
	}
	a.Status = to
	if to == model.AlertStatusResolved {
		a.ResolvedAt = &at
	} else {
		a.DismissedAt = &at
	}
	m.alerts[id] = a
	return &a, nil
}

func (m *Memory) CountActiveAlerts(ctx context.Context, campaignID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total, critical int
	for _, a := range m.alerts {
		if a.CampaignID != campaignID || a.Status != model.AlertStatusActive {
			continue
		}
		total++
		if a.Severity == model.SeverityCritical {
			critical++
		}
	}
	return total, critical, nil
}

func (m *Memory) GetSettings(ctx context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings == nil {
		return nil, model.ErrConfigMissing
	}
	s := *m.settings
	return &s, nil
}

func (m *Memory) SaveSettings(ctx context.Context, s model.Settings) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = model.DefaultSettingsID
	}
	s.UpdatedAt = time.Now().UTC()
	m.settings = &s
	out := s
	return &out, nil
}
