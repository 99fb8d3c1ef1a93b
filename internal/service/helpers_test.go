package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adwatch/backend/internal/db"
	"github.com/adwatch/backend/internal/detector"
	"github.com/adwatch/backend/internal/model"
	"github.com/stretchr/testify/require"
)

// engine wires every service around one store the way main does.
type engine struct {
	store     Store
	settings  *SettingsService
	health    *HealthScorer
	dedup     *Deduplicator
	lifecycle *AlertLifecycle
	scanner   *Scanner
	events    *recordingPublisher
}

func newEngine(t *testing.T, store Store) *engine {
	t.Helper()
	require.NoError(t, store.EnsureSchema(context.Background()))

	e := &engine{store: store, events: &recordingPublisher{}}
	e.settings = NewSettingsService(store)
	e.health = NewHealthScorer(store, nil)
	e.dedup = NewDeduplicator(store, time.Hour)
	e.lifecycle = NewAlertLifecycle(store, e.health, e.events, nil)
	e.scanner = NewScanner(store, e.settings, detector.NewScorer(detector.DefaultSeverityBands),
		e.dedup, e.lifecycle, e.health,
		ScannerConfig{Workers: 4, HistorySize: 10, MinHistory: 5, CampaignTimeout: 5 * time.Second}, nil)
	return e
}

func newMemoryEngine(t *testing.T) *engine {
	return newEngine(t, db.NewMemory())
}

func (e *engine) campaign(t *testing.T, name string) model.Campaign {
	t.Helper()
	c, err := e.store.CreateCampaign(context.Background(), model.Campaign{Name: name, HealthScore: 100})
	require.NoError(t, err)
	return *c
}

// series records values oldest first, one hour apart, ending an hour ago.
func (e *engine) series(t *testing.T, campaignID string, metric model.MetricName, values ...float64) {
	t.Helper()
	start := time.Now().UTC().Add(-time.Duration(len(values)+1) * time.Hour)
	for i, v := range values {
		_, err := e.store.RecordObservation(context.Background(), model.Observation{
			CampaignID: campaignID, Name: metric, Value: v, Threshold: 15, Sensitivity: 50,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

// record appends one reading newer than anything recorded by series.
func (e *engine) record(t *testing.T, campaignID string, metric model.MetricName, v float64) {
	t.Helper()
	_, err := e.store.RecordObservation(context.Background(), model.Observation{
		CampaignID: campaignID, Name: metric, Value: v, Threshold: 15, Sensitivity: 50,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.AlertEvent
	err    error
}

func (p *recordingPublisher) PublishAlertEvent(ctx context.Context, ev model.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
