package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adwatch/backend/internal/db"
	"github.com/adwatch/backend/internal/metrics"
	"github.com/adwatch/backend/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctrHistory = []float64{3.4, 3.6, 3.5, 3.3, 3.7}

func TestScanner_CriticalDropCreatesAlert(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Summer Sale 2024")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Campaigns)
	assert.Equal(t, 1, rep.Scored)
	assert.Equal(t, 1, rep.Anomalies)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, len(model.TrackedMetrics)-1, rep.Skipped)
	assert.Empty(t, rep.Failures)

	active, err := e.store.ListActiveAlerts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	a := active[0]
	assert.Equal(t, model.MetricCTR, a.MetricName)
	assert.Equal(t, model.SeverityCritical, a.Severity)
	assert.InDelta(t, 3.5, a.Expected, 1e-9)
	assert.Equal(t, 1.2, a.Actual)
	assert.Contains(t, a.Message, "65.7% below expected")

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.HealthScore)
}

func TestScanner_WithinThresholdNoAlert(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Steady")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 3.6)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scored)
	assert.Zero(t, rep.Anomalies)
	assert.Zero(t, rep.Created)

	total, _, err := e.store.CountActiveAlerts(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestScanner_RepeatDetectionIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Persistent")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	first, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	// a milder anomaly on the next reading must not replace the original severity
	e.record(t, c.ID, model.MetricCTR, 2.5)
	second, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Anomalies)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Absorbed)

	alerts, err := e.store.ListAlerts(ctx, model.AlertFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, 1.2, alerts[0].Actual)
}

func TestScanner_StaleActiveAlertStillBlocksCreate(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Stale")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	_, err := e.store.CreateAlert(ctx, model.Alert{
		CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityInfo,
		Timestamp: time.Now().UTC().Add(-3 * time.Hour),
	})
	require.NoError(t, err)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Created)
	assert.Equal(t, 1, rep.Absorbed)

	total, _, err := e.store.CountActiveAlerts(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestScanner_SkipsShortAndZeroHistory(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Sparse")
	e.series(t, c.ID, model.MetricCPC, 1.2, 1.3)
	e.record(t, c.ID, model.MetricCPC, 5)
	e.series(t, c.ID, model.MetricConversions, 0, 0, 0, 0, 0)
	e.record(t, c.ID, model.MetricConversions, 10)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Scored)
	assert.Equal(t, len(model.TrackedMetrics), rep.Skipped)
	assert.Empty(t, rep.Failures)
}

func TestScanner_UsesSettings(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Tuned")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	s := model.DefaultSettings()
	s.CTRSensitivity = 0
	s.CTRThreshold = 40 // effective 80%
	_, err := e.settings.Update(ctx, s)
	require.NoError(t, err)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Scored)
	assert.Zero(t, rep.Anomalies)
}

// flakyStore fails selected reads to exercise isolation.
type flakyStore struct {
	*db.Memory
	mu           sync.Mutex
	failCampaign map[string]error
	failMetric   map[string]error // key campaignID/metric
	settingsErr  error
	campaignsErr error
}

func (f *flakyStore) LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error) {
	f.mu.Lock()
	err := f.failCampaign[campaignID]
	if err == nil {
		err = f.failMetric[campaignID+"/"+string(metric)]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Memory.LatestObservations(ctx, campaignID, metric, limit)
}

func (f *flakyStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	if f.settingsErr != nil {
		return nil, f.settingsErr
	}
	return f.Memory.GetSettings(ctx)
}

func (f *flakyStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	if f.campaignsErr != nil {
		return nil, f.campaignsErr
	}
	return f.Memory.ListCampaigns(ctx)
}

func newFlakyEngine(t *testing.T) (*engine, *flakyStore) {
	fs := &flakyStore{Memory: db.NewMemory(), failCampaign: map[string]error{}, failMetric: map[string]error{}}
	return newEngine(t, fs), fs
}

func TestScanner_CampaignFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	e, fs := newFlakyEngine(t)

	broken := e.campaign(t, "Broken")
	healthy := e.campaign(t, "Healthy")
	for _, c := range []model.Campaign{broken, healthy} {
		e.series(t, c.ID, model.MetricCTR, ctrHistory...)
		e.record(t, c.ID, model.MetricCTR, 1.2)
	}
	fs.failCampaign[broken.ID] = fmt.Errorf("query: %w", model.ErrStoreUnavailable)

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Campaigns)
	assert.Equal(t, 1, rep.Created)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, broken.ID, rep.Failures[0].CampaignID)
	assert.Equal(t, "StoreUnavailable", rep.Failures[0].Kind)

	total, _, err := e.store.CountActiveAlerts(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// the broken campaign recovers on the next cycle
	delete(fs.failCampaign, broken.ID)
	rep, err = e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Absorbed)
	assert.Empty(t, rep.Failures)
}

func TestScanner_MetricFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	e, fs := newFlakyEngine(t)

	c := e.campaign(t, "Partial")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)
	e.series(t, c.ID, model.MetricROAS, 4.2, 4.1, 4.3, 4.2, 4.2)
	e.record(t, c.ID, model.MetricROAS, 1.0)
	fs.failMetric[c.ID+"/"+string(model.MetricCTR)] = errors.New("malformed row")

	rep, err := e.scanner.RunDetectionCycle(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, model.MetricCTR, rep.Failures[0].Metric)
	assert.Equal(t, "Internal", rep.Failures[0].Kind)
	assert.Equal(t, 1, rep.Created)

	active, err := e.store.ListActiveAlerts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, model.MetricROAS, active[0].MetricName)

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.HealthScore)
}

func TestScanner_CycleLevelErrors(t *testing.T) {
	ctx := context.Background()
	e, fs := newFlakyEngine(t)

	fs.settingsErr = model.ErrConfigMissing
	_, err := e.scanner.RunDetectionCycle(ctx)
	assert.NoError(t, err)

	fs.settingsErr = fmt.Errorf("settings: %w", model.ErrStoreUnavailable)
	_, err = e.scanner.RunDetectionCycle(ctx)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	fs.settingsErr = nil
	fs.campaignsErr = fmt.Errorf("campaigns: %w", model.ErrStoreUnavailable)
	_, err = e.scanner.RunDetectionCycle(ctx)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestScanner_NoOverlappingCycles(t *testing.T) {
	e := newMemoryEngine(t)

	e.scanner.running.Lock()
	_, err := e.scanner.RunDetectionCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	e.scanner.running.Unlock()

	_, err = e.scanner.RunDetectionCycle(context.Background())
	assert.NoError(t, err)
}

// Two scanners on one store stand in for two processes running cycles at once.
func TestScanner_ConcurrentScannersKeepOneActiveAlert(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemory()
	a := newEngine(t, store)
	b := newEngine(t, store)

	var campaigns []model.Campaign
	for i := 0; i < 6; i++ {
		c := a.campaign(t, fmt.Sprintf("Campaign %d", i))
		a.series(t, c.ID, model.MetricCTR, ctrHistory...)
		a.record(t, c.ID, model.MetricCTR, 1.2)
		a.series(t, c.ID, model.MetricCPC, 1.25, 1.2, 1.3, 1.25, 1.25)
		a.record(t, c.ID, model.MetricCPC, 2.5)
		campaigns = append(campaigns, c)
	}

	var wg sync.WaitGroup
	for _, e := range []*engine{a, b, a, b} {
		wg.Add(1)
		go func(e *engine) {
			defer wg.Done()
			_, _ = e.scanner.RunDetectionCycle(ctx)
		}(e)
	}
	wg.Wait()

	for _, c := range campaigns {
		for _, m := range []model.MetricName{model.MetricCTR, model.MetricCPC} {
			alerts, err := store.ListAlerts(ctx, model.AlertFilter{CampaignID: c.ID, Status: model.AlertStatusActive})
			require.NoError(t, err)
			n := 0
			for _, al := range alerts {
				if al.MetricName == m {
					n++
				}
			}
			assert.Equal(t, 1, n, "campaign %s metric %s", c.Name, m)
		}
	}
}

func TestScanner_RunLoop(t *testing.T) {
	e := newMemoryEngine(t)
	c := e.campaign(t, "Loop")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.scanner.Run(ctx, 20*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		total, _, err := e.store.CountActiveAlerts(context.Background(), c.ID)
		return err == nil && total == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner did not stop after cancel")
	}
}

func TestScanner_CanceledCycleIsReported(t *testing.T) {
	e := newMemoryEngine(t)
	c := e.campaign(t, "Canceled")
	e.series(t, c.ID, model.MetricCTR, ctrHistory...)
	e.record(t, c.ID, model.MetricCTR, 1.2)

	canceled := testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("canceled"))
	ok := testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := e.scanner.RunDetectionCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Equal(t, 0, rep.Created)

	assert.Equal(t, canceled+1, testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("canceled")))
	assert.Equal(t, ok, testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("ok")))

	// the lock is released, so the next cycle runs normally
	rep, err = e.scanner.RunDetectionCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
}
