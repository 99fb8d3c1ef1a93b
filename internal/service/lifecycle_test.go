package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHealthScore(t *testing.T) {
	tests := []struct {
		active, critical, want int
	}{
		{0, 0, 100},
		{1, 0, 90},
		{2, 1, 60},
		{1, 1, 70},
		{4, 2, 20},
		{10, 0, 0},
		{5, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeHealthScore(tt.active, tt.critical), "active=%d critical=%d", tt.active, tt.critical)
	}

	// never increases as alerts are added, always within [0,100]
	for active := 0; active <= 12; active++ {
		for critical := 0; critical <= active; critical++ {
			s := ComputeHealthScore(active, critical)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
			assert.LessOrEqual(t, ComputeHealthScore(active+1, critical), s)
			if critical < active {
				assert.LessOrEqual(t, ComputeHealthScore(active, critical+1), s)
			}
		}
	}
}

func TestHealthScorer_RecomputeIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Idempotent")

	_, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityCritical, Expected: 3.5, Actual: 1.2})
	require.NoError(t, err)

	first, err := e.health.Recompute(ctx, c.ID)
	require.NoError(t, err)
	second, err := e.health.Recompute(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, first)
	assert.Equal(t, first, second)

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.HealthScore)
}

// One CRITICAL and one WARNING alert score 60; resolving the CRITICAL one brings it to 90.
func TestLifecycle_ResolveRecomputesHealth(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Scenario")

	crit, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityCritical, Expected: 3.5, Actual: 1.2})
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCPC, Severity: model.SeverityWarning, Expected: 1.25, Actual: 1.6})
	require.NoError(t, err)

	score, err := e.health.Recompute(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, score)

	resolved, err := e.lifecycle.Resolve(ctx, crit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Nil(t, resolved.DismissedAt)

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.HealthScore)

	assert.Equal(t, []string{"created", "created", "resolved"}, e.events.types())
}

// A cycle recomputing health while an operator resolves an alert must end on
// the score of the final alert set, never on a count taken before the resolve.
func TestHealthScorer_RecomputeRacingResolve(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Racing")

	crit, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityCritical, Expected: 3.5, Actual: 1.2})
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCPC, Severity: model.SeverityWarning, Expected: 1.25, Actual: 1.6})
	require.NoError(t, err)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				_, err := e.health.Recompute(ctx, c.ID)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := e.lifecycle.Resolve(ctx, crit.ID)
		assert.NoError(t, err)
	}()
	close(start)
	wg.Wait()

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.HealthScore)
}

func TestLifecycle_Dismiss(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Dismiss")

	a, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricSpend, Severity: model.SeverityWarning, Expected: 5000, Actual: 7000})
	require.NoError(t, err)

	d, err := e.lifecycle.Dismiss(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusDismissed, d.Status)
	require.NotNil(t, d.DismissedAt)

	got, err := e.store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.HealthScore)
}

func TestLifecycle_TerminalStatesRejectTransitions(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Terminal")

	resolved, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricROAS, Severity: model.SeverityInfo, Expected: 4.2, Actual: 3.4})
	require.NoError(t, err)
	_, err = e.lifecycle.Resolve(ctx, resolved.ID)
	require.NoError(t, err)

	dismissed, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCPC, Severity: model.SeverityInfo, Expected: 1.25, Actual: 1.5})
	require.NoError(t, err)
	_, err = e.lifecycle.Dismiss(ctx, dismissed.ID)
	require.NoError(t, err)

	for _, id := range []string{resolved.ID, dismissed.ID} {
		_, err = e.lifecycle.Resolve(ctx, id)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		_, err = e.lifecycle.Dismiss(ctx, id)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	}

	got, err := e.store.GetAlert(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, got.Status)
	assert.Nil(t, got.DismissedAt)

	_, err = e.lifecycle.Resolve(ctx, "no-such-alert")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLifecycle_ConcurrentResolveAndDismiss(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Race")

	a, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityWarning, Expected: 3.5, Actual: 2.5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, results[i] = e.lifecycle.Resolve(ctx, a.ID)
			} else {
				_, results[i] = e.lifecycle.Dismiss(ctx, a.ID)
			}
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	}
	assert.Equal(t, 1, ok)
}

func TestLifecycle_CreateRejectsSecondActive(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Dup")

	_, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityCritical})
	require.NoError(t, err)
	_, err = e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityInfo})
	assert.ErrorIs(t, err, model.ErrDuplicateActive)

	_, err = e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: "Impressions", Severity: model.SeverityInfo})
	assert.Error(t, err)
}

func TestLifecycle_PublishFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	e.events.err = errors.New("nats down")
	c := e.campaign(t, "Events")

	a, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityWarning})
	require.NoError(t, err)
	_, err = e.lifecycle.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, e.events.types(), 2)
}

func TestDeduplicator_Window(t *testing.T) {
	ctx := context.Background()
	e := newMemoryEngine(t)
	c := e.campaign(t, "Window")

	a, err := e.lifecycle.Create(ctx, model.Alert{CampaignID: c.ID, MetricName: model.MetricCTR, Severity: model.SeverityWarning})
	require.NoError(t, err)

	dup, err := e.dedup.FindLiveDuplicate(ctx, c.ID, model.MetricCTR)
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, a.ID, dup.ID)

	dup, err = e.dedup.FindLiveDuplicate(ctx, c.ID, model.MetricCPC)
	require.NoError(t, err)
	assert.Nil(t, dup)

	// two hours later the alert falls outside the lookback window
	e.dedup.now = func() time.Time { return a.Timestamp.Add(2 * time.Hour) }
	dup, err = e.dedup.FindLiveDuplicate(ctx, c.ID, model.MetricCTR)
	require.NoError(t, err)
	assert.Nil(t, dup)
}
