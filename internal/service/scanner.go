// Detection cycle
//
// Flow per cycle:
//  1. settings snapshot (defaults when none stored)
//  2. list campaigns
//  3. per campaign, on a bounded worker pool with a per-campaign timeout:
//     a. per tracked metric: latest observation + trailing history
//     b. Scorer -> Deduplicator -> AlertLifecycle.Create
//     c. HealthScorer.Recompute once after all metrics
//  4. failures are recorded in the report and logged; they never abort the cycle
//
// Cycles never overlap: a second RunDetectionCycle while one is running
// returns ErrCycleInProgress.

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adwatch/backend/internal/detector"
	"github.com/adwatch/backend/internal/metrics"
	"github.com/adwatch/backend/internal/model"
	"github.com/adwatch/backend/internal/template"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrCycleInProgress = errors.New("detection cycle already in progress")

type ScannerConfig struct {
	Workers         int
	HistorySize     int // trailing points used for the baseline
	MinHistory      int // fewer points than this skips the metric
	CampaignTimeout time.Duration
	MessageTemplate string
}

func (c *ScannerConfig) applyDefaults() {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.HistorySize < 5 {
		c.HistorySize = 10
	}
	if c.MinHistory < 1 || c.MinHistory > c.HistorySize {
		c.MinHistory = 5
	}
	if c.CampaignTimeout <= 0 {
		c.CampaignTimeout = 5 * time.Second
	}
}

type scannerStore interface {
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error)
}

type Scanner struct {
	store     scannerStore
	settings  *SettingsService
	scorer    *detector.Scorer
	dedup     *Deduplicator
	lifecycle *AlertLifecycle
	health    *HealthScorer
	cfg       ScannerConfig
	log       *zap.Logger

	running sync.Mutex
	now     func() time.Time
}

func NewScanner(
	store scannerStore,
	settings *SettingsService,
	scorer *detector.Scorer,
	dedup *Deduplicator,
	lifecycle *AlertLifecycle,
	health *HealthScorer,
	cfg ScannerConfig,
	log *zap.Logger,
) *Scanner {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		store:     store,
		settings:  settings,
		scorer:    scorer,
		dedup:     dedup,
		lifecycle: lifecycle,
		health:    health,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Run drives cycles every interval until ctx is done. The first cycle starts immediately.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	s.log.Info("detection scheduler started", zap.Duration("interval", interval), zap.Int("workers", s.cfg.Workers))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("detection scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	report, err := s.RunDetectionCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.log.Debug("previous detection cycle still running, skipping tick")
	case report != nil && ctx.Err() != nil:
		s.log.Info("detection cycle canceled",
			zap.Int("campaigns", report.Campaigns),
			zap.Int("created", report.Created))
	case err != nil:
		s.log.Error("detection cycle failed", zap.String("error_kind", model.ErrorKind(err)), zap.Error(err))
	default:
		s.log.Info("detection cycle finished",
			zap.Int("campaigns", report.Campaigns),
			zap.Int("scored", report.Scored),
			zap.Int("anomalies", report.Anomalies),
			zap.Int("created", report.Created),
			zap.Int("absorbed", report.Absorbed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	}
}

// RunDetectionCycle scans every campaign once. An error is returned when the
// cycle could not start (settings or campaign list unavailable, or another
// cycle running) or when ctx ended mid-cycle; in the latter case the partial
// report is returned with it. Per-campaign failures are in the report.
func (s *Scanner) RunDetectionCycle(ctx context.Context) (*model.CycleReport, error) {
	if !s.running.TryLock() {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()

	report := &model.CycleReport{StartedAt: s.now().UTC(), Failures: []model.ScanFailure{}}
	defer func() {
		report.FinishedAt = s.now().UTC()
		metrics.CycleDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			partial := s.scanCampaign(ctx, c, settings)
			mu.Lock()
			report.Merge(partial)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		metrics.CyclesTotal.WithLabelValues("canceled").Inc()
		return report, fmt.Errorf("detection cycle canceled: %w", err)
	}
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	return report, nil
}

func (s *Scanner) scanCampaign(parent context.Context, c model.Campaign, settings model.Settings) model.CycleReport {
	ctx, cancel := context.WithTimeout(parent, s.cfg.CampaignTimeout)
	defer cancel()

	rep := model.CycleReport{Campaigns: 1}
	for _, metric := range model.TrackedMetrics {
		err := s.scanMetric(ctx, c, metric, settings.For(metric), &rep)
		if err == nil {
			continue
		}
		s.recordFailure(&rep, c.ID, metric, err)
		if errors.Is(err, model.ErrStoreUnavailable) || ctx.Err() != nil {
			// the rest of this campaign is retried next cycle
			return rep
		}
	}

	if _, err := s.health.Recompute(ctx, c.ID); err != nil {
		s.recordFailure(&rep, c.ID, "", err)
	}
	return rep
}

func (s *Scanner) scanMetric(ctx context.Context, c model.Campaign, metric model.MetricName, ms model.MetricSettings, rep *model.CycleReport) error {
	obs, err := s.store.LatestObservations(ctx, c.ID, metric, s.cfg.HistorySize+1)
	if err != nil {
		return fmt.Errorf("fetch observations: %w", err)
	}
	if len(obs) == 0 {
		rep.Skipped++
		return nil
	}

	current := obs[0]
	history := make([]float64, 0, len(obs)-1)
	for _, o := range obs[1:] {
		history = append(history, o.Value)
	}
	if len(history) < s.cfg.MinHistory {
		rep.Skipped++
		s.log.Debug("not enough history to score",
			zap.String("campaign_id", c.ID),
			zap.String("metric", string(metric)),
			zap.Int("history", len(history)),
			zap.String("error_kind", model.ErrorKind(model.ErrInsufficientHistory)))
		return nil
	}

	result, err := s.scorer.Score(history, current.Value, ms.Sensitivity, ms.Threshold)
	if errors.Is(err, model.ErrInvalidBaseline) {
		rep.Skipped++
		s.log.Info("scoring skipped",
			zap.String("campaign_id", c.ID),
			zap.String("metric", string(metric)),
			zap.String("error_kind", model.ErrorKind(err)),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	rep.Scored++
	if !result.IsAnomaly {
		return nil
	}

	rep.Anomalies++
	metrics.AnomaliesTotal.WithLabelValues(string(metric), string(result.Severity)).Inc()

	dup, err := s.dedup.FindLiveDuplicate(ctx, c.ID, metric)
	if err != nil {
		return fmt.Errorf("find live duplicate: %w", err)
	}
	if dup != nil {
		rep.Absorbed++
		metrics.AlertsAbsorbed.WithLabelValues(string(metric)).Inc()
		return nil
	}

	now := s.now().UTC()
	data := template.AlertDataFromResult(metric, result, now)
	msg := template.RenderMessage(s.cfg.MessageTemplate, &data, &template.CampaignData{ID: c.ID, Name: c.Name})

	_, err = s.lifecycle.Create(ctx, model.Alert{
		CampaignID: c.ID,
		MetricName: metric,
		Severity:   result.Severity,
		Expected:   result.Expected,
		Actual:     result.Actual,
		Message:    msg,
		Timestamp:  now,
	})
	if errors.Is(err, model.ErrDuplicateActive) {
		// an ACTIVE alert older than the window, or a concurrent create won
		rep.Absorbed++
		metrics.AlertsAbsorbed.WithLabelValues(string(metric)).Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	rep.Created++
	s.log.Info("alert created",
		zap.String("campaign_id", c.ID),
		zap.String("metric", string(metric)),
		zap.String("severity", string(result.Severity)),
		zap.Float64("expected", result.Expected),
		zap.Float64("actual", result.Actual),
		zap.Float64("deviation_pct", result.DeviationPct))
	return nil
}

func (s *Scanner) recordFailure(rep *model.CycleReport, campaignID string, metric model.MetricName, err error) {
	kind := model.ErrorKind(err)
	rep.Failures = append(rep.Failures, model.ScanFailure{
		CampaignID: campaignID,
		Metric:     metric,
		Kind:       kind,
		Error:      err.Error(),
	})
	metrics.CampaignFailures.WithLabelValues(kind).Inc()
	s.log.Warn("detection failure",
		zap.String("campaign_id", campaignID),
		zap.String("metric", string(metric)),
		zap.String("error_kind", kind),
		zap.Error(err))
}
