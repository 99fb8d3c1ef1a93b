// Alert lifecycle
//
// States:
//  ACTIVE -> RESOLVED  (terminal)
//  ACTIVE -> DISMISSED (terminal)
//
// Transition flow:
//  1. store.TransitionAlert performs a compare-and-swap from ACTIVE
//     - missing alert: model.ErrNotFound
//     - any other current status: model.ErrInvalidTransition
//  2. HealthScorer.Recompute for the owning campaign
//  3. publish <prefix>.alert.resolved|dismissed (failures are only logged)

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adwatch/backend/internal/client"
	"github.com/adwatch/backend/internal/metrics"
	"github.com/adwatch/backend/internal/model"
	"go.uber.org/zap"
)

// EventPublisher - sink for alert lifecycle events
type EventPublisher interface {
	PublishAlertEvent(ctx context.Context, ev model.AlertEvent) error
}

type AlertLifecycle struct {
	store  AlertStore
	health *HealthScorer
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewAlertLifecycle(store AlertStore, health *HealthScorer, events EventPublisher, log *zap.Logger) *AlertLifecycle {
	if events == nil {
		events = client.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AlertLifecycle{store: store, health: health, events: events, log: log, now: time.Now}
}

// Create stores a new ACTIVE alert. It does not consult the Deduplicator;
// the store still rejects a second ACTIVE alert for the pair with
// model.ErrDuplicateActive.
func (l *AlertLifecycle) Create(ctx context.Context, a model.Alert) (*model.Alert, error) {
	if !a.MetricName.Valid() {
		return nil, fmt.Errorf("create alert: unknown metric %q", a.MetricName)
	}
	if !a.Severity.Valid() {
		return nil, fmt.Errorf("create alert: unknown severity %q", a.Severity)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now().UTC()
	}

	created, err := l.store.CreateAlert(ctx, a)
	if err != nil {
		return nil, err
	}
	metrics.AlertTransitions.WithLabelValues(string(model.AlertStatusActive)).Inc()
	l.publish(ctx, "created", *created)
	return created, nil
}

func (l *AlertLifecycle) Resolve(ctx context.Context, alertID string) (*model.Alert, error) {
	return l.transition(ctx, alertID, model.AlertStatusResolved)
}

func (l *AlertLifecycle) Dismiss(ctx context.Context, alertID string) (*model.Alert, error) {
	return l.transition(ctx, alertID, model.AlertStatusDismissed)
}

func (l *AlertLifecycle) transition(ctx context.Context, alertID string, to model.AlertStatus) (*model.Alert, error) {
	a, err := l.store.TransitionAlert(ctx, alertID, to, l.now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.AlertTransitions.WithLabelValues(string(to)).Inc()

	// the transition stands even if the score write fails; the next cycle recomputes it
	if _, err := l.health.Recompute(ctx, a.CampaignID); err != nil {
		l.log.Warn("health recompute after transition failed",
			zap.String("alert_id", a.ID),
			zap.String("campaign_id", a.CampaignID),
			zap.String("error_kind", model.ErrorKind(err)),
			zap.Error(err))
	}

	event := "resolved"
	if to == model.AlertStatusDismissed {
		event = "dismissed"
	}
	l.publish(ctx, event, *a)
	return a, nil
}

func (l *AlertLifecycle) publish(ctx context.Context, kind string, a model.Alert) {
	err := l.events.PublishAlertEvent(ctx, model.AlertEvent{Type: kind, Alert: a, OccurredAt: l.now().UTC()})
	if err != nil && !errors.Is(err, context.Canceled) {
		l.log.Warn("alert event publish failed",
			zap.String("event", kind),
			zap.String("alert_id", a.ID),
			zap.Error(err))
	}
}
