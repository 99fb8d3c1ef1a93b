package service

import (
	"context"
	"time"

	"github.com/adwatch/backend/internal/model"
)

// DefaultDedupWindow - lookback for absorbing repeat anomalies
const DefaultDedupWindow = time.Hour

// Deduplicator decides whether an anomaly should become a new alert or be
// absorbed into an ACTIVE one for the same (campaign, metric) pair.
// The absorbed alert keeps its original severity.
type Deduplicator struct {
	store  AlertStore
	window time.Duration
	now    func() time.Time
}

func NewDeduplicator(store AlertStore, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduplicator{store: store, window: window, now: time.Now}
}

func (d *Deduplicator) Window() time.Duration { return d.window }

// FindLiveDuplicate returns the ACTIVE alert created within the window, or nil.
func (d *Deduplicator) FindLiveDuplicate(ctx context.Context, campaignID string, metric model.MetricName) (*model.Alert, error) {
	return d.store.FindActiveAlert(ctx, campaignID, metric, d.now().Add(-d.window))
}
