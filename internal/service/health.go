package service

import (
	"context"
	"fmt"

	"github.com/adwatch/backend/internal/metrics"
	"github.com/adwatch/backend/internal/model"
	"go.uber.org/zap"
)

type healthStore interface {
	// RecomputeHealthScore counts the campaign's ACTIVE alerts and writes the
	// score in one atomic step, returning the stored value.
	RecomputeHealthScore(ctx context.Context, campaignID string) (int, error)
}

// HealthScorer derives a campaign's score from its ACTIVE alerts.
type HealthScorer struct {
	store healthStore
	log   *zap.Logger
}

func NewHealthScorer(store healthStore, log *zap.Logger) *HealthScorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthScorer{store: store, log: log}
}

// ComputeHealthScore - clamp(0, 100, 100 - 10*active - 20*critical)
//
// Critical alerts are counted in active as well, so each one costs 30 points.
func ComputeHealthScore(active, critical int) int {
	return model.HealthScore(active, critical)
}

// Recompute rewrites the score from the current alert set and returns it.
// The count and the write happen in one store operation, so a recompute racing
// an operator transition can never persist a score from the older alert set.
func (h *HealthScorer) Recompute(ctx context.Context, campaignID string) (int, error) {
	score, err := h.store.RecomputeHealthScore(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("recompute health score for %s: %w", campaignID, err)
	}
	metrics.CampaignHealth.WithLabelValues(campaignID).Set(float64(score))
	h.log.Debug("health score recomputed",
		zap.String("campaign_id", campaignID),
		zap.Int("score", score))
	return score, nil
}
