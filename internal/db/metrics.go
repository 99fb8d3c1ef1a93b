package db

import (
	"context"
	"time"

	"github.com/adwatch/backend/internal/model"
)

// EnsureMetricSchema - append-only observation table
func (p *Postgres) EnsureMetricSchema(ctx context.Context) error {
	return p.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS metrics (
			id BIGSERIAL PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			name TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			sensitivity INTEGER NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS metrics_campaign_name_ts_idx ON metrics(campaign_id, name, timestamp DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS metrics_campaign_ts_idx ON metrics(campaign_id, timestamp DESC, id DESC)`,
	})
}

func (p *Postgres) RecordObservation(ctx context.Context, obs model.Observation) (*model.Observation, error) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}
	err := p.Pool.QueryRow(ctx, `
		INSERT INTO metrics (campaign_id, name, value, threshold, sensitivity, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		obs.CampaignID, string(obs.Name), obs.Value, obs.Threshold, obs.Sensitivity, obs.Timestamp,
	).Scan(&obs.ID)
	if err != nil {
		return nil, pgErr("record observation", err)
	}
	return &obs, nil
}

// LatestObservations - newest first; ties on timestamp fall back to insertion order
func (p *Postgres) LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error) {
	return p.queryObservations(ctx, `
		SELECT id, campaign_id, name, value, threshold, sensitivity, timestamp
		FROM metrics
		WHERE campaign_id = $1 AND name = $2
		ORDER BY timestamp DESC, id DESC
		LIMIT $3`, campaignID, string(metric), limit)
}

func (p *Postgres) RecentObservations(ctx context.Context, campaignID string, limit int) ([]model.Observation, error) {
	return p.queryObservations(ctx, `
		SELECT id, campaign_id, name, value, threshold, sensitivity, timestamp
		FROM metrics
		WHERE campaign_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, campaignID, limit)
}

func (p *Postgres) queryObservations(ctx context.Context, query string, args ...any) ([]model.Observation, error) {
	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgErr("query observations", err)
	}
	defer rows.Close()

	list := []model.Observation{}
	for rows.Next() {
		var o model.Observation
		var name string
		if err := rows.Scan(&o.ID, &o.CampaignID, &name, &o.Value, &o.Threshold, &o.Sensitivity, &o.Timestamp); err != nil {
			return nil, pgErr("scan observation", err)
		}
		o.Name = model.MetricName(name)
		list = append(list, o)
	}
	return list, pgErr("query observations", rows.Err())
}
