package db

import (
	"context"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EnsureCampaignSchema - create campaigns table
func (p *Postgres) EnsureCampaignSchema(ctx context.Context) error {
	return p.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			health_score INTEGER NOT NULL DEFAULT 100 CHECK (health_score BETWEEN 0 AND 100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS campaigns_health_score_idx ON campaigns(health_score)`,
	})
}

// ListCampaigns - ordered by health score ascending, worst first
func (p *Postgres) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT id, name, health_score, created_at
		FROM campaigns
		ORDER BY health_score ASC, name ASC`)
	if err != nil {
		return nil, pgErr("list campaigns", err)
	}
	defer rows.Close()

	list := []model.Campaign{}
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.HealthScore, &c.CreatedAt); err != nil {
			return nil, pgErr("scan campaign", err)
		}
		list = append(list, c)
	}
	return list, pgErr("list campaigns", rows.Err())
}

func (p *Postgres) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := p.Pool.QueryRow(ctx, `
		SELECT id, name, health_score, created_at
		FROM campaigns
		WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.HealthScore, &c.CreatedAt)
	if err != nil {
		return nil, pgErr("get campaign "+id, err)
	}
	return &c, nil
}

// CreateCampaign - id and created_at are filled in when empty; a zero score starts at 100
func (p *Postgres) CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error) {
	fillCampaign(&c)
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO campaigns (id, name, health_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		c.ID, c.Name, c.HealthScore, c.CreatedAt)
	if err != nil {
		return nil, pgErr("create campaign", err)
	}
	return &c, nil
}

func (p *Postgres) UpdateCampaignHealthScore(ctx context.Context, id string, score int) error {
	tag, err := p.Pool.Exec(ctx, `
		UPDATE campaigns
		SET health_score = $2, updated_at = NOW()
		WHERE id = $1`, id, score)
	if err != nil {
		return pgErr("update health score", err)
	}
	if tag.RowsAffected() == 0 {
		return pgErr("update health score "+id, pgx.ErrNoRows)
	}
	return nil
}

// RecomputeHealthScore - count ACTIVE alerts and write the score in a single statement
func (p *Postgres) RecomputeHealthScore(ctx context.Context, campaignID string) (int, error) {
	var score int
	err := p.Pool.QueryRow(ctx, `
		UPDATE campaigns
		SET health_score = GREATEST(0, LEAST(100, 100
			- $2 * (SELECT COUNT(*) FROM alerts WHERE campaign_id = $1 AND status = 'ACTIVE')
			- $3 * (SELECT COUNT(*) FROM alerts WHERE campaign_id = $1 AND status = 'ACTIVE' AND severity = 'CRITICAL'))),
			updated_at = NOW()
		WHERE id = $1
		RETURNING health_score`,
		campaignID, model.ActiveAlertPenalty, model.CriticalAlertPenalty).Scan(&score)
	if err != nil {
		return 0, pgErr("recompute health score "+campaignID, err)
	}
	return score, nil
}

func fillCampaign(c *model.Campaign) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.HealthScore == 0 {
		c.HealthScore = 100
	}
}
