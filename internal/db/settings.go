package db

import (
	"context"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// EnsureSettingsSchema - singleton settings row keyed by id
func (p *Postgres) EnsureSettingsSchema(ctx context.Context) error {
	return p.execAll(ctx, []string{`
		CREATE TABLE IF NOT EXISTS settings (
			id TEXT PRIMARY KEY,
			slack_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			in_app_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			ctr_sensitivity INTEGER NOT NULL DEFAULT 50,
			ctr_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			cpc_sensitivity INTEGER NOT NULL DEFAULT 50,
			cpc_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			roas_sensitivity INTEGER NOT NULL DEFAULT 50,
			roas_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			conversion_sensitivity INTEGER NOT NULL DEFAULT 50,
			conversion_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			spend_sensitivity INTEGER NOT NULL DEFAULT 50,
			spend_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			bounce_sensitivity INTEGER NOT NULL DEFAULT 50,
			bounce_threshold DOUBLE PRECISION NOT NULL DEFAULT 15,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`})
}

// settingsColumns and settingsFields must stay in the same order.
const settingsColumns = `id, slack_enabled, email_enabled, in_app_enabled,
	ctr_sensitivity, ctr_threshold, cpc_sensitivity, cpc_threshold,
	roas_sensitivity, roas_threshold, conversion_sensitivity, conversion_threshold,
	spend_sensitivity, spend_threshold, bounce_sensitivity, bounce_threshold, updated_at`

func settingsFields(s *model.Settings) []any {
	return []any{
		&s.ID, &s.SlackEnabled, &s.EmailEnabled, &s.InAppEnabled,
		&s.CTRSensitivity, &s.CTRThreshold, &s.CPCSensitivity, &s.CPCThreshold,
		&s.ROASSensitivity, &s.ROASThreshold, &s.ConversionSensitivity, &s.ConversionThreshold,
		&s.SpendSensitivity, &s.SpendThreshold, &s.BounceSensitivity, &s.BounceThreshold,
	}
}

// GetSettings - model.ErrConfigMissing when no row was ever saved
func (p *Postgres) GetSettings(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	err := p.Pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings ORDER BY updated_at DESC LIMIT 1`).
		Scan(append(settingsFields(&s), &s.UpdatedAt)...)
	if err == pgx.ErrNoRows {
		return nil, model.ErrConfigMissing
	}
	if err != nil {
		return nil, pgErr("get settings", err)
	}
	return &s, nil
}

// SaveSettings - upsert
func (p *Postgres) SaveSettings(ctx context.Context, s model.Settings) (*model.Settings, error) {
	if s.ID == "" {
		s.ID = model.DefaultSettingsID
	}
	s.UpdatedAt = time.Now().UTC()

	_, err := p.Pool.Exec(ctx, `
		INSERT INTO settings (`+settingsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			slack_enabled = EXCLUDED.slack_enabled,
			email_enabled = EXCLUDED.email_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			ctr_sensitivity = EXCLUDED.ctr_sensitivity,
			ctr_threshold = EXCLUDED.ctr_threshold,
			cpc_sensitivity = EXCLUDED.cpc_sensitivity,
			cpc_threshold = EXCLUDED.cpc_threshold,
			roas_sensitivity = EXCLUDED.roas_sensitivity,
			roas_threshold = EXCLUDED.roas_threshold,
			conversion_sensitivity = EXCLUDED.conversion_sensitivity,
			conversion_threshold = EXCLUDED.conversion_threshold,
			spend_sensitivity = EXCLUDED.spend_sensitivity,
			spend_threshold = EXCLUDED.spend_threshold,
			bounce_sensitivity = EXCLUDED.bounce_sensitivity,
			bounce_threshold = EXCLUDED.bounce_threshold,
			updated_at = EXCLUDED.updated_at`,
		settingsValues(s)...)
	if err != nil {
		return nil, pgErr("save settings", err)
	}
	return &s, nil
}

func settingsValues(s model.Settings) []any {
	return []any{
		s.ID, s.SlackEnabled, s.EmailEnabled, s.InAppEnabled,
		s.CTRSensitivity, s.CTRThreshold, s.CPCSensitivity, s.CPCThreshold,
		s.ROASSensitivity, s.ROASThreshold, s.ConversionSensitivity, s.ConversionThreshold,
		s.SpendSensitivity, s.SpendThreshold, s.BounceSensitivity, s.BounceThreshold, s.UpdatedAt,
	}
}
