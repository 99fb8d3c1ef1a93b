package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// EnsureAlertSchema - alerts table
//
// alerts_one_active_idx is what keeps a single ACTIVE alert per
// (campaign_id, metric_name) when detection cycles race.
func (p *Postgres) EnsureAlertSchema(ctx context.Context) error {
	return p.execAll(ctx, []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			metric_name TEXT NOT NULL,
			severity TEXT NOT NULL,
			expected DOUBLE PRECISION NOT NULL,
			actual DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ,
			dismissed_at TIMESTAMPTZ
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS alerts_one_active_idx ON alerts(campaign_id, metric_name) WHERE status = 'ACTIVE'`,
		`CREATE INDEX IF NOT EXISTS alerts_campaign_status_idx ON alerts(campaign_id, status)`,
		`CREATE INDEX IF NOT EXISTS alerts_timestamp_idx ON alerts(timestamp DESC)`,
	})
}

const alertColumns = `id, campaign_id, metric_name, severity, expected, actual, message, status, timestamp, resolved_at, dismissed_at`

func scanAlert(row pgx.Row, extra ...any) (*model.Alert, error) {
	var a model.Alert
	var metric, severity, status string
	dest := []any{&a.ID, &a.CampaignID, &metric, &severity, &a.Expected, &a.Actual, &a.Message, &status, &a.Timestamp, &a.ResolvedAt, &a.DismissedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.MetricName = model.MetricName(metric)
	a.Severity = model.Severity(severity)
	a.Status = model.AlertStatus(status)
	return &a, nil
}

// FindActiveAlert - ACTIVE alert for the pair created at or after since; nil when none
func (p *Postgres) FindActiveAlert(ctx context.Context, campaignID string, metric model.MetricName, since time.Time) (*model.Alert, error) {
	row := p.Pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE campaign_id = $1 AND metric_name = $2 AND status = 'ACTIVE' AND timestamp >= $3
		ORDER BY timestamp DESC
		LIMIT 1`, campaignID, string(metric), since)
	a, err := scanAlert(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pgErr("find active alert", err)
	}
	return a, nil
}

// CreateAlert - insert as ACTIVE unless the pair already has an ACTIVE alert
//
// The partial unique index turns the check and the insert into one statement;
// a conflict leaves zero affected rows.
func (p *Postgres) CreateAlert(ctx context.Context, a model.Alert) (*model.Alert, error) {
	fillAlert(&a)
	tag, err := p.Pool.Exec(ctx, `
		INSERT INTO alerts (id, campaign_id, metric_name, severity, expected, actual, message, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', $8)
		ON CONFLICT DO NOTHING`,
		a.ID, a.CampaignID, string(a.MetricName), string(a.Severity), a.Expected, a.Actual, a.Message, a.Timestamp)
	if err != nil {
		return nil, pgErr("create alert", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("create alert %s/%s: %w", a.CampaignID, a.MetricName, model.ErrDuplicateActive)
	}
	return &a, nil
}

func (p *Postgres) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	a, err := scanAlert(p.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return nil, pgErr("get alert "+id, err)
	}
	return a, nil
}

// ListAlerts - newest first, joined with the campaign name
func (p *Postgres) ListAlerts(ctx context.Context, f model.AlertFilter) ([]model.AlertListItem, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CampaignID != "" {
		add("a.campaign_id = $%d", f.CampaignID)
	}
	if f.Severity != "" {
		add("a.severity = $%d", string(f.Severity))
	}
	if f.Status != "" {
		add("a.status = $%d", string(f.Status))
	}
	if f.Start != nil {
		add("a.timestamp >= $%d", *f.Start)
	}
	if f.End != nil {
		add("a.timestamp <= $%d", *f.End)
	}

	query := `
		SELECT a.id, a.campaign_id, a.metric_name, a.severity, a.expected, a.actual, a.message,
			a.status, a.timestamp, a.resolved_at, a.dismissed_at, c.name
		FROM alerts a
		JOIN campaigns c ON c.id = a.campaign_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.timestamp DESC, a.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, pgErr("list alerts", err)
	}
	defer rows.Close()

	list := []model.AlertListItem{}
	for rows.Next() {
		var name string
		a, err := scanAlert(rows, &name)
		if err != nil {
			return nil, pgErr("scan alert", err)
		}
		list = append(list, model.AlertListItem{Alert: *a, CampaignName: name})
	}
	return list, pgErr("list alerts", rows.Err())
}

// ListActiveAlerts - ACTIVE alerts of one campaign, newest first
func (p *Postgres) ListActiveAlerts(ctx context.Context, campaignID string) ([]model.Alert, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE campaign_id = $1 AND status = 'ACTIVE'
		ORDER BY timestamp DESC, id DESC`, campaignID)
	if err != nil {
		return nil, pgErr("list active alerts", err)
	}
	defer rows.Close()

	list := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, pgErr("scan alert", err)
		}
		list = append(list, *a)
	}
	return list, pgErr("list active alerts", rows.Err())
}

// TransitionAlert - ACTIVE -> to, guarded by the current status in the WHERE clause
func (p *Postgres) TransitionAlert(ctx context.Context, id string, to model.AlertStatus, at time.Time) (*model.Alert, error) {
	column, err := transitionColumn(to)
	if err != nil {
		return nil, err
	}
	row := p.Pool.QueryRow(ctx, `
		UPDATE alerts
		SET status = $2, `+column+` = $3
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING `+alertColumns, id, string(to), at)
	a, err := scanAlert(row)
	if err == nil {
		return a, nil
	}
	if err != pgx.ErrNoRows {
		return nil, pgErr("transition alert "+id, err)
	}

	// nothing updated: either the alert is missing or it already left ACTIVE
	current, err := p.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("alert %s is %s: %w", id, current.Status, model.ErrInvalidTransition)
}

func (p *Postgres) CountActiveAlerts(ctx context.Context, campaignID string) (int, int, error) {
	var total, critical int
	err := p.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE severity = 'CRITICAL')
		FROM alerts
		WHERE campaign_id = $1 AND status = 'ACTIVE'`, campaignID).Scan(&total, &critical)
	if err != nil {
		return 0, 0, pgErr("count active alerts", err)
	}
	return total, critical, nil
}

func transitionColumn(to model.AlertStatus) (string, error) {
	switch to {
	case model.AlertStatusResolved:
		return "resolved_at", nil
	case model.AlertStatusDismissed:
		return "dismissed_at", nil
	}
	return "", fmt.Errorf("transition to %q: %w", to, model.ErrInvalidTransition)
}
