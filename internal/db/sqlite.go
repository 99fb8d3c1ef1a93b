package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adwatch/backend/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Timestamps are stored as INTEGER unix nanoseconds so ordering and range
// filters compare numerically.
var sqliteMigrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS campaigns (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    health_score INTEGER NOT NULL DEFAULT 100 CHECK (health_score BETWEEN 0 AND 100),
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaigns_health ON campaigns(health_score);

CREATE TABLE IF NOT EXISTS metrics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id TEXT NOT NULL REFERENCES campaigns(id),
    name        TEXT NOT NULL,
    value       REAL NOT NULL,
    threshold   REAL NOT NULL,
    sensitivity INTEGER NOT NULL,
    timestamp   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_campaign_name_ts ON metrics(campaign_id, name, timestamp DESC, id DESC);

CREATE TABLE IF NOT EXISTS alerts (
    id           TEXT PRIMARY KEY,
    campaign_id  TEXT NOT NULL REFERENCES campaigns(id),
    metric_name  TEXT NOT NULL,
    severity     TEXT NOT NULL,
    expected     REAL NOT NULL,
    actual       REAL NOT NULL,
    message      TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'ACTIVE',
    timestamp    INTEGER NOT NULL,
    resolved_at  INTEGER,
    dismissed_at INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_active ON alerts(campaign_id, metric_name) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_alerts_campaign_status ON alerts(campaign_id, status);
CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS settings (
    id                     TEXT PRIMARY KEY,
    slack_enabled          INTEGER NOT NULL DEFAULT 0,
    email_enabled          INTEGER NOT NULL DEFAULT 1,
    in_app_enabled         INTEGER NOT NULL DEFAULT 1,
    ctr_sensitivity        INTEGER NOT NULL DEFAULT 50,
    ctr_threshold          REAL NOT NULL DEFAULT 15,
    cpc_sensitivity        INTEGER NOT NULL DEFAULT 50,
    cpc_threshold          REAL NOT NULL DEFAULT 15,
    roas_sensitivity       INTEGER NOT NULL DEFAULT 50,
    roas_threshold         REAL NOT NULL DEFAULT 15,
    conversion_sensitivity INTEGER NOT NULL DEFAULT 50,
    conversion_threshold   REAL NOT NULL DEFAULT 15,
    spend_sensitivity      INTEGER NOT NULL DEFAULT 50,
    spend_threshold        REAL NOT NULL DEFAULT 15,
    bounce_sensitivity     INTEGER NOT NULL DEFAULT 50,
    bounce_threshold       REAL NOT NULL DEFAULT 15,
    updated_at             INTEGER NOT NULL
);
`,
	},
}

// SQLite - embedded single-file store
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path. Pass ":memory:" for an
// in-memory database. Call EnsureSchema before use.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// EnsureSchema applies any unapplied migrations in order.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at INTEGER NOT NULL
    )`)
	if err != nil {
		return sqliteErr("create schema_versions", err)
	}

	for _, m := range sqliteMigrations {
		var count int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return sqliteErr(fmt.Sprintf("check migration %d", m.version), err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return sqliteErr(fmt.Sprintf("apply migration %d", m.version), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_versions(version, applied_at) VALUES(?, ?)`, m.version, time.Now().UnixNano()); err != nil {
			return sqliteErr(fmt.Sprintf("record migration %d", m.version), err)
		}
	}
	return nil
}

func (s *SQLite) Close() { _ = s.db.Close() }

// ─── Campaigns ───────────────────────────────────────────────────────────────

func (s *SQLite) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, health_score, created_at FROM campaigns ORDER BY health_score ASC, name ASC`)
	if err != nil {
		return nil, sqliteErr("list campaigns", err)
	}
	defer rows.Close()

	list := []model.Campaign{}
	for rows.Next() {
		c, err := scanSQLiteCampaign(rows)
		if err != nil {
			return nil, sqliteErr("scan campaign", err)
		}
		list = append(list, *c)
	}
	return list, sqliteErr("list campaigns", rows.Err())
}

func (s *SQLite) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, health_score, created_at FROM campaigns WHERE id = ?`, id)
	c, err := scanSQLiteCampaign(row)
	if err != nil {
		return nil, sqliteErr("get campaign "+id, err)
	}
	return c, nil
}

func (s *SQLite) CreateCampaign(ctx context.Context, c model.Campaign) (*model.Campaign, error) {
	fillCampaign(&c)
	_, err := s.db.ExecContext(ctx, `INSERT INTO campaigns(id, name, health_score, created_at) VALUES(?,?,?,?)`,
		c.ID, c.Name, c.HealthScore, c.CreatedAt.UnixNano())
	if err != nil {
		return nil, sqliteErr("create campaign", err)
	}
	return &c, nil
}

func (s *SQLite) UpdateCampaignHealthScore(ctx context.Context, id string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE campaigns SET health_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return sqliteErr("update health score", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update health score %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// RecomputeHealthScore - one UPDATE so the count and the write see the same alert set
func (s *SQLite) RecomputeHealthScore(ctx context.Context, campaignID string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `
        UPDATE campaigns
        SET health_score = MAX(0, MIN(100, 100
            - ? * (SELECT COUNT(*) FROM alerts WHERE campaign_id = campaigns.id AND status = 'ACTIVE')
            - ? * (SELECT COUNT(*) FROM alerts WHERE campaign_id = campaigns.id AND status = 'ACTIVE' AND severity = 'CRITICAL')))
        WHERE id = ?
        RETURNING health_score`,
		model.ActiveAlertPenalty, model.CriticalAlertPenalty, campaignID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("recompute health score %s: %w", campaignID, model.ErrNotFound)
	}
	if err != nil {
		return 0, sqliteErr("recompute health score", err)
	}
	return score, nil
}

func scanSQLiteCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var created int64
	if err := row.Scan(&c.ID, &c.Name, &c.HealthScore, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = fromNanos(created)
	return &c, nil
}

// ─── Observations ────────────────────────────────────────────────────────────

func (s *SQLite) RecordObservation(ctx context.Context, obs model.Observation) (*model.Observation, error) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO metrics(campaign_id, name, value, threshold, sensitivity, timestamp)
        VALUES(?,?,?,?,?,?)`,
		obs.CampaignID, string(obs.Name), obs.Value, obs.Threshold, obs.Sensitivity, obs.Timestamp.UnixNano())
	if err != nil {
		return nil, sqliteErr("record observation", err)
	}
	obs.ID, _ = res.LastInsertId()
	return &obs, nil
}

func (s *SQLite) LatestObservations(ctx context.Context, campaignID string, metric model.MetricName, limit int) ([]model.Observation, error) {
	return s.queryObservations(ctx, `
        SELECT id, campaign_id, name, value, threshold, sensitivity, timestamp
        FROM metrics
        WHERE campaign_id = ? AND name = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, campaignID, string(metric), limit)
}

func (s *SQLite) RecentObservations(ctx context.Context, campaignID string, limit int) ([]model.Observation, error) {
	return s.queryObservations(ctx, `
        SELECT id, campaign_id, name, value, threshold, sensitivity, timestamp
        FROM metrics
        WHERE campaign_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, campaignID, limit)
}

func (s *SQLite) queryObservations(ctx context.Context, query string, args ...any) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("query observations", err)
	}
	defer rows.Close()

	list := []model.Observation{}
	for rows.Next() {
		var o model.Observation
		var name string
		var ts int64
		if err := rows.Scan(&o.ID, &o.CampaignID, &name, &o.Value, &o.Threshold, &o.Sensitivity, &ts); err != nil {
			return nil, sqliteErr("scan observation", err)
		}
		o.Name = model.MetricName(name)
		o.Timestamp = fromNanos(ts)
		list = append(list, o)
	}
	return list, sqliteErr("query observations", rows.Err())
}

// ─── Alerts ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAlert(row rowScanner, extra ...any) (*model.Alert, error) {
	var a model.Alert
	var metric, severity, status string
	var ts int64
	var resolved, dismissed sql.NullInt64
	dest := []any{&a.ID, &a.CampaignID, &metric, &severity, &a.Expected, &a.Actual, &a.Message, &status, &ts, &resolved, &dismissed}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.MetricName = model.MetricName(metric)
	a.Severity = model.Severity(severity)
	a.Status = model.AlertStatus(status)
	a.Timestamp = fromNanos(ts)
	a.ResolvedAt = nullableTime(resolved)
	a.DismissedAt = nullableTime(dismissed)
	return &a, nil
}

func (s *SQLite) FindActiveAlert(ctx context.Context, campaignID string, metric model.MetricName, since time.Time) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE campaign_id = ? AND metric_name = ? AND status = 'ACTIVE' AND timestamp >= ?
        ORDER BY timestamp DESC
        LIMIT 1`, campaignID, string(metric), since.UnixNano())
	a, err := scanSQLiteAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqliteErr("find active alert", err)
	}
	return a, nil
}

func (s *SQLite) CreateAlert(ctx context.Context, a model.Alert) (*model.Alert, error) {
	fillAlert(&a)
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts(id, campaign_id, metric_name, severity, expected, actual, message, status, timestamp)
        VALUES(?,?,?,?,?,?,?,'ACTIVE',?)
        ON CONFLICT DO NOTHING`,
		a.ID, a.CampaignID, string(a.MetricName), string(a.Severity), a.Expected, a.Actual, a.Message, a.Timestamp.UnixNano())
	if err != nil {
		return nil, sqliteErr("create alert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("create alert %s/%s: %w", a.CampaignID, a.MetricName, model.ErrDuplicateActive)
	}
	return &a, nil
}

func (s *SQLite) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	a, err := scanSQLiteAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteErr("get alert "+id, err)
	}
	return a, nil
}

func (s *SQLite) ListAlerts(ctx context.Context, f model.AlertFilter) ([]model.AlertListItem, error) {
	query := `
        SELECT a.id, a.campaign_id, a.metric_name, a.severity, a.expected, a.actual, a.message,
            a.status, a.timestamp, a.resolved_at, a.dismissed_at, c.name
        FROM alerts a
        JOIN campaigns c ON c.id = a.campaign_id
        WHERE 1=1`
	args := []any{}

	if f.CampaignID != "" {
		query += ` AND a.campaign_id = ?`
		args = append(args, f.CampaignID)
	}
	if f.Severity != "" {
		query += ` AND a.severity = ?`
		args = append(args, string(f.Severity))
	}
	if f.Status != "" {
		query += ` AND a.status = ?`
		args = append(args, string(f.Status))
	}
	if f.Start != nil {
		query += ` AND a.timestamp >= ?`
		args = append(args, f.Start.UnixNano())
	}
	if f.End != nil {
		query += ` AND a.timestamp <= ?`
		args = append(args, f.End.UnixNano())
	}
	query += ` ORDER BY a.timestamp DESC, a.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteErr("list alerts", err)
	}
	defer rows.Close()

	list := []model.AlertListItem{}
	for rows.Next() {
		var name string
		a, err := scanSQLiteAlert(rows, &name)
		if err != nil {
			return nil, sqliteErr("scan alert", err)
		}
		list = append(list, model.AlertListItem{Alert: *a, CampaignName: name})
	}
	return list, sqliteErr("list alerts", rows.Err())
}

func (s *SQLite) ListActiveAlerts(ctx context.Context, campaignID string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE campaign_id = ? AND status = 'ACTIVE'
        ORDER BY timestamp DESC, id DESC`, campaignID)
	if err != nil {
		return nil, sqliteErr("list active alerts", err)
	}
	defer rows.Close()

	list := []model.Alert{}
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, sqliteErr("scan alert", err)
		}
		list = append(list, *a)
	}
	return list, sqliteErr("list active alerts", rows.Err())
}

func (s *SQLite) TransitionAlert(ctx context.Context, id string, to model.AlertStatus, at time.Time) (*model.Alert, error) {
	column, err := transitionColumn(to)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = ?, `+column+` = ? WHERE id = ? AND status = 'ACTIVE'`,
		string(to), at.UnixNano(), id)
	if err != nil {
		return nil, sqliteErr("transition alert "+id, err)
	}
	n, _ := res.RowsAffected()

	current, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("alert %s is %s: %w", id, current.Status, model.ErrInvalidTransition)
	}
	return current, nil
}

func (s *SQLite) CountActiveAlerts(ctx context.Context, campaignID string) (int, int, error) {
	var total, critical int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COALESCE(SUM(CASE WHEN severity = 'CRITICAL' THEN 1 ELSE 0 END), 0)
        FROM alerts
        WHERE campaign_id = ? AND status = 'ACTIVE'`, campaignID).Scan(&total, &critical)
	if err != nil {
		return 0, 0, sqliteErr("count active alerts", err)
	}
	return total, critical, nil
}

// ─── Settings ────────────────────────────────────────────────────────────────

func (s *SQLite) GetSettings(ctx context.Context) (*model.Settings, error) {
	var st model.Settings
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM settings ORDER BY updated_at DESC LIMIT 1`).
		Scan(append(settingsFields(&st), &updated)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrConfigMissing
	}
	if err != nil {
		return nil, sqliteErr("get settings", err)
	}
	st.UpdatedAt = fromNanos(updated)
	return &st, nil
}

func (s *SQLite) SaveSettings(ctx context.Context, st model.Settings) (*model.Settings, error) {
	if st.ID == "" {
		st.ID = model.DefaultSettingsID
	}
	st.UpdatedAt = time.Now().UTC()

	values := settingsValues(st)
	values[len(values)-1] = st.UpdatedAt.UnixNano()
	_, err := s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO settings(`+settingsColumns+`)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, values...)
	if err != nil {
		return nil, sqliteErr("save settings", err)
	}
	return &st, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// sqliteErr - translate driver errors into the model taxonomy
func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
		}
	}
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
