package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Detection DetectionConfig
	Events    EventsConfig
	Log       LogConfig
	Alert     AlertConfig
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
	GinMode            string
}

type StoreConfig struct {
	Driver     string // postgres, sqlite, memory
	SQLitePath string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
}

type DetectionConfig struct {
	Enabled          bool
	Interval         time.Duration
	Workers          int
	HistorySize      int
	MinHistory       int
	DedupWindow      time.Duration
	CampaignTimeout  time.Duration
	WarningMultiple  float64
	CriticalMultiple float64
}

type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

type LogConfig struct {
	Level     string
	Format    string // json, console
	File      string
	MaxSizeMB int
}

type AlertConfig struct {
	MessageTemplate string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:               getenv("PORT", "8080"),
			CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
			GinMode:            os.Getenv("GIN_MODE"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getenv("STORE_DRIVER", StoreDriverPostgres)),
			SQLitePath: getenv("SQLITE_PATH", "adwatch.db"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
			MaxConns:    int32(getenvInt("PG_MAX_CONNS", 0)),
		},
		Detection: DetectionConfig{
			Enabled:          getenvBool("DETECTION_ENABLED", true),
			Interval:         getenvDuration("DETECTION_INTERVAL", 10*time.Second),
			Workers:          getenvInt("DETECTION_WORKERS", 4),
			HistorySize:      getenvInt("DETECTION_HISTORY_SIZE", 10),
			MinHistory:       getenvInt("DETECTION_MIN_HISTORY", 5),
			DedupWindow:      getenvDuration("DEDUP_WINDOW", time.Hour),
			CampaignTimeout:  getenvDuration("CAMPAIGN_TIMEOUT", 5*time.Second),
			WarningMultiple:  getenvFloat("SEVERITY_WARNING_MULTIPLE", 1.5),
			CriticalMultiple: getenvFloat("SEVERITY_CRITICAL_MULTIPLE", 2.0),
		},
		Events: EventsConfig{
			NATSURL:       os.Getenv("NATS_URL"),
			SubjectPrefix: getenv("EVENT_SUBJECT_PREFIX", "adwatch"),
		},
		Log: LogConfig{
			Level:     getenv("LOG_LEVEL", "info"),
			Format:    getenv("LOG_FORMAT", "json"),
			File:      os.Getenv("LOG_FILE"),
			MaxSizeMB: getenvInt("LOG_MAX_SIZE_MB", 100),
		},
		Alert: AlertConfig{
			MessageTemplate: os.Getenv("ALERT_MESSAGE_TEMPLATE"),
		},
	}
}

// Validate reports combinations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	d := c.Detection
	if d.HistorySize < 5 {
		return fmt.Errorf("DETECTION_HISTORY_SIZE must be >= 5, got %d", d.HistorySize)
	}
	if d.MinHistory < 1 || d.MinHistory > d.HistorySize {
		return fmt.Errorf("DETECTION_MIN_HISTORY must be within [1,%d], got %d", d.HistorySize, d.MinHistory)
	}
	if d.Workers < 1 {
		return fmt.Errorf("DETECTION_WORKERS must be >= 1, got %d", d.Workers)
	}
	if d.Interval <= 0 || d.DedupWindow <= 0 || d.CampaignTimeout <= 0 {
		return fmt.Errorf("detection durations must be positive")
	}
	if d.WarningMultiple < 1 || d.CriticalMultiple <= d.WarningMultiple {
		return fmt.Errorf("severity multiples must satisfy 1 <= warning (%v) < critical (%v)", d.WarningMultiple, d.CriticalMultiple)
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
