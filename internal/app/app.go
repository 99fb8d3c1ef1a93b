// Package app wires configuration into a running engine.
//
// Flow:
//  1. OpenStore picks postgres / sqlite / memory from STORE_DRIVER and ensures the schema
//  2. OpenEvents connects NATS when NATS_URL is set, else a no-op publisher
//  3. New builds scorer, deduplicator, lifecycle, health scorer, scanner and the HTTP services
package app

import (
	"context"
	"fmt"

	"github.com/adwatch/backend/internal/client"
	"github.com/adwatch/backend/internal/config"
	"github.com/adwatch/backend/internal/db"
	"github.com/adwatch/backend/internal/detector"
	"github.com/adwatch/backend/internal/handler"
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Events - publisher the engine owns and must close on shutdown
type Events interface {
	service.EventPublisher
	Close()
}

type App struct {
	Config   config.Config
	Store    service.Store
	Events   Events
	Scanner  *service.Scanner
	Services handler.Services
	Log      *zap.Logger
}

func OpenStore(ctx context.Context, cfg config.Config) (service.Store, error) {
	var (
		store service.Store
		err   error
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		store, err = db.NewPostgres(ctx, cfg.Postgres)
	case config.StoreDriverSQLite:
		store, err = db.NewSQLite(cfg.Store.SQLitePath)
	case config.StoreDriverMemory:
		store = db.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func OpenEvents(cfg config.EventsConfig, log *zap.Logger) (Events, error) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, alert events disabled")
		return client.NopPublisher{}, nil
	}
	pub, err := client.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	log.Info("publishing alert events", zap.String("url", cfg.NATSURL), zap.String("prefix", cfg.SubjectPrefix))
	return pub, nil
}

// New assembles the engine around an already opened store and publisher.
func New(cfg config.Config, store service.Store, events Events, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bands := detector.SeverityBands{Warning: cfg.Detection.WarningMultiple, Critical: cfg.Detection.CriticalMultiple}
	if err := bands.Validate(); err != nil {
		return nil, err
	}

	settings := service.NewSettingsService(store)
	health := service.NewHealthScorer(store, log.Named("health"))
	dedup := service.NewDeduplicator(store, cfg.Detection.DedupWindow)
	lifecycle := service.NewAlertLifecycle(store, health, events, log.Named("lifecycle"))
	scanner := service.NewScanner(store, settings, detector.NewScorer(bands), dedup, lifecycle, health,
		service.ScannerConfig{
			Workers:         cfg.Detection.Workers,
			HistorySize:     cfg.Detection.HistorySize,
			MinHistory:      cfg.Detection.MinHistory,
			CampaignTimeout: cfg.Detection.CampaignTimeout,
			MessageTemplate: cfg.Alert.MessageTemplate,
		}, log.Named("scanner"))

	return &App{
		Config:  cfg,
		Store:   store,
		Events:  events,
		Scanner: scanner,
		Services: handler.Services{
			Campaigns: service.NewCampaignService(store, settings),
			Alerts:    service.NewAlertService(store, lifecycle),
			Settings:  settings,
			Scanner:   scanner,
		},
		Log: log,
	}, nil
}

func (a *App) Router() *gin.Engine {
	if a.Config.Server.GinMode != "" {
		gin.SetMode(a.Config.Server.GinMode)
	}
	return handler.NewRouter(a.Services, handler.RouterOptions{
		AllowedOrigins: a.Config.Server.CORSAllowedOrigins,
		Logger:         a.Log.Named("http"),
	})
}

func (a *App) Close() {
	a.Events.Close()
	a.Store.Close()
}
