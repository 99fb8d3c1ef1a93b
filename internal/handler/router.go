package handler

import (
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services - everything the HTTP surface talks to
type Services struct {
	Campaigns *service.CampaignService
	Alerts    *service.AlertService
	Settings  *service.SettingsService
	Scanner   *service.Scanner
}

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter
// Flow:
//  1. recovery, request logging, CORS
//  2. health + prometheus scrape endpoint
//  3. /api/v1 resource routes
func NewRouter(svcs Services, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORSMiddleware(opts.AllowedOrigins, false))

	r.GET("/", Root)
	r.GET("/ping", Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	campaigns := NewCampaignHandler(svcs.Campaigns)
	alerts := NewAlertHandler(svcs.Alerts)
	settings := NewSettingsHandler(svcs.Settings)
	detection := NewDetectionHandler(svcs.Scanner)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/campaigns", campaigns.GetCampaigns)
		v1.POST("/campaigns", campaigns.CreateCampaign)
		v1.GET("/campaigns/:id", campaigns.GetCampaign)
		v1.POST("/campaigns/:id/metrics", campaigns.RecordObservation)

		v1.GET("/alerts", alerts.GetAlerts)
		v1.GET("/alerts/:id", alerts.GetAlert)
		v1.POST("/alerts/:id/resolve", alerts.ResolveAlert)
		v1.POST("/alerts/:id/dismiss", alerts.DismissAlert)

		v1.GET("/settings", settings.GetSettings)
		v1.PUT("/settings", settings.UpdateSettings)

		v1.POST("/detection/run", detection.RunDetection)
	}

	return r
}
