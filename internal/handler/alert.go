package handler

import (
	"net/http"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	svc *service.AlertService
}

func NewAlertHandler(svc *service.AlertService) *AlertHandler {
	return &AlertHandler{svc: svc}
}

// GetAlerts godoc
// @Summary List alerts
// @Description Newest first. start/end accept RFC3339 timestamps or YYYY-MM-DD dates (end date is inclusive).
// @Tags alerts
// @Produce json
// @Param severity query string false "CRITICAL | WARNING | INFO"
// @Param status query string false "ACTIVE | RESOLVED | DISMISSED"
// @Param campaignId query string false "Campaign ID"
// @Param start query string false "Earliest alert timestamp"
// @Param end query string false "Latest alert timestamp"
// @Success 200 {array} model.AlertListItem
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/alerts [get]
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	filter := model.AlertFilter{
		CampaignID: c.Query("campaignId"),
		Severity:   model.Severity(c.Query("severity")),
		Status:     model.AlertStatus(c.Query("status")),
	}
	var err error
	if filter.Start, err = parseTimeParam(c.Query("start"), false); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid start: " + err.Error()})
		return
	}
	if filter.End, err = parseTimeParam(c.Query("end"), true); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid end: " + err.Error()})
		return
	}

	res, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetAlert godoc
// @Summary Get alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} model.Alert
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResolveAlert godoc
// @Summary Resolve an active alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} model.AlertTransitionResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	a, err := h.svc.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertTransitionResponse{Status: "resolved", Alert: *a})
}

// DismissAlert godoc
// @Summary Dismiss an active alert
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} model.AlertTransitionResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/alerts/{id}/dismiss [post]
func (h *AlertHandler) DismissAlert(c *gin.Context) {
	a, err := h.svc.Dismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AlertTransitionResponse{Status: "dismissed", Alert: *a})
}

// parseTimeParam - empty input yields nil; a bare date as an upper bound covers the whole day
func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
