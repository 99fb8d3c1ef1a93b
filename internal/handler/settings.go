package handler

import (
	"net/http"

	"github.com/adwatch/backend/internal/model"
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	svc *service.SettingsService
}

func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// GetSettings godoc
// @Summary Get detection settings
// @Description Returns defaults when nothing has been saved yet
// @Tags settings
// @Produce json
// @Success 200 {object} model.Settings
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateSettings godoc
// @Summary Update detection settings
// @Description Fields present in the body are merged onto the current settings
// @Tags settings
// @Accept json
// @Produce json
// @Param request body model.Settings true "Settings"
// @Success 200 {object} model.Settings
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	// fields missing from the payload keep their stored values
	req, err := h.svc.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid payload"})
		return
	}
	res, err := h.svc.Update(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
