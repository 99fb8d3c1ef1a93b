package handler

import (
	"net/http"

	"github.com/adwatch/backend/internal/model"
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	svc *service.CampaignService
}

func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{svc: svc}
}

// GetCampaigns godoc
// @Summary List campaigns
// @Description Ordered by health score ascending, each with its derived alert status
// @Tags campaigns
// @Produce json
// @Success 200 {array} model.CampaignListResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetCampaign godoc
// @Summary Get campaign detail
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} model.CampaignDetailResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateCampaign godoc
// @Summary Create campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Param request body model.CreateCampaignRequest true "Campaign"
// @Success 201 {object} model.Campaign
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid payload"})
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// RecordObservation godoc
// @Summary Record a metric observation
// @Description Threshold and sensitivity are stamped from the current settings
// @Tags campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body model.RecordObservationRequest true "Observation"
// @Success 201 {object} model.ObservationCreatedResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/campaigns/{id}/metrics [post]
func (h *CampaignHandler) RecordObservation(c *gin.Context) {
	var req model.RecordObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid payload"})
		return
	}
	obs, err := h.svc.RecordObservation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.ObservationCreatedResponse{Status: "recorded", Observation: *obs})
}
