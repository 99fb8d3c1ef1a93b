package handler

import (
	"net/http"

	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type DetectionHandler struct {
	scanner *service.Scanner
}

func NewDetectionHandler(scanner *service.Scanner) *DetectionHandler {
	return &DetectionHandler{scanner: scanner}
}

// RunDetection godoc
// @Summary Run one detection cycle now
// @Tags detection
// @Produce json
// @Success 200 {object} model.CycleReport
// @Failure 409 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/detection/run [post]
func (h *DetectionHandler) RunDetection(c *gin.Context) {
	report, err := h.scanner.RunDetectionCycle(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
