package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strumline/guitar-crm-api/internal/service"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/response"
)

// HealthHandler exposes the student health dashboard.
type HealthHandler struct {
	health *service.HealthService
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(health *service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Dashboard godoc
// @Summary Ranked student health dashboard
// @Description One scored row per visible student, worst first.
// @Tags Health
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/health [get]
func (h *HealthHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summaries, err := h.health.Dashboard(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}
