package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strumline/guitar-crm-api/internal/service"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/response"
)

// ExportHandler exposes file download endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// HealthCSV godoc
// @Summary Download the health dashboard as CSV
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file
// @Router /exports/health [get]
func (h *ExportHandler) HealthCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, filename, err := h.exports.HealthCSV(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// ProgressPDF godoc
// @Summary Download a song progress report as PDF
// @Tags Exports
// @Produce application/pdf
// @Security BearerAuth
// @Param student_id query string false "Student ID (teachers and admins only)"
// @Success 200 {file} file
// @Router /exports/progress [get]
func (h *ExportHandler) ProgressPDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, filename, err := h.exports.ProgressPDF(c.Request.Context(), claims, c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}
