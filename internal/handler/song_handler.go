package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/service"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/response"
)

// SongHandler exposes the song catalog and progress endpoints.
type SongHandler struct {
	songs *service.SongService
}

// NewSongHandler constructs SongHandler.
func NewSongHandler(songs *service.SongService) *SongHandler {
	return &SongHandler{songs: songs}
}

// List godoc
// @Summary List catalog songs
// @Tags Songs
// @Produce json
// @Security BearerAuth
// @Param level query string false "Filter by level"
// @Param key query string false "Filter by key"
// @Param search query string false "Search by title or author"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /songs [get]
func (h *SongHandler) List(c *gin.Context) {
	var filter models.SongFilter
	filter.Level = c.Query("level")
	filter.Key = c.Query("key")
	filter.Author = c.Query("author")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	songs, pagination, err := h.songs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, songs, pagination)
}

// Get godoc
// @Summary Get one catalog song
// @Tags Songs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Song ID"
// @Success 200 {object} response.Envelope
// @Router /songs/{id} [get]
func (h *SongHandler) Get(c *gin.Context) {
	song, err := h.songs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, song, nil)
}

// Create godoc
// @Summary Add a song to the catalog
// @Tags Songs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SongRequest true "Song payload"
// @Success 201 {object} response.Envelope
// @Router /songs [post]
func (h *SongHandler) Create(c *gin.Context) {
	var req service.SongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	song, err := h.songs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, song)
}

// Update godoc
// @Summary Update a catalog song
// @Tags Songs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Song ID"
// @Param payload body service.SongRequest true "Song payload"
// @Success 200 {object} response.Envelope
// @Router /songs/{id} [put]
func (h *SongHandler) Update(c *gin.Context) {
	var req service.SongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	song, err := h.songs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, song, nil)
}

// Delete godoc
// @Summary Remove a catalog song
// @Tags Songs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Song ID"
// @Success 204
// @Router /songs/{id} [delete]
func (h *SongHandler) Delete(c *gin.Context) {
	if err := h.songs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetProgress godoc
// @Summary Record song progress
// @Tags Songs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID (teachers and admins only)"
// @Param payload body service.ProgressRequest true "Progress payload"
// @Success 201 {object} response.Envelope
// @Router /songs/progress [post]
func (h *SongHandler) SetProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	progress, err := h.songs.SetProgress(c.Request.Context(), claims, c.Query("student_id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, progress)
}

// ListProgress godoc
// @Summary List song progress for a student
// @Tags Songs
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID (teachers and admins only)"
// @Success 200 {object} response.Envelope
// @Router /songs/progress [get]
func (h *SongHandler) ListProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	progress, err := h.songs.ListProgress(c.Request.Context(), claims, c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// DeleteProgress godoc
// @Summary Remove one of the caller's progress entries
// @Tags Songs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Progress ID"
// @Success 204
// @Router /songs/progress/{id} [delete]
func (h *SongHandler) DeleteProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.songs.DeleteProgress(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
