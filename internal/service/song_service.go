package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type songRepository interface {
	List(ctx context.Context, filter models.SongFilter) ([]models.Song, int, error)
	FindByID(ctx context.Context, id string) (*models.Song, error)
	Create(ctx context.Context, song *models.Song) error
	Update(ctx context.Context, song *models.Song) error
	Delete(ctx context.Context, id string) error
	UpsertProgress(ctx context.Context, progress *models.SongProgress) error
	ListProgress(ctx context.Context, studentID string) ([]models.SongProgressDetail, error)
	DeleteProgress(ctx context.Context, id, studentID string) (bool, error)
}

// SongRequest holds payload for creating or updating catalog songs.
type SongRequest struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Level  string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Key    string `json:"key" validate:"required"`
}

// ProgressRequest records a student's standing on a song.
type ProgressRequest struct {
	SongID string `json:"song_id" validate:"required,uuid4"`
	Status string `json:"status" validate:"required,oneof=want_to_learn learning mastered"`
}

// SongService handles the shared song catalog and per-student progress. The
// catalog is readable by every authenticated role; writes are teacher/admin.
type SongService struct {
	repo      songRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSongService constructs the song service.
func NewSongService(repo songRepository, validate *validator.Validate, logger *zap.Logger) *SongService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SongService{repo: repo, validator: validate, logger: logger}
}

// List returns catalog songs and pagination metadata.
func (s *SongService) List(ctx context.Context, filter models.SongFilter) ([]models.Song, *models.Pagination, error) {
	songs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list songs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return songs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one catalog song.
func (s *SongService) Get(ctx context.Context, id string) (*models.Song, error) {
	song, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "song not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load song")
	}
	return song, nil
}

// Create adds a song to the catalog.
func (s *SongService) Create(ctx context.Context, req SongRequest) (*models.Song, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid song payload")
	}
	song := &models.Song{Title: req.Title, Author: req.Author, Level: req.Level, Key: req.Key}
	if err := s.repo.Create(ctx, song); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create song")
	}
	return song, nil
}

// Update modifies a catalog song.
func (s *SongService) Update(ctx context.Context, id string, req SongRequest) (*models.Song, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid song payload")
	}
	song, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "song not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load song")
	}
	song.Title = req.Title
	song.Author = req.Author
	song.Level = req.Level
	song.Key = req.Key
	if err := s.repo.Update(ctx, song); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update song")
	}
	return song, nil
}

// Delete removes a catalog song.
func (s *SongService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "song not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load song")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete song")
	}
	return nil
}

// SetProgress records the caller's standing on a song. Students may only
// write their own rows; teachers and admins may record for a student.
func (s *SongService) SetProgress(ctx context.Context, claims *models.JWTClaims, studentID string, req ProgressRequest) (*models.SongProgress, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if studentID == "" {
		studentID = claims.UserID
	}
	if !claims.IsAdmin && !claims.IsTeacher && studentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot record progress for another student")
	}

	if _, err := s.repo.FindByID(ctx, req.SongID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "song not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify song")
	}

	now := time.Now().UTC()
	progress := &models.SongProgress{
		SongID:    req.SongID,
		StudentID: studentID,
		Status:    models.ProgressStatus(req.Status),
	}
	switch progress.Status {
	case models.ProgressLearning:
		progress.StartedAt = &now
	case models.ProgressMastered:
		progress.StartedAt = &now
		progress.MasteredAt = &now
	}
	if err := s.repo.UpsertProgress(ctx, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	return progress, nil
}

// ListProgress returns a student's progress rows. Students see their own;
// teachers and admins may inspect any student.
func (s *SongService) ListProgress(ctx context.Context, claims *models.JWTClaims, studentID string) ([]models.SongProgressDetail, error) {
	if studentID == "" {
		studentID = claims.UserID
	}
	if !claims.IsAdmin && !claims.IsTeacher && studentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another student's progress")
	}
	progress, err := s.repo.ListProgress(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}
	return progress, nil
}

// DeleteProgress removes one of the caller's progress rows.
func (s *SongService) DeleteProgress(ctx context.Context, claims *models.JWTClaims, id string) error {
	deleted, err := s.repo.DeleteProgress(ctx, id, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete progress")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "progress entry not found")
	}
	return nil
}
