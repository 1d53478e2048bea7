package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, vis repository.Visibility, filter models.LessonFilter) ([]models.LessonDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.LessonDetail, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type lessonProfileLookup interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

type healthInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateLessonRequest holds payload for scheduling lessons.
type CreateLessonRequest struct {
	StudentID       string    `json:"student_id" validate:"required,uuid4"`
	Title           string    `json:"title" validate:"required"`
	Notes           string    `json:"notes"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=15,max=240"`
}

// UpdateLessonRequest holds payload for updating lessons.
type UpdateLessonRequest struct {
	Title           string    `json:"title" validate:"required"`
	Notes           string    `json:"notes"`
	Status          string    `json:"status" validate:"required,oneof=SCHEDULED COMPLETED CANCELLED"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=15,max=240"`
}

// LessonService handles lesson use-cases. Reads are bounded by the caller's
// visibility; writes additionally require ownership or admin.
type LessonService struct {
	repo      lessonRepository
	profiles  lessonProfileLookup
	cache     healthInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(repo lessonRepository, profiles lessonProfileLookup, cache healthInvalidator, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, profiles: profiles, cache: cache, validator: validate, logger: logger}
}

// List returns lessons the caller may see plus pagination metadata.
func (s *LessonService) List(ctx context.Context, claims *models.JWTClaims, filter models.LessonFilter) ([]models.LessonDetail, *models.Pagination, error) {
	vis := repository.VisibilityFor(claims.Roles(), claims.UserID)
	lessons, total, err := s.repo.List(ctx, vis, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return lessons, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one lesson if the caller may see it.
func (s *LessonService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.LessonDetail, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !canSeeLesson(claims, &lesson.Lesson) {
		// Hidden rows read as absent, matching the list behaviour.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return lesson, nil
}

// Create schedules a lesson owned by the calling teacher.
func (s *LessonService) Create(ctx context.Context, claims *models.JWTClaims, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if !claims.IsAdmin && !claims.IsTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can schedule lessons")
	}

	student, err := s.profiles.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify student")
	}
	if !student.IsStudent || !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target profile is not an active student")
	}

	lesson := &models.Lesson{
		TeacherID:       claims.UserID,
		StudentID:       req.StudentID,
		Title:           req.Title,
		Notes:           req.Notes,
		Status:          models.LessonStatusScheduled,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	s.invalidateHealth(ctx)
	return lesson, nil
}

// Update modifies a lesson. Only the owning teacher or an admin may write.
func (s *LessonService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !canWriteLesson(claims, &detail.Lesson) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}

	lesson := detail.Lesson
	lesson.Title = req.Title
	lesson.Notes = req.Notes
	lesson.Status = models.LessonStatus(req.Status)
	lesson.ScheduledAt = req.ScheduledAt
	lesson.DurationMinutes = req.DurationMinutes
	if err := s.repo.Update(ctx, &lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	s.invalidateHealth(ctx)
	return &lesson, nil
}

// Delete removes a lesson. Only the owning teacher or an admin may delete.
func (s *LessonService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if !canWriteLesson(claims, &detail.Lesson) {
		return appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.invalidateHealth(ctx)
	return nil
}

func (s *LessonService) invalidateHealth(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "health:*"); err != nil {
		s.logger.Warn("failed to invalidate health cache", zap.Error(err))
	}
}

func canSeeLesson(claims *models.JWTClaims, lesson *models.Lesson) bool {
	switch {
	case claims.IsAdmin:
		return true
	case claims.IsTeacher:
		return lesson.TeacherID == claims.UserID
	case claims.IsStudent:
		return lesson.StudentID == claims.UserID
	default:
		return false
	}
}

func canWriteLesson(claims *models.JWTClaims, lesson *models.Lesson) bool {
	if claims.IsAdmin {
		return true
	}
	return claims.IsTeacher && lesson.TeacherID == claims.UserID
}
