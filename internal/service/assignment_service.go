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

type assignmentRepository interface {
	List(ctx context.Context, vis repository.Visibility, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type assignmentLessonLookup interface {
	FindByID(ctx context.Context, id string) (*models.LessonDetail, error)
}

// CreateAssignmentRequest holds payload for handing out assignments.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	StudentID   string     `json:"student_id" validate:"required,uuid4"`
	LessonID    *string    `json:"lesson_id,omitempty" validate:"omitempty,uuid4"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateAssignmentRequest holds payload for updating assignments.
type UpdateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// AssignmentService handles practice assignment use-cases.
type AssignmentService struct {
	repo      assignmentRepository
	profiles  lessonProfileLookup
	lessons   assignmentLessonLookup
	cache     healthInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(repo assignmentRepository, profiles lessonProfileLookup, lessons assignmentLessonLookup, cache healthInvalidator, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, profiles: profiles, lessons: lessons, cache: cache, validator: validate, logger: logger}
}

// List returns assignments the caller may see plus pagination metadata.
func (s *AssignmentService) List(ctx context.Context, claims *models.JWTClaims, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	vis := repository.VisibilityFor(claims.Roles(), claims.UserID)
	assignments, total, err := s.repo.List(ctx, vis, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return assignments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one assignment if the caller may see it.
func (s *AssignmentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !canSeeAssignment(claims, &assignment.Assignment) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return assignment, nil
}

// Create hands out an assignment. The target must be an active student and,
// when a lesson is referenced, that lesson must belong to the same
// teacher/student pair.
func (s *AssignmentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !claims.IsAdmin && !claims.IsTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create assignments")
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

	if req.LessonID != nil {
		lesson, err := s.lessons.FindByID(ctx, *req.LessonID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify lesson")
		}
		if lesson.StudentID != req.StudentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lesson belongs to a different student")
		}
		if !claims.IsAdmin && lesson.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
		}
	}

	assignment := &models.Assignment{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   claims.UserID,
		StudentID:   req.StudentID,
		LessonID:    req.LessonID,
		Status:      models.AssignmentPending,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.invalidateHealth(ctx)
	return assignment, nil
}

// Update modifies an assignment's content. Owning teacher or admin only.
func (s *AssignmentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	detail, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	assignment := detail.Assignment
	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.DueDate = req.DueDate
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	s.invalidateHealth(ctx)
	return &assignment, nil
}

// Complete marks an assignment completed. The assigned student may complete
// their own work; the owning teacher and admins may complete on their behalf.
func (s *AssignmentService) Complete(ctx context.Context, claims *models.JWTClaims, id string) (*models.Assignment, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	allowed := claims.IsAdmin ||
		(claims.IsTeacher && detail.TeacherID == claims.UserID) ||
		(claims.IsStudent && detail.StudentID == claims.UserID)
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to someone else")
	}
	if detail.Status == models.AssignmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already completed")
	}

	now := time.Now().UTC()
	assignment := detail.Assignment
	assignment.Status = models.AssignmentCompleted
	assignment.CompletedAt = &now
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete assignment")
	}
	s.invalidateHealth(ctx)
	return &assignment, nil
}

// Delete removes an assignment. Owning teacher or admin only.
func (s *AssignmentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.loadOwned(ctx, claims, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.invalidateHealth(ctx)
	return nil
}

func (s *AssignmentService) loadOwned(ctx context.Context, claims *models.JWTClaims, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !claims.IsAdmin && !(claims.IsTeacher && detail.TeacherID == claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	return detail, nil
}

func (s *AssignmentService) invalidateHealth(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "health:*"); err != nil {
		s.logger.Warn("failed to invalidate health cache", zap.Error(err))
	}
}

func canSeeAssignment(claims *models.JWTClaims, assignment *models.Assignment) bool {
	switch {
	case claims.IsAdmin:
		return true
	case claims.IsTeacher:
		return assignment.TeacherID == claims.UserID
	case claims.IsStudent:
		return assignment.StudentID == claims.UserID
	default:
		return false
	}
}
