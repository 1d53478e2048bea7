package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type mockAssignmentRepo struct {
	byID    map[string]*models.AssignmentDetail
	created *models.Assignment
	updated *models.Assignment
}

func (m *mockAssignmentRepo) List(ctx context.Context, vis repository.Visibility, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	m.created = assignment
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	m.updated = assignment
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	return nil
}

type mockProfileLookup struct {
	profiles map[string]*models.Profile
}

func (m *mockProfileLookup) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	profile, ok := m.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return profile, nil
}

type mockLessonLookup struct {
	lessons map[string]*models.LessonDetail
}

func (m *mockLessonLookup) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	lesson, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lesson, nil
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func pendingAssignment() *models.AssignmentDetail {
	return &models.AssignmentDetail{Assignment: models.Assignment{
		ID:        "a1",
		Title:     "Practice scales",
		TeacherID: "t1",
		StudentID: "s1",
		Status:    models.AssignmentPending,
	}}
}

func newAssignmentFixture(repo *mockAssignmentRepo) (*AssignmentService, *mockInvalidator) {
	profiles := &mockProfileLookup{profiles: map[string]*models.Profile{
		"s1": {ID: "s1", IsStudent: true, Active: true},
	}}
	lessons := &mockLessonLookup{lessons: map[string]*models.LessonDetail{}}
	cache := &mockInvalidator{}
	svc := NewAssignmentService(repo, profiles, lessons, cache, nil, zap.NewNop())
	return svc, cache
}

func TestAssignmentCompleteByStudent(t *testing.T) {
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{"a1": pendingAssignment()}}
	svc, cache := newAssignmentFixture(repo)
	claims := &models.JWTClaims{UserID: "s1", IsStudent: true}

	assignment, err := svc.Complete(context.Background(), claims, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, assignment.Status)
	require.NotNil(t, assignment.CompletedAt)
	require.NotNil(t, repo.updated)
	assert.Contains(t, cache.patterns, "health:*")
}

func TestAssignmentCompleteByOwningTeacher(t *testing.T) {
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{"a1": pendingAssignment()}}
	svc, _ := newAssignmentFixture(repo)
	claims := &models.JWTClaims{UserID: "t1", IsTeacher: true}

	_, err := svc.Complete(context.Background(), claims, "a1")
	require.NoError(t, err)
}

func TestAssignmentCompleteForbiddenForOtherStudent(t *testing.T) {
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{"a1": pendingAssignment()}}
	svc, _ := newAssignmentFixture(repo)
	claims := &models.JWTClaims{UserID: "s2", IsStudent: true}

	_, err := svc.Complete(context.Background(), claims, "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCompleteAlreadyCompleted(t *testing.T) {
	detail := pendingAssignment()
	detail.Status = models.AssignmentCompleted
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{"a1": detail}}
	svc, _ := newAssignmentFixture(repo)
	claims := &models.JWTClaims{UserID: "s1", IsStudent: true}

	_, err := svc.Complete(context.Background(), claims, "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCreateRejectsNonStudentTarget(t *testing.T) {
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{}}
	profiles := &mockProfileLookup{profiles: map[string]*models.Profile{
		"t2": {ID: "t2", IsTeacher: true, Active: true},
	}}
	svc := NewAssignmentService(repo, profiles, &mockLessonLookup{}, nil, nil, zap.NewNop())
	claims := &models.JWTClaims{UserID: "t1", IsTeacher: true}

	_, err := svc.Create(context.Background(), claims, CreateAssignmentRequest{
		Title:     "Practice scales",
		StudentID: "8f14e45f-ea4a-4f39-a8b7-944fe4c0a0e1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCreateLessonMustMatchStudent(t *testing.T) {
	studentID := "8f14e45f-ea4a-4f39-a8b7-944fe4c0a0e1"
	lessonID := "0d61f837-8cbb-4f58-9a4c-1f0d2f3a4b5c"
	repo := &mockAssignmentRepo{byID: map[string]*models.AssignmentDetail{}}
	profiles := &mockProfileLookup{profiles: map[string]*models.Profile{
		studentID: {ID: studentID, IsStudent: true, Active: true},
	}}
	lessons := &mockLessonLookup{lessons: map[string]*models.LessonDetail{
		lessonID: {Lesson: models.Lesson{ID: lessonID, TeacherID: "t1", StudentID: "someone-else"}},
	}}
	svc := NewAssignmentService(repo, profiles, lessons, nil, nil, zap.NewNop())
	claims := &models.JWTClaims{UserID: "t1", IsTeacher: true}

	_, err := svc.Create(context.Background(), claims, CreateAssignmentRequest{
		Title:     "Practice scales",
		StudentID: studentID,
		LessonID:  &lessonID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
