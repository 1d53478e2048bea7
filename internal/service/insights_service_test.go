package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
)

type stubInsightsProfiles struct {
	teachers []models.Profile
}

func (s *stubInsightsProfiles) ListActiveTeachers(ctx context.Context) ([]models.Profile, error) {
	return s.teachers, nil
}

type stubInsightsLessons struct {
	completed int
	cancelled int
	students  []models.InsightStudent
}

func (s *stubInsightsLessons) CountByStatusInRange(ctx context.Context, teacherID string, status models.LessonStatus, from, to time.Time) (int, error) {
	if status == models.LessonStatusCompleted {
		return s.completed, nil
	}
	return s.cancelled, nil
}

func (s *stubInsightsLessons) NewStudentsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.InsightStudent, error) {
	return s.students, nil
}

type stubInsightsAssignments struct {
	overdue   []models.OverdueAssignmentLine
	completed int
	flipped   []models.Assignment
	limit     int
}

func (s *stubInsightsAssignments) OverdueForTeacher(ctx context.Context, teacherID string) ([]models.OverdueAssignmentLine, error) {
	return s.overdue, nil
}

func (s *stubInsightsAssignments) CompletedInRange(ctx context.Context, teacherID string, from, to time.Time) (int, error) {
	return s.completed, nil
}

func (s *stubInsightsAssignments) MarkOverdue(ctx context.Context, now time.Time, limit int) ([]models.Assignment, error) {
	s.limit = limit
	return s.flipped, nil
}

type stubInsightsSongs struct {
	mastered []models.MasteredSong
}

func (s *stubInsightsSongs) MasteredInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.MasteredSong, error) {
	return s.mastered, nil
}

type stubAtRiskProvider struct {
	atRisk    []models.AtRiskStudent
	threshold int
}

func (s *stubAtRiskProvider) AtRiskFor(ctx context.Context, teacherID string, threshold int) ([]models.AtRiskStudent, error) {
	s.threshold = threshold
	return s.atRisk, nil
}

type stubNotifier struct {
	delivered []models.Notification
	err       error
}

func (s *stubNotifier) Deliver(ctx context.Context, notification models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, notification)
	return nil
}

func newInsightsFixture() (*InsightsService, *stubInsightsAssignments, *stubAtRiskProvider, *stubNotifier) {
	profiles := &stubInsightsProfiles{teachers: []models.Profile{
		{ID: "t1", FullName: "Marta", Email: "marta@example.com", IsTeacher: true, Active: true},
	}}
	lessons := &stubInsightsLessons{completed: 6, cancelled: 1, students: []models.InsightStudent{{ID: "s1", Name: "Alice"}}}
	assignments := &stubInsightsAssignments{
		overdue:   []models.OverdueAssignmentLine{{StudentName: "Bob", AssignmentTitle: "Barre chords", DueDate: time.Now()}},
		completed: 3,
	}
	songs := &stubInsightsSongs{mastered: []models.MasteredSong{{StudentName: "Alice", SongTitle: "Blackbird"}}}
	health := &stubAtRiskProvider{atRisk: []models.AtRiskStudent{
		{InsightStudent: models.InsightStudent{ID: "s2", Name: "Bob"}, HealthScore: 22, OverdueAssignments: 2},
	}}
	notifier := &stubNotifier{}
	svc := NewInsightsService(profiles, lessons, assignments, songs, health, notifier, InsightsConfig{AtRiskThreshold: 35, OverdueBatchSize: 50}, zap.NewNop())
	return svc, assignments, health, notifier
}

func TestWeeklyForAssemblesDigest(t *testing.T) {
	svc, _, health, _ := newInsightsFixture()

	insights, err := svc.WeeklyFor(context.Background(), models.Profile{ID: "t1", FullName: "Marta", Email: "marta@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "t1", insights.TeacherID)
	assert.Equal(t, 6, insights.LessonsCompleted)
	assert.Equal(t, 1, insights.LessonsCancelled)
	assert.Equal(t, 3, insights.AssignmentsDone)
	assert.Len(t, insights.NewStudents, 1)
	assert.Len(t, insights.SongsMastered, 1)
	assert.Len(t, insights.AtRiskStudents, 1)
	assert.Len(t, insights.OverdueAssignments, 1)
	assert.Equal(t, 35, health.threshold)
	assert.Equal(t, 7*24*time.Hour, insights.RangeEnd.Sub(insights.RangeStart))
}

func TestRunWeeklyDigestDeliversToTeachers(t *testing.T) {
	svc, _, _, notifier := newInsightsFixture()

	err := svc.RunWeeklyDigest(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.delivered, 1)

	n := notifier.delivered[0]
	assert.Equal(t, "t1", n.UserID)
	assert.Equal(t, models.NotificationTeacherInsights, n.Type)
	assert.Contains(t, n.Body, "Lessons completed: 6")
	assert.Contains(t, n.Body, "Bob (score 22)")
}

func TestRunOverdueSweepNotifiesStudents(t *testing.T) {
	svc, assignments, _, notifier := newInsightsFixture()
	assignments.flipped = []models.Assignment{
		{ID: "a1", StudentID: "s1", Title: "Practice scales"},
		{ID: "a2", StudentID: "s2", Title: "Fingerpicking drill"},
	}

	err := svc.RunOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, assignments.limit)
	require.Len(t, notifier.delivered, 2)
	assert.Equal(t, "s1", notifier.delivered[0].UserID)
	assert.Equal(t, models.NotificationAssignmentOverdue, notifier.delivered[0].Type)
	assert.Contains(t, notifier.delivered[0].Body, "Practice scales")
}

func TestRenderDigestBodyQuietWeek(t *testing.T) {
	body := renderDigestBody(&models.WeeklyInsights{})
	assert.Contains(t, body, "quiet week")
}
