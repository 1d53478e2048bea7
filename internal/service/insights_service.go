package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type insightsProfileRepository interface {
	ListActiveTeachers(ctx context.Context) ([]models.Profile, error)
}

type insightsLessonRepository interface {
	CountByStatusInRange(ctx context.Context, teacherID string, status models.LessonStatus, from, to time.Time) (int, error)
	NewStudentsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.InsightStudent, error)
}

type insightsAssignmentRepository interface {
	OverdueForTeacher(ctx context.Context, teacherID string) ([]models.OverdueAssignmentLine, error)
	CompletedInRange(ctx context.Context, teacherID string, from, to time.Time) (int, error)
	MarkOverdue(ctx context.Context, now time.Time, limit int) ([]models.Assignment, error)
}

type insightsSongRepository interface {
	MasteredInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.MasteredSong, error)
}

type atRiskProvider interface {
	AtRiskFor(ctx context.Context, teacherID string, threshold int) ([]models.AtRiskStudent, error)
}

type notifier interface {
	Deliver(ctx context.Context, notification models.Notification) error
}

// InsightsConfig tunes the digest and sweep jobs.
type InsightsConfig struct {
	AtRiskThreshold  int
	OverdueBatchSize int
}

// InsightsService assembles the weekly teacher digest and runs the daily
// overdue assignment sweep.
type InsightsService struct {
	profiles    insightsProfileRepository
	lessons     insightsLessonRepository
	assignments insightsAssignmentRepository
	songs       insightsSongRepository
	health      atRiskProvider
	notifier    notifier
	config      InsightsConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewInsightsService constructs the insights service.
func NewInsightsService(profiles insightsProfileRepository, lessons insightsLessonRepository, assignments insightsAssignmentRepository, songs insightsSongRepository, health atRiskProvider, notifier notifier, config InsightsConfig, logger *zap.Logger) *InsightsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AtRiskThreshold <= 0 {
		config.AtRiskThreshold = 40
	}
	if config.OverdueBatchSize <= 0 {
		config.OverdueBatchSize = 200
	}
	return &InsightsService{
		profiles:    profiles,
		lessons:     lessons,
		assignments: assignments,
		songs:       songs,
		health:      health,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WeeklyFor assembles one teacher's digest covering the trailing seven days.
func (s *InsightsService) WeeklyFor(ctx context.Context, teacher models.Profile) (*models.WeeklyInsights, error) {
	end := s.now()
	start := end.AddDate(0, 0, -7)

	completed, err := s.lessons.CountByStatusInRange(ctx, teacher.ID, models.LessonStatusCompleted, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed lessons")
	}
	cancelled, err := s.lessons.CountByStatusInRange(ctx, teacher.ID, models.LessonStatusCancelled, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cancelled lessons")
	}
	newStudents, err := s.lessons.NewStudentsInRange(ctx, teacher.ID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list new students")
	}
	mastered, err := s.songs.MasteredInRange(ctx, teacher.ID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mastered songs")
	}
	atRisk, err := s.health.AtRiskFor(ctx, teacher.ID, s.config.AtRiskThreshold)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute at-risk students")
	}
	overdue, err := s.assignments.OverdueForTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue assignments")
	}
	assignmentsDone, err := s.assignments.CompletedInRange(ctx, teacher.ID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed assignments")
	}

	return &models.WeeklyInsights{
		TeacherID:          teacher.ID,
		TeacherName:        teacher.FullName,
		TeacherEmail:       teacher.Email,
		RangeStart:         start,
		RangeEnd:           end,
		LessonsCompleted:   completed,
		LessonsCancelled:   cancelled,
		AssignmentsDone:    assignmentsDone,
		NewStudents:        newStudents,
		SongsMastered:      mastered,
		AtRiskStudents:     atRisk,
		OverdueAssignments: overdue,
	}, nil
}

// RunWeeklyDigest assembles and delivers the digest to every active teacher.
// A failure for one teacher is logged and does not stop the rest.
func (s *InsightsService) RunWeeklyDigest(ctx context.Context) error {
	teachers, err := s.profiles.ListActiveTeachers(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}

	var failures int
	for _, teacher := range teachers {
		insights, err := s.WeeklyFor(ctx, teacher)
		if err != nil {
			failures++
			s.logger.Error("weekly digest failed for teacher",
				zap.String("teacher_id", teacher.ID), zap.Error(err))
			continue
		}
		notification := models.Notification{
			UserID: teacher.ID,
			Type:   models.NotificationTeacherInsights,
			Title:  "Your weekly studio digest",
			Body:   renderDigestBody(insights),
		}
		if err := s.notifier.Deliver(ctx, notification); err != nil {
			failures++
			s.logger.Error("weekly digest delivery failed",
				zap.String("teacher_id", teacher.ID), zap.Error(err))
		}
	}

	s.logger.Info("weekly digest run finished",
		zap.Int("teachers", len(teachers)), zap.Int("failures", failures))
	return nil
}

// RunOverdueSweep flips pending assignments past their due date to overdue
// and notifies the affected students and their teachers.
func (s *InsightsService) RunOverdueSweep(ctx context.Context) error {
	now := s.now()
	flipped, err := s.assignments.MarkOverdue(ctx, now, s.config.OverdueBatchSize)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue assignments")
	}

	for _, assignment := range flipped {
		student := models.Notification{
			UserID: assignment.StudentID,
			Type:   models.NotificationAssignmentOverdue,
			Title:  "Assignment overdue",
			Body:   fmt.Sprintf("%q is past its due date. Log some practice and mark it complete.", assignment.Title),
		}
		if err := s.notifier.Deliver(ctx, student); err != nil {
			s.logger.Warn("overdue notification failed",
				zap.String("assignment_id", assignment.ID), zap.Error(err))
		}
	}

	s.logger.Info("overdue sweep finished", zap.Int("flipped", len(flipped)))
	return nil
}

func renderDigestBody(insights *models.WeeklyInsights) string {
	quiet := insights.LessonsCompleted == 0 && insights.LessonsCancelled == 0 &&
		insights.AssignmentsDone == 0 &&
		len(insights.NewStudents) == 0 && len(insights.SongsMastered) == 0 &&
		len(insights.AtRiskStudents) == 0 && len(insights.OverdueAssignments) == 0
	if quiet {
		return "A quiet week. No lessons, milestones or alerts to report."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lessons completed: %d, cancelled: %d.\n", insights.LessonsCompleted, insights.LessonsCancelled)
	if insights.AssignmentsDone > 0 {
		fmt.Fprintf(&b, "Assignments completed: %d.\n", insights.AssignmentsDone)
	}
	if len(insights.NewStudents) > 0 {
		fmt.Fprintf(&b, "New students: %d.\n", len(insights.NewStudents))
	}
	if len(insights.SongsMastered) > 0 {
		fmt.Fprintf(&b, "Songs mastered this week: %d.\n", len(insights.SongsMastered))
	}
	if len(insights.AtRiskStudents) > 0 {
		names := make([]string, 0, len(insights.AtRiskStudents))
		for _, student := range insights.AtRiskStudents {
			names = append(names, fmt.Sprintf("%s (score %d)", student.Name, student.HealthScore))
		}
		fmt.Fprintf(&b, "Students needing attention: %s.\n", strings.Join(names, ", "))
	}
	if len(insights.OverdueAssignments) > 0 {
		fmt.Fprintf(&b, "Overdue assignments: %d.\n", len(insights.OverdueAssignments))
	}
	return b.String()
}
