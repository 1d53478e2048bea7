package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	"github.com/strumline/guitar-crm-api/internal/repository"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
)

type healthLessonRepository interface {
	StatsForTeacher(ctx context.Context, vis repository.Visibility, since time.Time) ([]models.StudentLessonStats, error)
}

type healthAssignmentRepository interface {
	StatsByStudent(ctx context.Context, vis repository.Visibility) (map[string]models.StudentAssignmentStats, error)
}

type healthCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type healthMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveDBQuery(label string, duration time.Duration)
}

// HealthService produces the student health dashboard: one scored row per
// visible student, ranked worst first so the list reads as a triage queue.
type HealthService struct {
	lessons     healthLessonRepository
	assignments healthAssignmentRepository
	cache       healthCache
	cacheTTL    time.Duration
	metrics     healthMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewHealthService constructs the health service. cache may be nil, in which
// case every request recomputes.
func NewHealthService(lessons healthLessonRepository, assignments healthAssignmentRepository, cache healthCache, cacheTTL time.Duration, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 3 * time.Minute
	}
	return &HealthService{
		lessons:     lessons,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Instrument attaches request-path metrics. Optional.
func (s *HealthService) Instrument(metrics healthMetrics) {
	s.metrics = metrics
}

// Dashboard returns the ranked health summary for every student the caller
// may see. Snapshots are cached per visibility scope.
func (s *HealthService) Dashboard(ctx context.Context, claims *models.JWTClaims) ([]models.StudentHealthSummary, error) {
	vis := repository.VisibilityFor(claims.Roles(), claims.UserID)
	key := cacheKeyFor(vis)

	if s.cache != nil {
		start := time.Now()
		var cached []models.StudentHealthSummary
		err := s.cache.Get(ctx, key, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("health cache read failed", zap.Error(err))
		}
	}

	summaries, err := s.compute(ctx, vis)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summaries, s.cacheTTL); err != nil {
			s.logger.Warn("health cache write failed", zap.Error(err))
		}
	}
	return summaries, nil
}

// AtRiskFor computes the at-risk slice for one teacher, used by the weekly
// digest. threshold is exclusive: a score under it flags the student.
func (s *HealthService) AtRiskFor(ctx context.Context, teacherID string, threshold int) ([]models.AtRiskStudent, error) {
	vis := repository.VisibilityFor(models.RoleFlags{IsTeacher: true}, teacherID)
	summaries, err := s.compute(ctx, vis)
	if err != nil {
		return nil, err
	}

	var atRisk []models.AtRiskStudent
	for _, summary := range summaries {
		if summary.Score >= threshold {
			continue
		}
		atRisk = append(atRisk, models.AtRiskStudent{
			InsightStudent: models.InsightStudent{
				ID:    summary.StudentID,
				Name:  summary.Name,
				Email: summary.Email,
			},
			HealthScore:        summary.Score,
			OverdueAssignments: summary.OverdueAssignments,
		})
	}
	return atRisk, nil
}

func (s *HealthService) compute(ctx context.Context, vis repository.Visibility) ([]models.StudentHealthSummary, error) {
	now := s.now()
	since := now.AddDate(0, 0, -30)

	start := time.Now()
	lessonStats, err := s.lessons.StatsForTeacher(ctx, vis, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("health_lesson_stats", time.Since(start))
	}

	start = time.Now()
	assignmentStats, err := s.assignments.StatsByStudent(ctx, vis)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("health_assignment_stats", time.Since(start))
	}

	summaries := make([]models.StudentHealthSummary, 0, len(lessonStats))
	for _, stats := range lessonStats {
		var assignments *models.StudentAssignmentStats
		if row, ok := assignmentStats[stats.StudentID]; ok {
			assignments = &row
		}

		factors := BuildHealthFactors(stats, assignments, now)
		score := CalculateHealthScore(factors)

		summary := models.StudentHealthSummary{
			StudentID:         stats.StudentID,
			Name:              stats.StudentName,
			Email:             stats.StudentEmail,
			Score:             score.Score,
			Status:            score.Status,
			Factors:           score.Factors,
			RecommendedAction: score.RecommendedAction,
			LastLessonAt:      stats.LastLessonAt,
			LessonsThisMonth:  stats.Last30Days,
		}
		if assignments != nil {
			summary.OverdueAssignments = assignments.Overdue
		}
		summaries = append(summaries, summary)
	}

	// Worst first; ties break alphabetically so the ordering is stable.
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Score != summaries[j].Score {
			return summaries[i].Score < summaries[j].Score
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func cacheKeyFor(vis repository.Visibility) string {
	if vis.All {
		return "health:all"
	}
	return fmt.Sprintf("health:%s:%s", vis.Column, vis.Value)
}
