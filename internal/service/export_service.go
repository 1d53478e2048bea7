package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/strumline/guitar-crm-api/internal/models"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/export"
)

type dashboardProvider interface {
	Dashboard(ctx context.Context, claims *models.JWTClaims) ([]models.StudentHealthSummary, error)
}

type progressProvider interface {
	ListProgress(ctx context.Context, claims *models.JWTClaims, studentID string) ([]models.SongProgressDetail, error)
}

// ExportService renders dashboard and progress data as downloadable files.
type ExportService struct {
	health dashboardProvider
	songs  progressProvider
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(health dashboardProvider, songs progressProvider, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		health: health,
		songs:  songs,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var healthCSVHeaders = []string{"Student", "Email", "Health Score", "Status", "Last Lesson", "Lessons/Month", "Overdue Assignments", "Recommended Action"}

// HealthCSV renders the caller's health dashboard as CSV.
func (s *ExportService) HealthCSV(ctx context.Context, claims *models.JWTClaims) ([]byte, string, error) {
	summaries, err := s.health.Dashboard(ctx, claims)
	if err != nil {
		return nil, "", err
	}

	rows := make([]map[string]string, 0, len(summaries))
	for _, summary := range summaries {
		lastLesson := "Never"
		if summary.LastLessonAt != nil {
			lastLesson = summary.LastLessonAt.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Student":             summary.Name,
			"Email":               summary.Email,
			"Health Score":        strconv.Itoa(summary.Score),
			"Status":              string(summary.Status),
			"Last Lesson":         lastLesson,
			"Lessons/Month":       strconv.Itoa(summary.LessonsThisMonth),
			"Overdue Assignments": strconv.Itoa(summary.OverdueAssignments),
			"Recommended Action":  summary.RecommendedAction,
		})
	}

	payload, err := s.csv.Render(export.Dataset{Headers: healthCSVHeaders, Rows: rows})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render health csv")
	}
	filename := fmt.Sprintf("student-health-%s.csv", time.Now().UTC().Format("20060102"))
	return payload, filename, nil
}

var progressPDFHeaders = []string{"Song", "Author", "Status", "Started", "Mastered"}

// ProgressPDF renders a student's song progress as a PDF report.
func (s *ExportService) ProgressPDF(ctx context.Context, claims *models.JWTClaims, studentID string) ([]byte, string, error) {
	progress, err := s.songs.ListProgress(ctx, claims, studentID)
	if err != nil {
		return nil, "", err
	}

	rows := make([]map[string]string, 0, len(progress))
	for _, entry := range progress {
		rows = append(rows, map[string]string{
			"Song":     entry.SongTitle,
			"Author":   entry.SongAuthor,
			"Status":   string(entry.Status),
			"Started":  formatDate(entry.StartedAt),
			"Mastered": formatDate(entry.MasteredAt),
		})
	}

	payload, err := s.pdf.Render(export.Dataset{Headers: progressPDFHeaders, Rows: rows}, "Song Progress Report")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render progress pdf")
	}
	filename := fmt.Sprintf("song-progress-%s.pdf", time.Now().UTC().Format("20060102"))
	return payload, filename, nil
}

func formatDate(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Format("2006-01-02")
}
