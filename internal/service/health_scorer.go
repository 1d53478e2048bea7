package service

import (
	"math"
	"time"

	"github.com/strumline/guitar-crm-api/internal/models"
)

// Factor weights for the composite health score. Each sub-score is
// normalised to 0-100 before weighting, so the weighted sum stays in range.
const (
	weightLessonRecency  = 0.30
	weightLessonsPerMo   = 0.25
	weightCompletionRate = 0.20
	weightContactRecency = 0.15
	weightLifetimeTotal  = 0.10
)

// Linear decay cutoffs and saturation points. A lesson 30+ days ago scores
// zero on recency; 4 lessons a month saturates frequency; contact decays to
// zero at 60 days; 20 lifetime lessons saturates tenure.
const (
	lessonRecencyCutoffDays  = 30
	lessonsPerMonthFull      = 4
	contactRecencyCutoffDays = 60
	lifetimeLessonsFull      = 20
)

// Any absence longer than this forces critical status regardless of how the
// other factors score.
const churnOverrideDays = 45

// neutralCompletionRate is assumed when a student has no assignments at all,
// so absence of data does not read as an at-risk signal.
const neutralCompletionRate = 50

var recommendedActions = map[models.HealthStatus]string{
	models.HealthExcellent:      "Student is highly engaged. Keep the current cadence.",
	models.HealthGood:           "Engagement is solid. A quick check-in will keep it that way.",
	models.HealthNeedsAttention: "Schedule a lesson and review outstanding assignments together.",
	models.HealthAtRisk:         "Reach out this week and get the next lesson on the calendar.",
	models.HealthCritical:       "Contact the student immediately to re-engage them.",
}

const churnPreventionAction = "No lesson in over 45 days. Reach out now with a win-back offer before the student churns."

// CalculateHealthScore computes a 0-100 engagement score and status label
// from the supplied behavioural factors. It is a pure function: inputs are
// clamped into range before combination, so malformed or extreme values can
// never push the score out of band.
func CalculateHealthScore(factors models.HealthFactors) models.StudentHealthScore {
	lessonRecency := decayScore(factors.DaysSinceLastLesson, lessonRecencyCutoffDays)
	frequency := saturationScore(factors.LessonsPerMonth, lessonsPerMonthFull)
	completion := clamp(factors.AssignmentCompletionRate, 0, 100)
	contactRecency := decayScore(factors.DaysSinceLastContact, contactRecencyCutoffDays)
	lifetime := saturationScore(factors.TotalLessonsCompleted, lifetimeLessonsFull)

	weighted := lessonRecency*weightLessonRecency +
		frequency*weightLessonsPerMo +
		completion*weightCompletionRate +
		contactRecency*weightContactRecency +
		lifetime*weightLifetimeTotal

	score := int(math.Round(weighted))
	status := statusForScore(score)
	action := recommendedActions[status]

	// Long absence must never be masked by a strong history on the other
	// factors.
	if factors.DaysSinceLastLesson > churnOverrideDays {
		status = models.HealthCritical
		action = churnPreventionAction
	}

	return models.StudentHealthScore{
		Score:             score,
		Status:            status,
		Factors:           factors,
		RecommendedAction: action,
	}
}

// BuildHealthFactors reduces per-student lesson and assignment counters into
// scorer inputs. A nil or empty assignment record yields the neutral default
// completion rate rather than zero.
func BuildHealthFactors(lessons models.StudentLessonStats, assignments *models.StudentAssignmentStats, now time.Time) models.HealthFactors {
	daysSinceLesson := models.NoLessonSentinel
	if lessons.LastLessonAt != nil {
		daysSinceLesson = int(now.Sub(*lessons.LastLessonAt).Hours() / 24)
		if daysSinceLesson < 0 {
			daysSinceLesson = 0
		}
	}

	completion := float64(neutralCompletionRate)
	if assignments != nil && assignments.Total > 0 {
		completion = float64(assignments.Completed) / float64(assignments.Total) * 100
	}

	return models.HealthFactors{
		DaysSinceLastLesson:      daysSinceLesson,
		LessonsPerMonth:          lessons.Last30Days,
		AssignmentCompletionRate: completion,
		// Contact tracking is not wired up yet; lesson recency stands in
		// for it.
		DaysSinceLastContact:  daysSinceLesson,
		TotalLessonsCompleted: lessons.TotalCompleted,
	}
}

func statusForScore(score int) models.HealthStatus {
	switch {
	case score >= 80:
		return models.HealthExcellent
	case score >= 60:
		return models.HealthGood
	case score >= 40:
		return models.HealthNeedsAttention
	case score >= 20:
		return models.HealthAtRisk
	default:
		return models.HealthCritical
	}
}

// decayScore maps days-elapsed onto 0-100, decaying linearly to zero at the
// cutoff. Negative day counts read as no lapse at all.
func decayScore(days, cutoff int) float64 {
	return clamp(100-(float64(days)/float64(cutoff))*100, 0, 100)
}

// saturationScore maps a count onto 0-100, saturating at full.
func saturationScore(count, full int) float64 {
	return clamp(float64(count)/float64(full)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
