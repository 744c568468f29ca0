package timetable

import (
	"time"

	"github.com/schoolcore/timetable-api/internal/models"
)

// Materialize expands a weekly template into dated lesson rows for every week
// of the academic year. Lessons landing on a holiday are created CANCELLED so
// the slot stays on record but is excluded from active counts.
//
// The function is pure; persistence and the already-initialized check belong
// to the caller.
func Materialize(template []models.WeeklyAssignment, year models.AcademicYear, holidays []models.Holiday) []models.Lesson {
	weekCount := year.WeekCount
	if weekCount <= 0 {
		weekCount = 38
	}

	lessons := make([]models.Lesson, 0, weekCount*len(template))
	for week := 1; week <= weekCount; week++ {
		for _, cell := range template {
			date := LessonDate(year.StartDate, week, cell.DayOfWeek)
			status := models.LessonStatusScheduled
			if onHoliday(date, holidays) {
				status = models.LessonStatusCancelled
			}
			lessons = append(lessons, models.Lesson{
				ClassID:       cell.ClassID,
				SubjectID:     cell.SubjectID,
				TeacherID:     cell.TeacherID,
				AcademicYear:  cell.AcademicYear,
				WeekNumber:    week,
				DayOfWeek:     cell.DayOfWeek,
				Period:        cell.Period,
				ScheduledDate: date,
				Status:        status,
				Version:       1,
			})
		}
	}
	return lessons
}

// LessonDate computes the calendar date of (week, dayOfWeek) relative to the
// academic year start, which is taken to be the Monday of week 1.
func LessonDate(yearStart time.Time, week, dayOfWeek int) time.Time {
	days := (week-1)*7 + (dayOfWeek - 1)
	return yearStart.AddDate(0, 0, days)
}

func onHoliday(date time.Time, holidays []models.Holiday) bool {
	for _, h := range holidays {
		if h.Contains(date) {
			return true
		}
	}
	return false
}
