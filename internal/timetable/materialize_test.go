package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/models"
)

func TestMaterializeStampsDatesAcrossWeeks(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) // a Monday
	year := models.AcademicYear{Name: "2025-2026", StartDate: start, WeekCount: 3}
	template := []models.WeeklyAssignment{
		{ClassID: "12A1", AcademicYear: "2025-2026", DayOfWeek: 1, Period: 1, SubjectID: "math", TeacherID: "t-1"},
		{ClassID: "12A1", AcademicYear: "2025-2026", DayOfWeek: 3, Period: 2, SubjectID: "literature", TeacherID: "t-2"},
	}

	lessons := Materialize(template, year, nil)
	require.Len(t, lessons, 6)

	assert.Equal(t, start, lessons[0].ScheduledDate)
	assert.Equal(t, start.AddDate(0, 0, 2), lessons[1].ScheduledDate)
	// Week 2 repeats one calendar week later.
	assert.Equal(t, start.AddDate(0, 0, 7), lessons[2].ScheduledDate)
	assert.Equal(t, 2, lessons[2].WeekNumber)

	for _, lesson := range lessons {
		assert.Equal(t, models.LessonStatusScheduled, lesson.Status)
		assert.Equal(t, 1, lesson.Version)
	}
}

func TestMaterializeCancelsHolidayLessons(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	year := models.AcademicYear{Name: "2025-2026", StartDate: start, WeekCount: 2}
	template := []models.WeeklyAssignment{
		{ClassID: "12A1", AcademicYear: "2025-2026", DayOfWeek: 1, Period: 1, SubjectID: "math", TeacherID: "t-1"},
	}
	holidays := []models.Holiday{
		{Name: "national day", StartDate: start.AddDate(0, 0, 7), EndDate: start.AddDate(0, 0, 8)},
	}

	lessons := Materialize(template, year, holidays)
	require.Len(t, lessons, 2)
	assert.Equal(t, models.LessonStatusScheduled, lessons[0].Status)
	assert.Equal(t, models.LessonStatusCancelled, lessons[1].Status)
}

func TestLessonDate(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, LessonDate(start, 1, 1))
	assert.Equal(t, start.AddDate(0, 0, 5), LessonDate(start, 1, 6))
	assert.Equal(t, start.AddDate(0, 0, 14), LessonDate(start, 3, 1))
}
