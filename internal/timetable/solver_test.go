package timetable

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/models"
)

func requirement(subjectID string, weekly int, kind models.SubjectKind, teachers ...string) models.SubjectRequirement {
	raw, _ := json.Marshal(teachers)
	return models.SubjectRequirement{
		ClassID:          "12A1",
		AcademicYear:     "2025-2026",
		SubjectID:        subjectID,
		WeeklyPeriods:    weekly,
		EligibleTeachers: types.JSONText(raw),
		SubjectKind:      kind,
	}
}

func TestGenerateWeekPlacesAllPeriods(t *testing.T) {
	grid := NewGrid([]int{1, 2, 3, 4, 5, 6}, 5)
	reqs := []models.SubjectRequirement{
		requirement("math", 4, models.SubjectKindTheory, "t-math"),
		requirement("literature", 3, models.SubjectKindTheory, "t-lit"),
	}

	assignments, err := GenerateWeek("12A1", reqs, NewTeacherAvailability(), grid, DefaultSolverOptions())
	require.NoError(t, err)
	assert.Len(t, assignments, 7)

	byDay := map[int]map[string][]int{}
	for _, a := range assignments {
		if byDay[a.DayOfWeek] == nil {
			byDay[a.DayOfWeek] = map[string][]int{}
		}
		byDay[a.DayOfWeek][a.SubjectID] = append(byDay[a.DayOfWeek][a.SubjectID], a.Period)
	}
	for day, subjects := range byDay {
		for subject, periods := range subjects {
			require.LessOrEqual(t, len(periods), 2, "subject %s has %d periods on day %d", subject, len(periods), day)
			if len(periods) == 2 {
				diff := periods[1] - periods[0]
				if diff < 0 {
					diff = -diff
				}
				assert.Equal(t, 1, diff, "subject %s periods must be consecutive on day %d", subject, day)
			}
		}
	}
}

func TestScoreTemplateMatchesRebuiltState(t *testing.T) {
	grid := NewGrid([]int{1, 2, 3, 4, 5, 6}, 5)
	reqs := []models.SubjectRequirement{
		requirement("math", 4, models.SubjectKindTheory, "t-math"),
		requirement("literature", 3, models.SubjectKindTheory, "t-lit"),
	}

	assignments, err := GenerateWeek("12A1", reqs, NewTeacherAvailability(), grid, DefaultSolverOptions())
	require.NoError(t, err)

	score := ScoreTemplate("12A1", assignments, reqs, grid, ScoreWeights{})
	assert.GreaterOrEqual(t, score, 0.0)

	// Zero weights fall back to the defaults the solver optimizes for.
	explicit := ScoreTemplate("12A1", assignments, reqs, grid, DefaultScoreWeights())
	assert.Equal(t, explicit, score)
}

func TestGenerateWeekNoDoubleBooking(t *testing.T) {
	grid := NewGrid([]int{1, 2, 3, 4, 5}, 6)
	shared := NewTeacherAvailability()
	reqsA := []models.SubjectRequirement{
		requirement("math", 4, models.SubjectKindTheory, "t-1"),
		requirement("physics", 4, models.SubjectKindTheory, "t-1", "t-2"),
	}

	first, err := GenerateWeek("class-a", reqsA, shared, grid, DefaultSolverOptions())
	require.NoError(t, err)
	for _, a := range first {
		shared.Reserve(a.TeacherID, a.DayOfWeek, a.Period)
	}

	second, err := GenerateWeek("class-b", reqsA, shared, grid, DefaultSolverOptions())
	require.NoError(t, err)

	type cell struct {
		Teacher string
		Day     int
		Period  int
	}
	seen := map[cell]bool{}
	for _, a := range append(first, second...) {
		key := cell{Teacher: a.TeacherID, Day: a.DayOfWeek, Period: a.Period}
		require.False(t, seen[key], "teacher %s double-booked at day %d period %d", a.TeacherID, a.DayOfWeek, a.Period)
		seen[key] = true
	}

	classSeen := map[[2]int]bool{}
	for _, a := range second {
		key := [2]int{a.DayOfWeek, a.Period}
		require.False(t, classSeen[key], "class double-booked at day %d period %d", a.DayOfWeek, a.Period)
		classSeen[key] = true
	}
}

func TestGenerateWeekInfeasibleOverCapacity(t *testing.T) {
	grid := NewGrid([]int{1, 2}, 2)
	reqs := []models.SubjectRequirement{
		requirement("math", 5, models.SubjectKindTheory, "t-1"),
	}

	_, err := GenerateWeek("12A1", reqs, NewTeacherAvailability(), grid, DefaultSolverOptions())
	require.Error(t, err)

	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, "math", infeasible.SubjectID)
	assert.Equal(t, 1, infeasible.MissingPeriods)
}

func TestGenerateWeekInfeasibleTeacherFullyBlocked(t *testing.T) {
	grid := NewGrid([]int{1, 2}, 3)
	shared := NewTeacherAvailability()
	for day := 1; day <= 2; day++ {
		for period := 1; period <= 3; period++ {
			shared.Block("t-busy", day, period)
		}
	}
	reqs := []models.SubjectRequirement{
		requirement("chemistry", 2, models.SubjectKindPractice, "t-busy"),
	}

	_, err := GenerateWeek("12A1", reqs, shared, grid, DefaultSolverOptions())
	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, "chemistry", infeasible.SubjectID)
	assert.Equal(t, 2, infeasible.MissingPeriods)
}

func TestGenerateWeekDoesNotMutateSharedAvailabilityOnFailure(t *testing.T) {
	grid := NewGrid([]int{1}, 2)
	shared := NewTeacherAvailability()
	reqs := []models.SubjectRequirement{
		requirement("math", 2, models.SubjectKindTheory, "t-1"),
		requirement("literature", 2, models.SubjectKindTheory, "t-2"),
	}

	_, err := GenerateWeek("12A1", reqs, shared, grid, DefaultSolverOptions())
	require.Error(t, err)
	assert.Zero(t, shared.WeeklyLoad("t-1"))
	assert.Zero(t, shared.WeeklyLoad("t-2"))
}

func TestGenerateWeekPrefersLeastLoadedTeacherOnTie(t *testing.T) {
	grid := NewGrid([]int{1, 2, 3}, 4)
	shared := NewTeacherAvailability()
	// t-1 already carries load elsewhere in the week.
	shared.Reserve("t-1", 3, 4)
	reqs := []models.SubjectRequirement{
		requirement("biology", 1, models.SubjectKindTheory, "t-1", "t-2"),
	}

	assignments, err := GenerateWeek("12A1", reqs, shared, grid, DefaultSolverOptions())
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "t-2", assignments[0].TeacherID)
}
