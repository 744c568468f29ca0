package timetable

import (
	"sort"

	"github.com/schoolcore/timetable-api/internal/models"
)

// Grid describes the weekly time structure a class schedule is built on.
type Grid struct {
	Days          []int
	PeriodsPerDay int
}

// NewGrid normalizes the day list (dedup, 1..7, sorted ascending).
func NewGrid(days []int, periodsPerDay int) Grid {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		unique[day] = struct{}{}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return Grid{Days: result, PeriodsPerDay: periodsPerDay}
}

// Capacity returns the number of schedulable periods in one week.
func (g Grid) Capacity() int {
	return len(g.Days) * g.PeriodsPerDay
}

// Contains reports whether (day, period) is a valid cell of the grid.
func (g Grid) Contains(day, period int) bool {
	if period < 1 || period > g.PeriodsPerDay {
		return false
	}
	for _, d := range g.Days {
		if d == day {
			return true
		}
	}
	return false
}

type slotKey struct {
	Day    int
	Period int
}

// Placement is a candidate or accepted cell of a weekly template.
type Placement struct {
	ClassID   string
	DayOfWeek int
	Period    int
	SubjectID string
	TeacherID string
	Kind      models.SubjectKind
}

// WeekState is the mutable grid a single class's week is assembled on. Teacher
// reservations live in the shared availability so cross-class double-booking
// is visible during search.
type WeekState struct {
	grid    Grid
	classID string
	cells   map[slotKey]Placement
	dayLoad map[int]int
	avail   *TeacherAvailability
}

// NewWeekState builds an empty state over the grid and availability.
func NewWeekState(classID string, grid Grid, avail *TeacherAvailability) *WeekState {
	return &WeekState{
		grid:    grid,
		classID: classID,
		cells:   make(map[slotKey]Placement),
		dayLoad: make(map[int]int),
		avail:   avail,
	}
}

// PlacementAt returns the placement occupying (day, period), if any.
func (s *WeekState) PlacementAt(day, period int) (Placement, bool) {
	p, ok := s.cells[slotKey{Day: day, Period: period}]
	return p, ok
}

// SubjectPeriods returns the periods the subject occupies on the day, sorted.
func (s *WeekState) SubjectPeriods(subjectID string, day int) []int {
	var periods []int
	for key, p := range s.cells {
		if key.Day == day && p.SubjectID == subjectID {
			periods = append(periods, key.Period)
		}
	}
	sort.Ints(periods)
	return periods
}

// Place commits the placement to the grid and reserves the teacher slot.
// Callers must have checked Violations first.
func (s *WeekState) Place(p Placement) {
	s.cells[slotKey{Day: p.DayOfWeek, Period: p.Period}] = p
	s.avail.Reserve(p.TeacherID, p.DayOfWeek, p.Period)
	s.dayLoad[p.DayOfWeek]++
}

// Remove clears the cell and releases the teacher reservation.
func (s *WeekState) Remove(day, period int) {
	key := slotKey{Day: day, Period: period}
	p, ok := s.cells[key]
	if !ok {
		return
	}
	delete(s.cells, key)
	s.avail.Release(p.TeacherID, day, period)
	s.dayLoad[day]--
}

// daysByLoad returns grid days ordered by current class load ascending, so
// placement spreads across the week before stacking.
func (s *WeekState) daysByLoad() []int {
	days := make([]int, len(s.grid.Days))
	copy(days, s.grid.Days)
	sort.SliceStable(days, func(i, j int) bool {
		return s.dayLoad[days[i]] < s.dayLoad[days[j]]
	})
	return days
}

// periodsOn returns the class's occupied periods on a day, sorted.
func (s *WeekState) periodsOn(day int) []int {
	var periods []int
	for key := range s.cells {
		if key.Day == day {
			periods = append(periods, key.Period)
		}
	}
	sort.Ints(periods)
	return periods
}

// Export returns the accumulated placements as weekly assignment rows ordered
// by day then period.
func (s *WeekState) Export(academicYear string) []models.WeeklyAssignment {
	out := make([]models.WeeklyAssignment, 0, len(s.cells))
	for _, p := range s.cells {
		out = append(out, models.WeeklyAssignment{
			ClassID:      p.ClassID,
			AcademicYear: academicYear,
			DayOfWeek:    p.DayOfWeek,
			Period:       p.Period,
			SubjectID:    p.SubjectID,
			TeacherID:    p.TeacherID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek == out[j].DayOfWeek {
			return out[i].Period < out[j].Period
		}
		return out[i].DayOfWeek < out[j].DayOfWeek
	})
	return out
}
