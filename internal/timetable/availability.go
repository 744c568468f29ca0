package timetable

import "sort"

// TeacherAvailability tracks which (day, period) cells each teacher already
// occupies, across every class generated so far. It is deliberately not
// goroutine-safe: multi-class generation is serialized, with each class's
// accepted assignments committed before the next class starts.
type TeacherAvailability struct {
	teachers map[string]*teacherGrid
}

type teacherGrid struct {
	blocked  map[slotKey]bool
	reserved map[slotKey]bool
}

// NewTeacherAvailability returns an empty availability registry.
func NewTeacherAvailability() *TeacherAvailability {
	return &TeacherAvailability{teachers: make(map[string]*teacherGrid)}
}

func (a *TeacherAvailability) grid(teacherID string) *teacherGrid {
	g, ok := a.teachers[teacherID]
	if !ok {
		g = &teacherGrid{blocked: make(map[slotKey]bool), reserved: make(map[slotKey]bool)}
		a.teachers[teacherID] = g
	}
	return g
}

// Block marks a cell permanently unavailable for the teacher (external duties,
// pre-existing commitments loaded before generation).
func (a *TeacherAvailability) Block(teacherID string, day, period int) {
	a.grid(teacherID).blocked[slotKey{Day: day, Period: period}] = true
}

// Busy reports whether the teacher cannot take the cell.
func (a *TeacherAvailability) Busy(teacherID string, day, period int) bool {
	g, ok := a.teachers[teacherID]
	if !ok {
		return false
	}
	key := slotKey{Day: day, Period: period}
	return g.blocked[key] || g.reserved[key]
}

// Reserve marks the cell taken by a generated assignment.
func (a *TeacherAvailability) Reserve(teacherID string, day, period int) {
	a.grid(teacherID).reserved[slotKey{Day: day, Period: period}] = true
}

// Release frees a previously reserved cell.
func (a *TeacherAvailability) Release(teacherID string, day, period int) {
	if g, ok := a.teachers[teacherID]; ok {
		delete(g.reserved, slotKey{Day: day, Period: period})
	}
}

// PeriodsOn returns the teacher's reserved periods on a day, sorted.
func (a *TeacherAvailability) PeriodsOn(teacherID string, day int) []int {
	g, ok := a.teachers[teacherID]
	if !ok {
		return nil
	}
	var periods []int
	for key := range g.reserved {
		if key.Day == day {
			periods = append(periods, key.Period)
		}
	}
	sort.Ints(periods)
	return periods
}

// WeeklyLoad returns the teacher's total reserved periods.
func (a *TeacherAvailability) WeeklyLoad(teacherID string) int {
	g, ok := a.teachers[teacherID]
	if !ok {
		return 0
	}
	return len(g.reserved)
}

// AdjacencyScore counts reserved cells directly adjacent to (day, period) for
// the teacher. Higher means placing here clusters the teacher's day.
func (a *TeacherAvailability) AdjacencyScore(teacherID string, day, period int) int {
	score := 0
	if a.Busy(teacherID, day, period-1) {
		score++
	}
	if a.Busy(teacherID, day, period+1) {
		score++
	}
	return score
}

// Clone deep-copies the registry. The solver searches on a clone so a failed
// generation never leaks partial reservations into the shared state.
func (a *TeacherAvailability) Clone() *TeacherAvailability {
	clone := NewTeacherAvailability()
	for teacherID, g := range a.teachers {
		copied := clone.grid(teacherID)
		for key := range g.blocked {
			copied.blocked[key] = true
		}
		for key := range g.reserved {
			copied.reserved[key] = true
		}
	}
	return clone
}

// Teachers returns every registered teacher id.
func (a *TeacherAvailability) Teachers() []string {
	ids := make([]string, 0, len(a.teachers))
	for id := range a.teachers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
