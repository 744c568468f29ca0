package timetable

// ViolationKind identifies a hard scheduling rule broken by a candidate placement.
type ViolationKind string

const (
	SlotOutOfGrid              ViolationKind = "SLOT_OUT_OF_GRID"
	ClassDoubleBooked          ViolationKind = "CLASS_DOUBLE_BOOKED"
	TeacherDoubleBooked        ViolationKind = "TEACHER_DOUBLE_BOOKED"
	SubjectDailyQuotaExceeded  ViolationKind = "SUBJECT_DAILY_QUOTA_EXCEEDED"
	NonConsecutiveSubjectBlock ViolationKind = "NON_CONSECUTIVE_SUBJECT_BLOCK"
)

// Violations evaluates the hard constraints for placing p onto the state.
// Pure with respect to state: nothing is mutated. An empty result means the
// placement is legal; soft objectives are scored separately by Score.
func Violations(p Placement, state *WeekState) []ViolationKind {
	var kinds []ViolationKind

	if !state.grid.Contains(p.DayOfWeek, p.Period) {
		kinds = append(kinds, SlotOutOfGrid)
		return kinds
	}

	if _, occupied := state.PlacementAt(p.DayOfWeek, p.Period); occupied {
		kinds = append(kinds, ClassDoubleBooked)
	}

	if state.avail.Busy(p.TeacherID, p.DayOfWeek, p.Period) {
		kinds = append(kinds, TeacherDoubleBooked)
	}

	existing := state.SubjectPeriods(p.SubjectID, p.DayOfWeek)
	if len(existing) >= 2 {
		kinds = append(kinds, SubjectDailyQuotaExceeded)
	} else if len(existing) == 1 {
		// A second same-day period must sit directly next to the first.
		if existing[0] != p.Period-1 && existing[0] != p.Period+1 {
			kinds = append(kinds, NonConsecutiveSubjectBlock)
		}
	}

	return kinds
}

// ScoreWeights order the soft objectives. Clustering is primary and
// theory/practice balance secondary by default; both are tunable.
type ScoreWeights struct {
	Clustering float64
	Balance    float64
}

// DefaultScoreWeights mirror the configured defaults.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Clustering: 2, Balance: 1}
}

// Score computes the soft-constraint penalty of the current state. Lower is
// better. It never renders a state invalid; the solver uses it only to rank
// hard-constraint-clean candidates.
func Score(state *WeekState, w ScoreWeights) float64 {
	return w.Clustering*fragmentationPenalty(state) + w.Balance*balancePenalty(state)
}

// fragmentationPenalty sums the idle gaps inside every teacher's day.
func fragmentationPenalty(state *WeekState) float64 {
	var penalty float64
	for _, teacherID := range state.avail.Teachers() {
		for _, day := range state.grid.Days {
			periods := state.avail.PeriodsOn(teacherID, day)
			if len(periods) < 2 {
				continue
			}
			for i := 0; i < len(periods)-1; i++ {
				if diff := periods[i+1] - periods[i]; diff > 1 {
					penalty += float64(diff - 1)
				}
			}
		}
	}
	return penalty
}

// balancePenalty counts adjacent same-kind pairs of different subjects in the
// class's day, nudging the solver to alternate theory and practice.
func balancePenalty(state *WeekState) float64 {
	var penalty float64
	for _, day := range state.grid.Days {
		periods := state.periodsOn(day)
		for i := 0; i < len(periods)-1; i++ {
			if periods[i+1]-periods[i] != 1 {
				continue
			}
			a, _ := state.PlacementAt(day, periods[i])
			b, _ := state.PlacementAt(day, periods[i+1])
			if a.SubjectID != b.SubjectID && a.Kind != "" && a.Kind == b.Kind {
				penalty++
			}
		}
	}
	return penalty
}
