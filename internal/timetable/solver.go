package timetable

import (
	"fmt"
	"sort"

	"github.com/schoolcore/timetable-api/internal/models"
)

// SolverOptions bound the search and order the soft objectives.
type SolverOptions struct {
	// MaxAttemptsPerSubject caps candidate cells examined per subject, which
	// guarantees termination: there is no unbounded backtracking.
	MaxAttemptsPerSubject int
	RepairIterations      int
	Weights               ScoreWeights
}

// DefaultSolverOptions mirror the configured defaults.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{MaxAttemptsPerSubject: 64, RepairIterations: 12, Weights: DefaultScoreWeights()}
}

// InfeasibleError reports that a subject's weekly quota cannot be placed
// without breaking a hard constraint. It is a business outcome, not a bug:
// the caller surfaces the diagnosis and never retries automatically.
type InfeasibleError struct {
	ClassID        string
	SubjectID      string
	MissingPeriods int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("class %s: subject %s cannot be scheduled, %d period(s) unplaced", e.ClassID, e.SubjectID, e.MissingPeriods)
}

// GenerateWeek builds one conflict-free weekly template for the class.
//
// The search is greedy with bounded candidate sampling: subjects are ordered
// by weekly quota descending, each quota is placed as blocks of up to two
// consecutive periods spread across the least-loaded days, and among all
// hard-constraint-clean candidates the one with the best soft score wins.
//
// The shared availability is never mutated on failure; the solver works on a
// clone and the caller commits accepted assignments before generating the
// next class.
func GenerateWeek(classID string, reqs []models.SubjectRequirement, shared *TeacherAvailability, grid Grid, opts SolverOptions) ([]models.WeeklyAssignment, error) {
	if opts.MaxAttemptsPerSubject <= 0 {
		opts.MaxAttemptsPerSubject = 64
	}
	if opts.RepairIterations <= 0 {
		opts.RepairIterations = 12
	}
	if opts.Weights == (ScoreWeights{}) {
		opts.Weights = DefaultScoreWeights()
	}

	sorted := make([]models.SubjectRequirement, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WeeklyPeriods == sorted[j].WeeklyPeriods {
			return sorted[i].SubjectID < sorted[j].SubjectID
		}
		return sorted[i].WeeklyPeriods > sorted[j].WeeklyPeriods
	})

	total := 0
	for _, req := range sorted {
		total += req.WeeklyPeriods
	}
	if len(sorted) > 0 && total > grid.Capacity() {
		return nil, &InfeasibleError{
			ClassID:        classID,
			SubjectID:      sorted[0].SubjectID,
			MissingPeriods: total - grid.Capacity(),
		}
	}

	academicYear := ""
	if len(sorted) > 0 {
		academicYear = sorted[0].AcademicYear
	}

	scratch := shared.Clone()
	state := NewWeekState(classID, grid, scratch)

	for _, req := range sorted {
		remaining := req.WeeklyPeriods
		attempts := opts.MaxAttemptsPerSubject
		for remaining > 0 {
			blockLen := 1
			if remaining >= 2 {
				blockLen = 2
			}
			placed := placeBlock(state, req, blockLen, &attempts, opts.Weights)
			if placed == 0 && blockLen == 2 {
				placed = placeBlock(state, req, 1, &attempts, opts.Weights)
			}
			if placed == 0 {
				return nil, &InfeasibleError{ClassID: classID, SubjectID: req.SubjectID, MissingPeriods: remaining}
			}
			remaining -= placed
		}
	}

	repairGaps(state, opts.RepairIterations)

	return state.Export(academicYear), nil
}

// ScoreTemplate rates a finished weekly template with the same soft
// objectives the solver ranked candidates by. The requirements supply the
// subject kinds the assignment rows do not carry.
func ScoreTemplate(classID string, assignments []models.WeeklyAssignment, reqs []models.SubjectRequirement, grid Grid, w ScoreWeights) float64 {
	kinds := make(map[string]models.SubjectKind, len(reqs))
	for _, req := range reqs {
		kinds[req.SubjectID] = req.SubjectKind
	}
	if w == (ScoreWeights{}) {
		w = DefaultScoreWeights()
	}

	state := NewWeekState(classID, grid, NewTeacherAvailability())
	for _, cell := range assignments {
		state.Place(Placement{
			ClassID:   cell.ClassID,
			DayOfWeek: cell.DayOfWeek,
			Period:    cell.Period,
			SubjectID: cell.SubjectID,
			TeacherID: cell.TeacherID,
			Kind:      kinds[cell.SubjectID],
		})
	}
	return Score(state, w)
}

type blockCandidate struct {
	day       int
	start     int
	teacherID string
	score     float64
}

// placeBlock samples candidate cells for a block of blockLen consecutive
// periods and commits the best-scoring clean one. Returns the number of
// periods placed (0 on failure). Every candidate examined costs one attempt.
func placeBlock(state *WeekState, req models.SubjectRequirement, blockLen int, attempts *int, weights ScoreWeights) int {
	var best *blockCandidate

	for _, day := range state.daysByLoad() {
		for start := 1; start+blockLen-1 <= state.grid.PeriodsPerDay; start++ {
			if *attempts <= 0 {
				break
			}
			*attempts--

			teacherID, ok := pickTeacher(state, req, day, start, blockLen)
			if !ok {
				continue
			}
			if !tryBlock(state, req, teacherID, day, start, blockLen) {
				continue
			}
			score := Score(state, weights)
			revertBlock(state, day, start, blockLen)

			if best == nil || score < best.score {
				best = &blockCandidate{day: day, start: start, teacherID: teacherID, score: score}
			}
		}
		if *attempts <= 0 {
			break
		}
	}

	if best == nil {
		return 0
	}
	if !tryBlock(state, req, best.teacherID, best.day, best.start, blockLen) {
		return 0
	}
	return blockLen
}

// pickTeacher selects from the requirement's eligible set the teacher free
// for the whole block, preferring the one with the most adjacent reserved
// periods that day (clustering) and breaking ties by least weekly load.
func pickTeacher(state *WeekState, req models.SubjectRequirement, day, start, blockLen int) (string, bool) {
	eligible := req.TeacherIDs()
	sort.Strings(eligible)

	bestID := ""
	bestAdjacency := -1
	bestLoad := 0
	for _, teacherID := range eligible {
		free := true
		for offset := 0; offset < blockLen; offset++ {
			if state.avail.Busy(teacherID, day, start+offset) {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		adjacency := state.avail.AdjacencyScore(teacherID, day, start) +
			state.avail.AdjacencyScore(teacherID, day, start+blockLen-1)
		load := state.avail.WeeklyLoad(teacherID)
		if adjacency > bestAdjacency || (adjacency == bestAdjacency && load < bestLoad) {
			bestID = teacherID
			bestAdjacency = adjacency
			bestLoad = load
		}
	}
	if bestID == "" {
		return "", false
	}
	return bestID, true
}

// tryBlock places the block cell by cell, reverting everything if any cell
// violates a hard constraint.
func tryBlock(state *WeekState, req models.SubjectRequirement, teacherID string, day, start, blockLen int) bool {
	for offset := 0; offset < blockLen; offset++ {
		p := Placement{
			ClassID:   state.classID,
			DayOfWeek: day,
			Period:    start + offset,
			SubjectID: req.SubjectID,
			TeacherID: teacherID,
			Kind:      req.SubjectKind,
		}
		if len(Violations(p, state)) > 0 {
			for undo := 0; undo < offset; undo++ {
				state.Remove(day, start+undo)
			}
			return false
		}
		state.Place(p)
	}
	return true
}

func revertBlock(state *WeekState, day, start, blockLen int) {
	for offset := 0; offset < blockLen; offset++ {
		state.Remove(day, start+offset)
	}
}

// repairGaps compacts idle holes inside the class's days by pulling later
// placements forward, bounded by maxIterations. A move is kept only when the
// relocated placement stays hard-constraint-clean.
func repairGaps(state *WeekState, maxIterations int) int {
	iterations := 0
	for iterations < maxIterations {
		moved := false
		for _, day := range state.grid.Days {
			periods := state.periodsOn(day)
			if len(periods) < 2 {
				continue
			}
			for i := 0; i < len(periods)-1; i++ {
				current, next := periods[i], periods[i+1]
				if next-current <= 1 {
					continue
				}
				target := current + 1
				p, _ := state.PlacementAt(day, next)
				state.Remove(day, next)
				p.Period = target
				if len(Violations(p, state)) == 0 {
					state.Place(p)
					moved = true
					break
				}
				p.Period = next
				state.Place(p)
			}
			if moved {
				break
			}
		}
		if !moved {
			break
		}
		iterations++
	}
	return iterations
}
