package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	"github.com/schoolcore/timetable-api/internal/timetable"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
	"github.com/schoolcore/timetable-api/pkg/export"
)

type templateRepository interface {
	ExistsForClass(ctx context.Context, classID, academicYear string) (bool, error)
	ListByClass(ctx context.Context, classID, academicYear string) ([]models.WeeklyAssignment, error)
	ListByAcademicYear(ctx context.Context, academicYear string) ([]models.WeeklyAssignment, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, assignments []models.WeeklyAssignment) error
	DeleteByClassWithTx(ctx context.Context, tx *sqlx.Tx, classID, academicYear string) error
}

type materializedLessonRepository interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, lessons []models.Lesson) error
	DeleteNonCompletedByClassWithTx(ctx context.Context, tx *sqlx.Tx, classID, academicYear string) error
	CompletedSlots(ctx context.Context, classID, academicYear string) ([]models.EmptySlot, error)
	OccupiedSlots(ctx context.Context, classID, academicYear string, weekNumber int) ([]models.EmptySlot, error)
	CountByStatus(ctx context.Context, classID, subjectID, academicYear string) (map[models.LessonStatus]int, error)
}

type requirementReader interface {
	ListByClass(ctx context.Context, classID, academicYear string) ([]models.SubjectRequirement, error)
}

type academicYearReader interface {
	FindByName(ctx context.Context, name string) (*models.AcademicYear, error)
	ListHolidays(ctx context.Context, yearID string) ([]models.Holiday, error)
}

type scheduleClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type scheduleSubjectReader interface {
	ListByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type blockedSlotReader interface {
	ListBlockedSlots(ctx context.Context) ([]models.TeacherBlockedSlot, error)
}

type periodCatalogReader interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
}

type scheduleTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type generationObserver interface {
	ObserveGeneration(outcome string, duration time.Duration)
}

type scheduleNotifier interface {
	ScheduleInitialized(classID, academicYear string, lessonCount int)
	GenerationFailed(classID, academicYear, reason string)
}

// ScheduleConfig governs scheduler behaviour.
type ScheduleConfig struct {
	DaysPerWeek           int
	PeriodsPerDay         int
	MaxAttemptsPerSubject int
	ClusteringWeight      float64
	BalanceWeight         float64
	RepairIterations      int
}

// ScheduleService generates weekly templates and materializes them into lessons.
//
// Generation runs are serialized: teacher availability is assembled from every
// stored template of the year, so two concurrent runs could hand the same
// teacher to two classes.
type ScheduleService struct {
	templates    templateRepository
	lessons      materializedLessonRepository
	requirements requirementReader
	years        academicYearReader
	classes      scheduleClassReader
	subjects     scheduleSubjectReader
	teachers     blockedSlotReader
	periods      periodCatalogReader
	tx           scheduleTxProvider
	metrics      generationObserver
	notifier     scheduleNotifier
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ScheduleConfig

	genMu sync.Mutex
}

// NewScheduleService wires scheduler dependencies.
func NewScheduleService(
	templates templateRepository,
	lessons materializedLessonRepository,
	requirements requirementReader,
	years academicYearReader,
	classes scheduleClassReader,
	subjects scheduleSubjectReader,
	teachers blockedSlotReader,
	periods periodCatalogReader,
	tx scheduleTxProvider,
	metrics generationObserver,
	notifier scheduleNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleConfig,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DaysPerWeek <= 0 {
		cfg.DaysPerWeek = 6
	}
	if cfg.PeriodsPerDay <= 0 {
		cfg.PeriodsPerDay = 10
	}
	return &ScheduleService{
		templates:    templates,
		lessons:      lessons,
		requirements: requirements,
		years:        years,
		classes:      classes,
		subjects:     subjects,
		teachers:     teachers,
		periods:      periods,
		tx:           tx,
		metrics:      metrics,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// Initialize generates a class's weekly template and materializes every week
// of the academic year in one transaction.
func (s *ScheduleService) Initialize(ctx context.Context, classID string, req dto.InitializeScheduleRequest) (*dto.InitializeScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule initialization payload")
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	year, err := s.years.FindByName(ctx, req.AcademicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	exists, err := s.templates.ExistsForClass(ctx, classID, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
	}
	if exists && !req.Force {
		return nil, appErrors.Clone(appErrors.ErrScheduleAlreadyExists, "")
	}

	reqs, err := s.requirements.ListByClass(ctx, classID, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject requirements")
	}
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrSourceDataInconsistent, "class has no subject requirements for this year")
	}
	for _, requirement := range reqs {
		if len(requirement.TeacherIDs()) == 0 {
			return nil, appErrors.Clone(appErrors.ErrSourceDataInconsistent, fmt.Sprintf("subject %s has no eligible teachers", requirement.SubjectID))
		}
	}

	holidays, err := s.years.ListHolidays(ctx, year.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}

	grid, err := s.buildGrid(ctx)
	if err != nil {
		return nil, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	shared, err := s.buildSharedAvailability(ctx, classID, req.AcademicYear)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	assignments, err := timetable.GenerateWeek(classID, reqs, shared, grid, timetable.SolverOptions{
		MaxAttemptsPerSubject: s.cfg.MaxAttemptsPerSubject,
		Weights: timetable.ScoreWeights{
			Clustering: s.cfg.ClusteringWeight,
			Balance:    s.cfg.BalanceWeight,
		},
		RepairIterations: s.cfg.RepairIterations,
	})
	if err != nil {
		var infeasible *timetable.InfeasibleError
		if errors.As(err, &infeasible) {
			if s.metrics != nil {
				s.metrics.ObserveGeneration("infeasible", time.Since(started))
			}
			if s.notifier != nil {
				s.notifier.GenerationFailed(classID, req.AcademicYear, infeasible.Error())
			}
			return nil, appErrors.Wrap(err, appErrors.ErrSchedulingInfeasible.Code, appErrors.ErrSchedulingInfeasible.Status,
				fmt.Sprintf("cannot place %d remaining periods of subject %s", infeasible.MissingPeriods, infeasible.SubjectID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule generation failed")
	}

	lessons := timetable.Materialize(assignments, *year, holidays)
	if req.Force {
		lessons, err = s.dropPreservedSlots(ctx, classID, req.AcademicYear, lessons)
		if err != nil {
			return nil, err
		}
	}

	if err := s.persistSchedule(ctx, classID, req, assignments, lessons); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveGeneration("error", time.Since(started))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveGeneration("success", time.Since(started))
	}
	if s.notifier != nil {
		s.notifier.ScheduleInitialized(classID, req.AcademicYear, len(lessons))
	}

	score := timetable.ScoreTemplate(classID, assignments, reqs, grid, timetable.ScoreWeights{
		Clustering: s.cfg.ClusteringWeight,
		Balance:    s.cfg.BalanceWeight,
	})

	s.logger.Info("schedule initialized",
		zap.String("classId", classID),
		zap.String("academicYear", req.AcademicYear),
		zap.Int("assignments", len(assignments)),
		zap.Int("lessons", len(lessons)),
		zap.Float64("score", score),
		zap.Bool("regenerated", exists))

	cells := make([]dto.ScheduleCell, 0, len(assignments))
	for _, cell := range assignments {
		cells = append(cells, dto.ScheduleCell{
			DayOfWeek: cell.DayOfWeek,
			Period:    cell.Period,
			SubjectID: cell.SubjectID,
			TeacherID: cell.TeacherID,
		})
	}

	return &dto.InitializeScheduleResponse{
		ClassID:         classID,
		AcademicYear:    req.AcademicYear,
		AssignmentCount: len(assignments),
		LessonCount:     len(lessons),
		Score:           score,
		Regenerated:     exists,
		Cells:           cells,
	}, nil
}

func (s *ScheduleService) persistSchedule(ctx context.Context, classID string, req dto.InitializeScheduleRequest, assignments []models.WeeklyAssignment, lessons []models.Lesson) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if req.Force {
		if err = s.templates.DeleteByClassWithTx(ctx, tx, classID, req.AcademicYear); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop previous template")
		}
		if err = s.lessons.DeleteNonCompletedByClassWithTx(ctx, tx, classID, req.AcademicYear); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop previous lessons")
		}
	}
	if err = s.templates.BulkCreateWithTx(ctx, tx, assignments); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist weekly template")
	}
	if err = s.lessons.BulkCreateWithTx(ctx, tx, lessons); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist lessons")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule")
	}
	return nil
}

// dropPreservedSlots filters out materialized lessons whose slot is held by a
// COMPLETED lesson that regeneration keeps.
func (s *ScheduleService) dropPreservedSlots(ctx context.Context, classID, academicYear string, lessons []models.Lesson) ([]models.Lesson, error) {
	kept, err := s.lessons.CompletedSlots(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed lessons")
	}
	if len(kept) == 0 {
		return lessons, nil
	}
	type slot struct{ week, day, period int }
	taken := make(map[slot]bool, len(kept))
	for _, cell := range kept {
		taken[slot{cell.WeekNumber, cell.DayOfWeek, cell.Period}] = true
	}
	filtered := lessons[:0]
	for _, lesson := range lessons {
		if taken[slot{lesson.WeekNumber, lesson.DayOfWeek, lesson.Period}] {
			continue
		}
		filtered = append(filtered, lesson)
	}
	return filtered, nil
}

func (s *ScheduleService) buildGrid(ctx context.Context) (timetable.Grid, error) {
	periodsPerDay := s.cfg.PeriodsPerDay
	if s.periods != nil {
		catalog, err := s.periods.List(ctx)
		if err != nil {
			return timetable.Grid{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period catalog")
		}
		if len(catalog) > 0 {
			periodsPerDay = len(catalog)
		}
	}
	days := make([]int, 0, s.cfg.DaysPerWeek)
	for day := 1; day <= s.cfg.DaysPerWeek; day++ {
		days = append(days, day)
	}
	return timetable.NewGrid(days, periodsPerDay), nil
}

// buildSharedAvailability seeds teacher occupancy from recurring blocked slots
// and every other class's stored template for the year.
func (s *ScheduleService) buildSharedAvailability(ctx context.Context, classID, academicYear string) (*timetable.TeacherAvailability, error) {
	avail := timetable.NewTeacherAvailability()

	if s.teachers != nil {
		blocked, err := s.teachers.ListBlockedSlots(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher blocked slots")
		}
		for _, cell := range blocked {
			avail.Block(cell.TeacherID, cell.DayOfWeek, cell.Period)
		}
	}

	existing, err := s.templates.ListByAcademicYear(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing templates")
	}
	for _, cell := range existing {
		if cell.ClassID == classID {
			continue
		}
		avail.Reserve(cell.TeacherID, cell.DayOfWeek, cell.Period)
	}
	return avail, nil
}

// GetWeekly returns a class's weekly timetable enriched with period times and
// subject names.
func (s *ScheduleService) GetWeekly(ctx context.Context, classID, academicYear string) (*dto.WeeklyScheduleResponse, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	assignments, err := s.templates.ListByClass(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly schedule")
	}
	if len(assignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not initialized for this class and year")
	}

	times := map[int]models.TimeSlot{}
	if s.periods != nil {
		catalog, err := s.periods.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period catalog")
		}
		for _, slot := range catalog {
			times[slot.Period] = slot
		}
	}

	names := map[string]models.Subject{}
	if s.subjects != nil {
		ids := make([]string, 0, len(assignments))
		seen := map[string]bool{}
		for _, cell := range assignments {
			if !seen[cell.SubjectID] {
				ids = append(ids, cell.SubjectID)
				seen[cell.SubjectID] = true
			}
		}
		names, err = s.subjects.ListByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		}
	}

	cells := make([]dto.ScheduleCell, 0, len(assignments))
	for _, cell := range assignments {
		rendered := dto.ScheduleCell{
			DayOfWeek: cell.DayOfWeek,
			Period:    cell.Period,
			SubjectID: cell.SubjectID,
			TeacherID: cell.TeacherID,
		}
		if slot, ok := times[cell.Period]; ok {
			rendered.StartTime = slot.StartTime
			rendered.EndTime = slot.EndTime
		}
		if subject, ok := names[cell.SubjectID]; ok {
			rendered.SubjectName = subject.Name
		}
		cells = append(cells, rendered)
	}

	return &dto.WeeklyScheduleResponse{ClassID: classID, AcademicYear: academicYear, Cells: cells}, nil
}

// EmptySlots lists grid cells with no active lesson for a class week.
func (s *ScheduleService) EmptySlots(ctx context.Context, classID string, query dto.EmptySlotQuery) (*dto.EmptySlotsResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid empty slot query")
	}
	grid, err := s.buildGrid(ctx)
	if err != nil {
		return nil, err
	}
	occupied, err := s.lessons.OccupiedSlots(ctx, classID, query.AcademicYear, query.WeekNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupied slots")
	}

	type cell struct{ day, period int }
	taken := make(map[cell]bool, len(occupied))
	for _, slot := range occupied {
		taken[cell{slot.DayOfWeek, slot.Period}] = true
	}

	var empty []models.EmptySlot
	for _, day := range grid.Days {
		for period := 1; period <= grid.PeriodsPerDay; period++ {
			if taken[cell{day, period}] {
				continue
			}
			empty = append(empty, models.EmptySlot{
				ClassID:    classID,
				WeekNumber: query.WeekNumber,
				DayOfWeek:  day,
				Period:     period,
			})
		}
	}

	return &dto.EmptySlotsResponse{ClassID: classID, WeekNumber: query.WeekNumber, Slots: empty}, nil
}

// Status reports whether a class's schedule is initialized for the year and
// how many lessons are materialized.
func (s *ScheduleService) Status(ctx context.Context, classID, academicYear string) (*models.ScheduleStatus, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	initialized, err := s.templates.ExistsForClass(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule state")
	}
	counts, err := s.lessons.CountByStatus(ctx, classID, "", academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	return &models.ScheduleStatus{
		ClassID:      classID,
		AcademicYear: academicYear,
		TotalLessons: total,
		Initialized:  initialized,
		ByStatus:     counts,
	}, nil
}

// ExportDataset renders the weekly schedule as a tabular dataset for CSV or
// PDF export.
func (s *ScheduleService) ExportDataset(ctx context.Context, classID, academicYear string) (export.Dataset, error) {
	weekly, err := s.GetWeekly(ctx, classID, academicYear)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(weekly.Cells))
	for _, cell := range weekly.Cells {
		name := cell.SubjectName
		if name == "" {
			name = cell.SubjectID
		}
		rows = append(rows, map[string]string{
			"Day":     fmt.Sprintf("%d", cell.DayOfWeek),
			"Period":  fmt.Sprintf("%d", cell.Period),
			"Time":    fmt.Sprintf("%s-%s", cell.StartTime, cell.EndTime),
			"Subject": name,
			"Teacher": cell.TeacherID,
		})
	}
	return export.Dataset{
		Headers: []string{"Day", "Period", "Time", "Subject", "Teacher"},
		Rows:    rows,
	}, nil
}
