package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
)

type progressLessonReader interface {
	ProgressRows(ctx context.Context, classID, academicYear string, now time.Time) ([]models.LessonAggregate, error)
}

type progressSubjectReader interface {
	ListByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type progressCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

// ProgressService computes lesson completion aggregates per class. Results are
// cached briefly in Redis; mutations invalidate via InvalidateClass.
type ProgressService struct {
	lessons  progressLessonReader
	subjects progressSubjectReader
	cache    progressCache
	metrics  cacheObserver
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewProgressService wires progress dependencies.
func NewProgressService(lessons progressLessonReader, subjects progressSubjectReader, cache progressCache, metrics cacheObserver, logger *zap.Logger, ttl time.Duration) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProgressService{
		lessons:  lessons,
		subjects: subjects,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func progressCacheKey(classID, academicYear string) string {
	return fmt.Sprintf("progress:%s:%s", classID, academicYear)
}

// ComputeProgress returns overall and per-subject completion for a class.
func (s *ProgressService) ComputeProgress(ctx context.Context, classID, academicYear string) (*dto.ClassProgressResponse, error) {
	if classID == "" || academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId and academicYear are required")
	}

	key := progressCacheKey(classID, academicYear)
	if s.cache != nil {
		var cached dto.ClassProgressResponse
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("progress cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	now := s.now()
	rows, err := s.lessons.ProgressRows(ctx, classID, academicYear, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate lesson progress")
	}

	resp := s.fold(classID, academicYear, rows)
	if s.subjects != nil && len(resp.Subjects) > 0 {
		ids := make([]string, 0, len(resp.Subjects))
		for _, subject := range resp.Subjects {
			ids = append(ids, subject.SubjectID)
		}
		names, err := s.subjects.ListByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		}
		for i := range resp.Subjects {
			if subject, ok := names[resp.Subjects[i].SubjectID]; ok {
				resp.Subjects[i].SubjectName = subject.Name
			}
		}
	}

	if s.cache != nil {
		resp.CachedAt = now.Format(time.RFC3339)
		if err := s.cache.Set(ctx, key, resp, s.ttl); err != nil {
			s.logger.Warn("progress cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

func (s *ProgressService) fold(classID, academicYear string, rows []models.LessonAggregate) *dto.ClassProgressResponse {
	type subjectAccumulator struct {
		counts  dto.ProgressCounts
		present int
		total   int
	}
	perSubject := map[string]*subjectAccumulator{}
	overall := dto.ProgressCounts{}
	var overallPresent, overallTotal int

	for _, row := range rows {
		acc := perSubject[row.SubjectID]
		if acc == nil {
			acc = &subjectAccumulator{}
			perSubject[row.SubjectID] = acc
		}
		switch row.Status {
		case models.LessonStatusScheduled:
			acc.counts.Scheduled += row.Count
			acc.counts.ScheduledPast += row.PastCount
			overall.Scheduled += row.Count
			overall.ScheduledPast += row.PastCount
		case models.LessonStatusCompleted:
			acc.counts.Completed += row.Count
			acc.present += row.Present
			acc.total += row.Total
			overall.Completed += row.Count
			overallPresent += row.Present
			overallTotal += row.Total
		case models.LessonStatusAbsent:
			acc.counts.Absent += row.Count
			overall.Absent += row.Count
		case models.LessonStatusMakeup:
			acc.counts.Makeup += row.Count
			overall.Makeup += row.Count
		case models.LessonStatusCancelled:
			acc.counts.Cancelled += row.Count
			overall.Cancelled += row.Count
		}
	}

	subjects := make([]dto.SubjectProgress, 0, len(perSubject))
	for subjectID, acc := range perSubject {
		subjects = append(subjects, dto.SubjectProgress{
			SubjectID:      subjectID,
			Counts:         acc.counts,
			CompletionRate: completionRate(acc.counts),
			AttendanceRate: ratio(acc.present, acc.total),
		})
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].SubjectID < subjects[j].SubjectID })

	return &dto.ClassProgressResponse{
		ClassID:        classID,
		AcademicYear:   academicYear,
		Overall:        overall,
		CompletionRate: completionRate(overall),
		AttendanceRate: ratio(overallPresent, overallTotal),
		Subjects:       subjects,
	}
}

// completionRate is completed over everything that should have happened by
// now: completed, absent, makeup and overdue scheduled. CANCELLED never enters
// the denominator.
func completionRate(c dto.ProgressCounts) float64 {
	return ratio(c.Completed, c.Completed+c.Absent+c.Makeup+c.ScheduledPast)
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// InvalidateClass drops cached progress after a lifecycle mutation.
func (s *ProgressService) InvalidateClass(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, progressCacheKey(classID, "*")); err != nil {
		s.logger.Warn("progress cache invalidation failed", zap.String("classId", classID), zap.Error(err))
	}
}
