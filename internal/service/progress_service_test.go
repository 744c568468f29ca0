package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/timetable-api/internal/dto"
	"github.com/schoolcore/timetable-api/internal/models"
	appErrors "github.com/schoolcore/timetable-api/pkg/errors"
)

type progressReaderStub struct {
	rows []models.LessonAggregate
	err  error
}

func (s progressReaderStub) ProgressRows(ctx context.Context, classID, academicYear string, now time.Time) ([]models.LessonAggregate, error) {
	return s.rows, s.err
}

type subjectBatchStub struct {
	subjects map[string]models.Subject
}

func (s subjectBatchStub) ListByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error) {
	return s.subjects, nil
}

type progressCacheStub struct {
	stored  map[string]*dto.ClassProgressResponse
	sets    int
	deletes []string
}

func (s *progressCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if cached, ok := s.stored[key]; ok {
		*dest.(*dto.ClassProgressResponse) = *cached
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (s *progressCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets++
	if s.stored == nil {
		s.stored = map[string]*dto.ClassProgressResponse{}
	}
	resp := value.(*dto.ClassProgressResponse)
	clone := *resp
	s.stored[key] = &clone
	return nil
}

func (s *progressCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletes = append(s.deletes, pattern)
	return nil
}

func TestComputeProgressFoldsCountsAndRates(t *testing.T) {
	rows := []models.LessonAggregate{
		{SubjectID: "math", Status: models.LessonStatusCompleted, Count: 10, Present: 280, Total: 300},
		{SubjectID: "math", Status: models.LessonStatusScheduled, Count: 26, PastCount: 2},
		{SubjectID: "math", Status: models.LessonStatusAbsent, Count: 1},
		{SubjectID: "math", Status: models.LessonStatusMakeup, Count: 1},
		{SubjectID: "math", Status: models.LessonStatusCancelled, Count: 2},
		{SubjectID: "literature", Status: models.LessonStatusCompleted, Count: 5, Present: 145, Total: 150},
	}
	svc := NewProgressService(progressReaderStub{rows: rows}, subjectBatchStub{subjects: map[string]models.Subject{
		"math": {ID: "math", Name: "Mathematics"},
	}}, nil, nil, nil, 0)

	resp, err := svc.ComputeProgress(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)

	assert.Equal(t, 15, resp.Overall.Completed)
	assert.Equal(t, 26, resp.Overall.Scheduled)
	assert.Equal(t, 2, resp.Overall.Cancelled)
	// completed / (completed + absent + makeup + overdue scheduled)
	assert.InDelta(t, 15.0/19.0, resp.CompletionRate, 1e-9)
	assert.InDelta(t, 425.0/450.0, resp.AttendanceRate, 1e-9)

	require.Len(t, resp.Subjects, 2)
	assert.Equal(t, "literature", resp.Subjects[0].SubjectID)
	math := resp.Subjects[1]
	assert.Equal(t, "Mathematics", math.SubjectName)
	assert.InDelta(t, 10.0/14.0, math.CompletionRate, 1e-9)
	assert.InDelta(t, 280.0/300.0, math.AttendanceRate, 1e-9)
}

func TestComputeProgressUsesCache(t *testing.T) {
	cache := &progressCacheStub{}
	reader := progressReaderStub{rows: []models.LessonAggregate{
		{SubjectID: "math", Status: models.LessonStatusCompleted, Count: 1, Present: 30, Total: 30},
	}}
	svc := NewProgressService(reader, nil, cache, nil, nil, time.Minute)

	first, err := svc.ComputeProgress(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.NotEmpty(t, first.CachedAt)

	second, err := svc.ComputeProgress(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second call must be served from cache")
	assert.Equal(t, first.Overall, second.Overall)
}

func TestComputeProgressEmptyClass(t *testing.T) {
	svc := NewProgressService(progressReaderStub{}, nil, nil, nil, nil, 0)

	resp, err := svc.ComputeProgress(context.Background(), "c1", "2025-2026")
	require.NoError(t, err)
	assert.Zero(t, resp.CompletionRate)
	assert.Zero(t, resp.AttendanceRate)
	assert.Empty(t, resp.Subjects)
}

func TestInvalidateClassDropsCachedEntries(t *testing.T) {
	cache := &progressCacheStub{}
	svc := NewProgressService(progressReaderStub{}, nil, cache, nil, nil, time.Minute)

	svc.InvalidateClass(context.Background(), "c1")
	require.Len(t, cache.deletes, 1)
	assert.Equal(t, "progress:c1:*", cache.deletes[0])
}
