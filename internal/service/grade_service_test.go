package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

// mockGradeRepo derives the snapshot from present-day counts the way the store does.
type mockGradeRepo struct {
	present  map[string]int
	snapshot []models.GradeRecord
	runs     int
	lists    int
	err      error
}

func (m *mockGradeRepo) ReplaceAll(ctx context.Context, classify repository.Classifier) ([]models.GradeRecord, error) {
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.present))
	for id, n := range m.present {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	next := make([]models.GradeRecord, 0, len(ids))
	for _, id := range ids {
		n := m.present[id]
		next = append(next, models.GradeRecord{ID: "g-" + id, UserID: id, DaysAttended: n, Grade: classify(n), ComputedAt: time.Now()})
	}
	m.snapshot = next
	return next, nil
}

func (m *mockGradeRepo) List(ctx context.Context) ([]models.GradeRecord, error) {
	m.lists++
	return m.snapshot, nil
}

type mockConfigRepo struct {
	values map[string]models.Configuration
	err    error
}

func (m *mockConfigRepo) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	var out []models.Configuration
	for _, k := range keys {
		if cfg, ok := m.values[k]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (m *mockConfigRepo) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if m.err != nil {
		return m.err
	}
	if m.values == nil {
		m.values = map[string]models.Configuration{}
	}
	for _, cfg := range cfgs {
		m.values[cfg.Key] = cfg
	}
	return nil
}

type memoryCacheRepo struct {
	entries     map[string][]models.GradeRecord
	invalidated int
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*[]models.GradeRecord)) = v
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.entries[key] = value.([]models.GradeRecord)
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated++
	m.entries = map[string][]models.GradeRecord{}
	return nil
}

func gradeOf(records []models.GradeRecord, userID string) models.GradeLetter {
	for _, r := range records {
		if r.UserID == userID {
			return r.Grade
		}
	}
	return ""
}

func newTestGradeService(grades *mockGradeRepo, configs *mockConfigRepo, cache *CacheService) *GradeService {
	return NewGradeService(grades, configs, cache, time.Minute, &mockAuditRepo{}, NewMetricsService(), nil, zap.NewNop())
}

func TestRecomputeDefaultClassification(t *testing.T) {
	grades := &mockGradeRepo{present: map[string]int{"a": 26, "b": 25, "c": 15, "d": 10, "f": 9, "zero": 0}}
	svc := newTestGradeService(grades, &mockConfigRepo{}, nil)

	run, err := svc.RecomputeDefault(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeGradesUpdated, run.Notice)
	assert.Equal(t, 5, run.Graded)
	assert.Equal(t, models.GradeA, gradeOf(grades.snapshot, "a"))
	assert.Equal(t, models.GradeB, gradeOf(grades.snapshot, "b"))
	assert.Equal(t, models.GradeC, gradeOf(grades.snapshot, "c"))
	assert.Equal(t, models.GradeD, gradeOf(grades.snapshot, "d"))
	assert.Equal(t, models.GradeF, gradeOf(grades.snapshot, "f"))
	assert.Equal(t, models.GradeLetter(""), gradeOf(grades.snapshot, "zero"))
}

func TestUpdatePolicyPersistsAndRegrades(t *testing.T) {
	grades := &mockGradeRepo{present: map[string]int{"u1": 22}}
	configs := &mockConfigRepo{}
	svc := newTestGradeService(grades, configs, nil)

	run, err := svc.UpdatePolicy(context.Background(), adminActor, models.GradingPolicy{A: 22, B: 18, C: 12})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeGradingPolicyUpdate, run.Notice)
	assert.Equal(t, models.GradeA, gradeOf(grades.snapshot, "u1"))

	policy, err := svc.Policy(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.GradingPolicy{A: 22, B: 18, C: 12}, policy)

	// later assignment reuses the persisted thresholds
	grades.present["u1"] = 19
	_, err = svc.AssignGrades(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.GradeB, gradeOf(grades.snapshot, "u1"))
}

func TestUpdatePolicyRejectsInvalidThresholds(t *testing.T) {
	grades := &mockGradeRepo{present: map[string]int{"u1": 22}}
	configs := &mockConfigRepo{}
	svc := newTestGradeService(grades, configs, nil)

	for _, p := range []models.GradingPolicy{{A: 20, B: 20, C: 15}, {A: 26, B: 20, C: 10}, {A: 15, B: 20, C: 26}, {A: 0, B: 0, C: 0}} {
		_, err := svc.UpdatePolicy(context.Background(), adminActor, p)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "%+v", p)
	}
	assert.Zero(t, grades.runs)
	assert.Empty(t, configs.values)
}

func TestPolicyDefaultsWhenUnset(t *testing.T) {
	svc := newTestGradeService(&mockGradeRepo{}, &mockConfigRepo{}, nil)
	policy, err := svc.Policy(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultGradingPolicy(), policy)
}

func TestGradingRunFailureLeavesPolicyAndReportsInternal(t *testing.T) {
	grades := &mockGradeRepo{err: errors.New("connection reset")}
	svc := newTestGradeService(grades, &mockConfigRepo{}, nil)

	_, err := svc.AssignGrades(context.Background(), adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestGradeOperationsRequireAdmin(t *testing.T) {
	grades := &mockGradeRepo{present: map[string]int{"u1": 30}}
	configs := &mockConfigRepo{}
	svc := newTestGradeService(grades, configs, nil)
	ctx := context.Background()

	_, err := svc.UpdatePolicy(ctx, userActor, models.DefaultGradingPolicy())
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.RecomputeDefault(ctx, userActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.AssignGrades(ctx, userActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, _, err = svc.List(ctx, userActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Zero(t, grades.runs)
	assert.Zero(t, grades.lists)
	assert.Empty(t, configs.values)
}

func TestGradeListingCacheInvalidatedByRun(t *testing.T) {
	grades := &mockGradeRepo{present: map[string]int{"u1": 30}}
	cacheRepo := &memoryCacheRepo{entries: map[string][]models.GradeRecord{}}
	cache := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc := newTestGradeService(grades, &mockConfigRepo{}, cache)
	ctx := context.Background()

	_, err := svc.RecomputeDefault(ctx, adminActor)
	require.NoError(t, err)

	first, hit, err := svc.List(ctx, adminActor)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.List(ctx, adminActor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, grades.lists)

	grades.present["u1"] = 5
	_, err = svc.RecomputeDefault(ctx, adminActor)
	require.NoError(t, err)

	second, hit, err := svc.List(ctx, adminActor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.GradeA, first[0].Grade)
	assert.Equal(t, models.GradeF, second[0].Grade)
	assert.Equal(t, 2, cacheRepo.invalidated)
}
