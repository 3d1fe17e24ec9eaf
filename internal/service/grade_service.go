package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

const (
	gradeSnapshotCacheKey = "grades:snapshot"
	gradeCachePattern     = "grades:*"
)

type gradeRepository interface {
	ReplaceAll(ctx context.Context, classify repository.Classifier) ([]models.GradeRecord, error)
	List(ctx context.Context) ([]models.GradeRecord, error)
}

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

var gradingPolicyKeys = []string{
	models.ConfigKeyGradeThresholdA,
	models.ConfigKeyGradeThresholdB,
	models.ConfigKeyGradeThresholdC,
}

// GradeService classifies attendance into letter grades and serves the snapshot.
type GradeService struct {
	grades    gradeRepository
	configs   configurationRepository
	cache     *CacheService
	cacheTTL  time.Duration
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the service. cache may be nil.
func NewGradeService(grades gradeRepository, configs configurationRepository, cache *CacheService, cacheTTL time.Duration, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, configs: configs, cache: cache, cacheTTL: cacheTTL, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Policy returns the persisted thresholds, or the defaults when none are stored.
func (s *GradeService) Policy(ctx context.Context, actor models.Actor) (models.GradingPolicy, error) {
	if err := requireAdmin(actor); err != nil {
		return models.GradingPolicy{}, err
	}
	return s.currentPolicy(ctx)
}

// UpdatePolicy validates and persists new thresholds, then regrades everyone with them.
func (s *GradeService) UpdatePolicy(ctx context.Context, actor models.Actor, policy models.GradingPolicy) (*models.GradingRun, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validatePolicy(policy); err != nil {
		return nil, err
	}

	var updatedBy *string
	if actor.UserID != "" {
		updatedBy = &actor.UserID
	}
	if err := s.configs.BulkUpsert(ctx, policy.Configurations(updatedBy)); err != nil {
		return nil, internalError(err, "failed to persist grading policy")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionGradingPolicySet, "configurations", "", nil, policy)

	run, err := s.run(ctx, actor, policy)
	if err != nil {
		return nil, err
	}
	run.Notice = models.NoticeGradingPolicyUpdate
	return run, nil
}

// Recompute regrades everyone with the given thresholds without persisting them.
func (s *GradeService) Recompute(ctx context.Context, actor models.Actor, policy models.GradingPolicy) (*models.GradingRun, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validatePolicy(policy); err != nil {
		return nil, err
	}
	return s.run(ctx, actor, policy)
}

// RecomputeDefault regrades everyone with the default thresholds.
func (s *GradeService) RecomputeDefault(ctx context.Context, actor models.Actor) (*models.GradingRun, error) {
	return s.Recompute(ctx, actor, models.DefaultGradingPolicy())
}

// AssignGrades regrades everyone with the current policy.
func (s *GradeService) AssignGrades(ctx context.Context, actor models.Actor) (*models.GradingRun, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	policy, err := s.currentPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, actor, policy)
}

// List returns the grade snapshot, served from cache when enabled.
func (s *GradeService) List(ctx context.Context, actor models.Actor) ([]models.GradeRecord, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}

	var cached []models.GradeRecord
	if hit, err := s.cache.Get(ctx, gradeSnapshotCacheKey, &cached); err == nil && hit {
		return cached, true, nil
	}

	records, err := s.grades.List(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to list grades")
	}
	_ = s.cache.Set(ctx, gradeSnapshotCacheKey, records, s.cacheTTL)
	return records, false, nil
}

func (s *GradeService) run(ctx context.Context, actor models.Actor, policy models.GradingPolicy) (*models.GradingRun, error) {
	start := time.Now()
	graded, err := s.grades.ReplaceAll(ctx, policy.Classify)
	s.metrics.ObserveDBQuery("grades_replace_all", time.Since(start))
	s.metrics.RecordGradingRun(len(graded), err)
	if err != nil {
		return nil, internalError(err, "failed to recompute grades")
	}

	// The snapshot changed; a stale listing must not outlive the commit.
	if err := s.cache.Invalidate(ctx, gradeCachePattern); err != nil {
		s.logger.Warn("grade cache not invalidated", zap.Error(err))
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionGradesRecompute, "grades", "", nil, map[string]interface{}{"policy": policy, "graded": len(graded)})
	s.logger.Info("grades recomputed", zap.Int("graded", len(graded)), zap.Int("a", policy.A), zap.Int("b", policy.B), zap.Int("c", policy.C))

	return &models.GradingRun{
		Policy: policy,
		Graded: len(graded),
		RanAt:  time.Now().UTC(),
		Notice: models.NoticeGradesUpdated,
	}, nil
}

func (s *GradeService) currentPolicy(ctx context.Context) (models.GradingPolicy, error) {
	cfgs, err := s.configs.ListByKeys(ctx, gradingPolicyKeys)
	if err != nil {
		return models.GradingPolicy{}, internalError(err, "failed to load grading policy")
	}
	policy, ok := models.GradingPolicyFromConfigurations(cfgs)
	if !ok || policy.Validate() != nil {
		return models.DefaultGradingPolicy(), nil
	}
	return policy, nil
}

func (s *GradeService) validatePolicy(policy models.GradingPolicy) error {
	if err := s.validator.Struct(policy); err != nil {
		return validationError(err, "invalid grading policy")
	}
	if err := policy.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return nil
}
