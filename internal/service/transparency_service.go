package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/dto"
	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

// TransparencyCacheKey holds the cached public statistics.
const TransparencyCacheKey = "transparency:summary"

type transparencyStore interface {
	ListAll(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	CountVerified(ctx context.Context) (int, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// TransparencyService computes the public statistics page.
type TransparencyService struct {
	reports transparencyStore
	cache   summaryCache
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewTransparencyService constructs the service. A nil cache always recomputes.
func NewTransparencyService(reports transparencyStore, cache summaryCache, ttl time.Duration, logger *zap.Logger) *TransparencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransparencyService{reports: reports, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns statistics over approved, non-deleted reports and whether
// they were served from cache.
func (s *TransparencyService) Summary(ctx context.Context) (*dto.TransparencyResponse, bool, error) {
	if s.cache != nil {
		var cached dto.TransparencyResponse
		if s.cache.Get(ctx, TransparencyCacheKey, &cached) {
			return &cached, true, nil
		}
	}

	approved, err := s.reports.ListAll(ctx, models.ReportFilter{Status: models.StatusFilterApproved})
	if err != nil {
		s.logger.Error("load approved reports", zap.Error(err))
		return nil, false, appErrors.Internal(err, "failed to load statistics")
	}
	verified, err := s.reports.CountVerified(ctx)
	if err != nil {
		s.logger.Error("count verified reports", zap.Error(err))
		return nil, false, appErrors.Internal(err, "failed to load statistics")
	}

	now := s.now().UTC()
	resp := &dto.TransparencyResponse{
		TransparencyStats: TransparencyView(AggregateStats(approved, now), verified),
		GeneratedAt:       now,
	}
	if s.cache != nil {
		s.cache.Set(ctx, TransparencyCacheKey, resp, s.ttl)
	}
	return resp, false, nil
}

// Options returns the fixed option lists of the submission form.
func Options() dto.OptionsResponse {
	return dto.OptionsResponse{
		ProjectTypes:    models.ProjectTypes,
		IssueCategories: models.IssueCategories,
		Departments:     models.Departments,
		TimelineImpacts: models.TimelineImpacts,
	}
}
