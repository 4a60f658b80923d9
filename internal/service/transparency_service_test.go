package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/models"
	"github.com/noah-isme/redtape-api/internal/repository"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

type transparencyStoreStub struct {
	approved []models.Report
	verified int
	filters  []models.ReportFilter
	err      error
}

func (s *transparencyStoreStub) ListAll(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	s.filters = append(s.filters, filter)
	return s.approved, s.err
}

func (s *transparencyStoreStub) CountVerified(ctx context.Context) (int, error) {
	return s.verified, s.err
}

func TestTransparencySummaryCachesUntilInvalidated(t *testing.T) {
	_, client := newRedisFixture(t)
	cache := NewCacheService(repository.NewCacheRepository(client), nil, time.Minute, zap.NewNop(), true)
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	store := &transparencyStoreStub{
		approved: []models.Report{
			statReport("New construction", "3-6 months", "", 24*time.Hour, now, []string{"Planning"}, []string{"Permits"}),
			statReport("Other", "3-6 months", "$10k", 48*time.Hour, now, []string{"Planning", "Fire Department"}, []string{"Fees"}),
		},
		verified: 5,
	}
	svc := NewTransparencyService(store, cache, 10*time.Minute, nil)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	first, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, first.ApprovedCount)
	assert.Equal(t, 5, first.VerifiedCount)
	require.NotEmpty(t, first.Departments)
	assert.Equal(t, models.Tally{Label: "Planning", Count: 2}, first.Departments[0])
	require.Len(t, store.filters, 1)
	assert.Equal(t, models.StatusFilterApproved, store.filters[0].Status)

	second, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.ApprovedCount, second.ApprovedCount)
	assert.Len(t, store.filters, 1)

	cache.Invalidate(ctx, TransparencyCacheKey)
	_, hit, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, store.filters, 2)
}

func TestTransparencySummaryWithoutCache(t *testing.T) {
	svc := NewTransparencyService(&transparencyStoreStub{}, nil, 0, nil)

	resp, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, resp.ApprovedCount)
	assert.NotNil(t, resp.Departments)
}

func TestTransparencySummaryPersistenceFailure(t *testing.T) {
	svc := NewTransparencyService(&transparencyStoreStub{err: errors.New("db down")}, nil, 0, nil)

	_, _, err := svc.Summary(context.Background())
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
}

func TestOptionsListsFixedChoices(t *testing.T) {
	opts := Options()
	assert.Contains(t, opts.Departments, "Building & Safety")
	assert.Len(t, opts.TimelineImpacts, 4)
}
