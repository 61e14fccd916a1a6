package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

type cacheRepoStub struct {
	values   map[string]interface{}
	ttls     map[string]time.Duration
	patterns []string
	getErr   error
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (s *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if summary, ok := dest.(*models.DashboardSummary); ok {
		*summary = value.(models.DashboardSummary)
	}
	return nil
}

func (s *cacheRepoStub) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	s.values[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	s.values = map[string]interface{}{}
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	ctx := context.Background()

	var dest models.DashboardSummary
	hit, err := svc.Get(ctx, "dashboard:summary:x", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "dashboard:summary:x", models.DashboardSummary{TotalBooks: 4}, 0))
	assert.Equal(t, 5*time.Minute, repo.ttls["dashboard:summary:x"])

	hit, err = svc.Get(ctx, "dashboard:summary:x", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, dest.TotalBooks)

	require.NoError(t, svc.Invalidate(ctx, dashboardCachePattern))
	assert.Equal(t, []string{dashboardCachePattern}, repo.patterns)
}

func TestCacheServiceBackendFailure(t *testing.T) {
	repo := newCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var dest models.DashboardSummary
	hit, err := svc.Get(context.Background(), "k", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", models.DashboardSummary{}, 0))
	assert.Empty(t, repo.values)
	require.NoError(t, svc.Invalidate(ctx, "*"))
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(ctx, "k", &models.DashboardSummary{})
	assert.False(t, hit)
	assert.NoError(t, err)
}
