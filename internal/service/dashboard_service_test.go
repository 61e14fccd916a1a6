package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
)

func TestDashboardServiceSummary(t *testing.T) {
	st, _, clock := newTestStore(t)
	ledger := NewInventoryLedger(nil)
	loans := NewLoanService(st, ledger, nil, nil, LoanServiceConfig{}, nil, nil)
	seedBook(t, st, "b1", models.CareerComputing, 3, 3)
	seedBook(t, st, "b2", models.CareerComputing, 1, 1)
	seedBook(t, st, "b3", models.CareerNursing, 2, 2)
	seedStudent(t, st, "s1", models.CareerComputing)
	seedStudent(t, st, "s2", models.CareerNursing)
	ctx := context.Background()

	_, err := loans.Register(ctx, RegisterLoanRequest{BookID: "b1", StudentID: "s1", LoanDate: "2024-03-01", DueDate: "2024-03-05"})
	require.NoError(t, err)
	clock.Set(testNow.Add(time.Minute))
	_, err = loans.Register(ctx, RegisterLoanRequest{BookID: "b3", StudentID: "s2"})
	require.NoError(t, err)
	clock.Set(testNow.Add(2 * time.Minute))
	returned, err := loans.Register(ctx, RegisterLoanRequest{BookID: "b2", StudentID: "s2"})
	require.NoError(t, err)
	_, err = loans.Return(ctx, returned.ID)
	require.NoError(t, err)

	svc := NewDashboardService(st, nil, DashboardServiceConfig{RecentLoans: 2}, nil)
	summary, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, 3, summary.TotalBooks)
	assert.Equal(t, 6, summary.TotalCopies)
	assert.Equal(t, 4, summary.AvailableCopies)
	assert.Equal(t, 2, summary.TotalStudents)
	assert.Equal(t, 3, summary.TotalLoans)
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.Equal(t, 1, summary.OverdueLoans)
	assert.Equal(t, 1, summary.ReturnedLoans)

	require.Len(t, summary.BooksPerCareer, 4)
	computing := summary.BooksPerCareer[3]
	assert.Equal(t, models.CareerComputing, computing.Career)
	assert.Equal(t, "Apsti", computing.Name)
	assert.Equal(t, 2, computing.Books)
	assert.Equal(t, 66.7, computing.Percentage)
	assert.Equal(t, 1, computing.Students)
	assert.Equal(t, 0.0, summary.BooksPerCareer[0].Percentage)

	require.Len(t, summary.RecentLoans, 2)
	assert.Equal(t, returned.ID, summary.RecentLoans[0].ID)
	assert.Equal(t, "b3", summary.RecentLoans[1].BookID)
}

func TestDashboardServiceUsesCache(t *testing.T) {
	st, _, _ := newTestStore(t)
	seedBook(t, st, "b1", models.CareerComputing, 1, 1)
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewDashboardService(st, cache, DashboardServiceConfig{}, nil)
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	first, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, repo.values, "dashboard:summary:2024-03-15:r1")

	second, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.TotalBooks, second.TotalBooks)

	seedBook(t, st, "b2", models.CareerComputing, 1, 1)
	third, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, third.TotalBooks)

	books := NewBookService(st, NewInventoryLedger(nil), cache, nil, nil)
	require.NoError(t, books.Delete(ctx, "b2"))
	fourth, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, fourth.TotalBooks)
}

// commitAfterView lets a write land between the dashboard read and its
// cache write.
type commitAfterView struct {
	*store.Store
	after func()
}

func (c *commitAfterView) View(ctx context.Context, fn func(r store.Reader) error) error {
	err := c.Store.View(ctx, fn)
	if c.after != nil {
		c.after()
		c.after = nil
	}
	return err
}

func TestDashboardServiceDoesNotServeSummaryOlderThanLastCommit(t *testing.T) {
	st, _, _ := newTestStore(t)
	seedBook(t, st, "b1", models.CareerComputing, 1, 1)
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	racing := &commitAfterView{Store: st}
	svc := NewDashboardService(racing, cache, DashboardServiceConfig{}, nil)
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	racing.after = func() {
		seedBook(t, st, "b2", models.CareerNursing, 1, 1)
		require.NoError(t, cache.Invalidate(ctx, dashboardCachePattern))
	}
	stale, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, stale.TotalBooks)

	fresh, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, fresh.TotalBooks)

	cached, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, cached.TotalBooks)
}

func TestDashboardServiceEmptyLibrary(t *testing.T) {
	st, _, _ := newTestStore(t)
	svc := NewDashboardService(st, nil, DashboardServiceConfig{}, nil)

	summary, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalBooks)
	assert.Len(t, summary.BooksPerCareer, 4)
	assert.Empty(t, summary.RecentLoans)
}
