package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type dashboardStore interface {
	View(ctx context.Context, fn func(r store.Reader) error) error
	Revision() uint64
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLoans int
}

// DashboardService composes the circulation overview.
type DashboardService struct {
	store  dashboardStore
	cache  dashboardCache
	logger *zap.Logger
	cfg    DashboardServiceConfig
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService. cache may be nil.
func NewDashboardService(st dashboardStore, cache dashboardCache, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLoans <= 0 {
		cfg.RecentLoans = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{store: st, cache: cache, logger: logger, cfg: cfg, now: time.Now}
}

// Summary returns the overview and whether it was served from cache. The key
// carries the calendar day so overdue counts roll over at midnight, and the
// store revision so a summary computed before a commit is never read after it.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	day := s.now().Format(models.DateLayout)
	if s.cache != nil {
		var cached models.DashboardSummary
		if hit, _ := s.cache.Get(ctx, summaryCacheKey(day, s.store.Revision()), &cached); hit {
			return &cached, true, nil
		}
	}

	var summary models.DashboardSummary
	var revision uint64
	err := s.store.View(ctx, func(r store.Reader) error {
		summary = composeSummary(r, s.cfg.RecentLoans)
		revision = r.Revision()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		key := summaryCacheKey(day, revision)
		if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &summary, false, nil
}

func summaryCacheKey(day string, revision uint64) string {
	return fmt.Sprintf("dashboard:summary:%s:r%d", day, revision)
}

func composeSummary(r store.Reader, recent int) models.DashboardSummary {
	asOf := r.Now()
	books := r.Books()
	students := r.Students()
	loans := r.Loans()

	summary := models.DashboardSummary{
		TotalBooks:    len(books),
		TotalStudents: len(students),
		TotalLoans:    len(loans),
		GeneratedAt:   asOf,
	}

	perCareer := make(map[models.Career]*models.CareerSummary)
	for _, career := range models.Careers() {
		perCareer[career] = &models.CareerSummary{Career: career, Name: career.DisplayName()}
	}
	for _, book := range books {
		summary.TotalCopies += book.Copies
		summary.AvailableCopies += book.AvailableCopies
		if entry, ok := perCareer[book.Career]; ok {
			entry.Books++
			entry.Copies += book.Copies
			entry.AvailableCopies += book.AvailableCopies
		}
	}
	for _, student := range students {
		if entry, ok := perCareer[student.Career]; ok {
			entry.Students++
		}
	}
	for _, career := range models.Careers() {
		entry := perCareer[career]
		if summary.TotalBooks > 0 {
			entry.Percentage = math.Round(float64(entry.Books)/float64(summary.TotalBooks)*1000) / 10
		}
		summary.BooksPerCareer = append(summary.BooksPerCareer, *entry)
	}

	details := make([]models.LoanDetail, 0, len(loans))
	for _, loan := range loans {
		detail := models.NewLoanDetail(loan, asOf)
		switch detail.EffectiveStatus {
		case models.LoanStatusActive:
			summary.ActiveLoans++
		case models.LoanStatusOverdue:
			summary.OverdueLoans++
		case models.LoanStatusReturned:
			summary.ReturnedLoans++
		}
		details = append(details, detail)
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].CreatedAt.After(details[j].CreatedAt)
	})
	if len(details) > recent {
		details = details[:recent]
	}
	summary.RecentLoans = details
	return summary
}
