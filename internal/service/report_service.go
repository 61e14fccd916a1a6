package service

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/dto"
	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/repository"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
	"github.com/noah-isme/biblioteca-api/pkg/jobs"
	"github.com/noah-isme/biblioteca-api/pkg/storage"
)

// ReportJobStore persists export jobs.
type ReportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportServiceConfig governs range limits, queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRangeDays    int
}

// ReportDownload aggregates resolved download data. Callers close Body.
type ReportDownload struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Format      models.ReportFormat
	ExpiresAt   time.Time
}

// ReportService orchestrates daily summaries and the export job lifecycle.
type ReportService struct {
	store     stateStore
	repo      ReportJobStore
	queue     jobDispatcher
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(st stateStore, repo ReportJobStore, queue jobDispatcher, exporter *ExportService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}
	return &ReportService{
		store:     st,
		repo:      repo,
		queue:     queue,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Daily counts the loans registered on each day of [from, to] by effective
// status. Days without loans are included with zero counts; a reversed range
// yields no days.
func (s *ReportService) Daily(ctx context.Context, from, to time.Time) (*models.LoanReport, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	report := &models.LoanReport{
		From: from.Format(models.DateLayout),
		To:   to.Format(models.DateLayout),
		Days: []models.DailyLoanSummary{},
	}
	if to.Before(from) {
		return report, nil
	}
	if models.DaysBetween(from, to)+1 > s.cfg.MaxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range too large")
	}

	index := make(map[string]int)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(models.DateLayout)
		index[key] = len(report.Days)
		report.Days = append(report.Days, models.DailyLoanSummary{Date: key})
	}
	err := s.store.View(ctx, func(r store.Reader) error {
		asOf := r.Now()
		for _, loan := range r.Loans() {
			i, ok := index[models.DateOf(loan.LoanDate).Format(models.DateLayout)]
			if !ok {
				continue
			}
			entry := &report.Days[i]
			entry.Total++
			report.Totals.Total++
			switch models.ComputeEffectiveStatus(loan, asOf) {
			case models.LoanStatusActive:
				entry.Active++
				report.Totals.Active++
			case models.LoanStatusOverdue:
				entry.Overdue++
				report.Totals.Overdue++
			case models.LoanStatusReturned:
				entry.Returned++
				report.Totals.Returned++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// CreateExport validates the request, persists the job and enqueues it.
func (s *ReportService) CreateExport(ctx context.Context, req dto.ExportRequest) (*dto.ReportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	params := models.ReportJobParams{From: req.From, To: req.To, Format: req.Format, Status: req.Status, Career: req.Career}
	from, _ := models.ParseDate(req.From)
	to, _ := models.ParseDate(req.To)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	loans, err := s.exporter.SelectLoans(ctx, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select loans")
	}
	if len(loans) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no loans match the export filters")
	}

	createdBy := "desk"
	_ = s.store.View(ctx, func(r store.Reader) error {
		if session, ok := r.Session(); ok {
			createdBy = session.OperatorName
		}
		return nil
	})

	job := &models.ReportJob{
		Type:      models.ReportTypeLoanRegister,
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := s.now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("export queued",
		zap.String("job_id", job.ID),
		zap.String("format", string(req.Format)),
		zap.Int("rows", len(loans)),
	)
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status exposes job progress and the download link once finished.
func (s *ReportService) Status(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.ReportStatusResponse{
		ID:         job.ID,
		Type:       job.Type,
		Status:     job.Status,
		Progress:   job.Progress,
		FinishedAt: job.FinishedAt,
	}
	if job.Status == models.ReportStatusFinished && job.ResultURL != nil {
		resp.DownloadURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored export.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, objectPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		if _, _, _, lenient := s.exporter.ParseToken(token, true); lenient == nil {
			return nil, appErrors.Clone(appErrors.ErrExpired, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	body, err := s.exporter.Open(ctx, objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		Body:        body,
		Filename:    path.Base(objectPath),
		ContentType: exportContentType(job.Params.Format),
		Format:      job.Params.Format,
		ExpiresAt:   expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	removed := 0
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("cleanup list failed", zap.Error(err))
		return 0
	}
	for _, job := range finished {
		if job.ResultURL == nil {
			continue
		}
		token := extractToken(*job.ResultURL)
		if token == "" {
			continue
		}
		_, objectPath, _, err := s.exporter.ParseToken(token, true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(ctx, objectPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		removed++
	}
	swept, err := s.exporter.Cleanup(ctx, s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("storage cleanup failed", zap.Error(err))
	}
	removed += len(swept)
	if removed > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", removed))
	}
	return removed
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReportJobNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

func exportContentType(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatCSV:
		return "text/csv; charset=utf-8"
	case models.ReportFormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to the exporter.
type ReportWorker struct {
	repo       ReportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker. maxRetries must match the queue's.
func NewReportWorker(repo ReportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ReportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.metrics.RecordReportJob(string(models.ReportStatusFailed))
		} else {
			queued := models.ReportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob(string(models.ReportStatusFinished))
	return nil
}
