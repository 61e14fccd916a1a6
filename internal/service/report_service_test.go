package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/dto"
	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/repository"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
	"github.com/noah-isme/biblioteca-api/pkg/jobs"
	"github.com/noah-isme/biblioteca-api/pkg/storage"
)

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type generatorStub struct {
	result *ExportResult
	err    error
}

func (g *generatorStub) Generate(context.Context, *models.ReportJob) (*ExportResult, error) {
	return g.result, g.err
}

type reportFixture struct {
	store    *store.Store
	repo     *repository.MemoryReportRepository
	queue    *dispatcherStub
	exporter *ExportService
	service  *ReportService
}

func newReportFixture(t *testing.T, signer *storage.SignedURLSigner) *reportFixture {
	t.Helper()
	st, _, _ := newTestStore(t)
	seedExportLoans(t, st)
	exporter, _ := newExportServiceForTest(t, st, signer)
	repo := repository.NewMemoryReportRepository()
	queue := &dispatcherStub{}
	svc := NewReportService(st, repo, queue, exporter, nil, nil, nil, ReportServiceConfig{ResultTTL: time.Hour})
	svc.now = func() time.Time { return testNow }
	return &reportFixture{store: st, repo: repo, queue: queue, exporter: exporter, service: svc}
}

func TestReportServiceDaily(t *testing.T) {
	f := newReportFixture(t, nil)
	ctx := context.Background()

	report, err := f.service.Daily(ctx, day("2024-02-29"), day("2024-03-03"))
	require.NoError(t, err)
	require.Len(t, report.Days, 4)
	assert.Equal(t, "2024-02-29", report.Days[0].Date)
	assert.Zero(t, report.Days[0].Total)
	assert.Equal(t, models.DailyLoanSummary{Date: "2024-03-01", Total: 1, Active: 1}, report.Days[1])
	assert.Equal(t, models.DailyLoanSummary{Date: "2024-03-02", Total: 1, Overdue: 1}, report.Days[2])
	assert.Equal(t, 2, report.Totals.Total)

	reversed, err := f.service.Daily(ctx, day("2024-03-03"), day("2024-03-01"))
	require.NoError(t, err)
	assert.Empty(t, reversed.Days)

	_, err = f.service.Daily(ctx, day("2022-01-01"), day("2024-01-01"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReportServiceCreateExport(t *testing.T) {
	f := newReportFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		tx.PutSession(models.Session{OperatorName: "Rosa", Role: models.RoleLibrarian})
		return nil
	}))

	resp, err := f.service.CreateExport(ctx, dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, resp.ID, f.queue.jobs[0].ID)
	assert.Equal(t, string(models.ReportTypeLoanRegister), f.queue.jobs[0].Kind)

	job, err := f.repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosa", job.CreatedBy)
	assert.Equal(t, "2024-03-31", job.Params.To)
}

func TestReportServiceCreateExportRejections(t *testing.T) {
	f := newReportFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.ExportRequest
	}{
		{"bad format", dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: "xlsx"}},
		{"bad date", dto.ExportRequest{From: "01/03/2024", To: "2024-03-31", Format: models.ReportFormatPDF}},
		{"reversed range", dto.ExportRequest{From: "2024-03-31", To: "2024-03-01", Format: models.ReportFormatPDF}},
		{"nothing to export", dto.ExportRequest{From: "2023-01-01", To: "2023-01-31", Format: models.ReportFormatPDF}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateExport(ctx, tc.req)
			assert.True(t, errors.Is(err, appErrors.ErrValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.queue.jobs)
}

func TestReportServiceCreateExportEnqueueFailure(t *testing.T) {
	f := newReportFixture(t, nil)
	f.queue.err = jobs.ErrQueueClosed
	ctx := context.Background()

	_, err := f.service.CreateExport(ctx, dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatCSV})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	queued, err := f.repo.ListQueued(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestReportServiceEndToEndDownload(t *testing.T) {
	f := newReportFixture(t, nil)
	ctx := context.Background()

	resp, err := f.service.CreateExport(ctx, dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatCSV})
	require.NoError(t, err)

	status, err := f.service.Status(ctx, resp.ID)
	require.NoError(t, err)
	assert.Nil(t, status.DownloadURL)

	worker := NewReportWorker(f.repo, f.exporter, nil, 2, nil)
	require.NoError(t, worker.Handle(ctx, f.queue.jobs[0]))

	status, err = f.service.Status(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.DownloadURL)
	assert.Nil(t, status.Error)

	token := extractToken(*status.DownloadURL)
	download, err := f.service.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, "registro-prestamos-2024-03-15.csv", download.Filename)
	assert.Contains(t, download.ContentType, "csv")
	raw, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Libro B2")

	_, err = f.service.ResolveDownload(ctx, token+"x")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.service.Status(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceExpiredDownload(t *testing.T) {
	f := newReportFixture(t, storage.NewSignedURLSigner("secret", time.Nanosecond))
	ctx := context.Background()

	resp, err := f.service.CreateExport(ctx, dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatCSV})
	require.NoError(t, err)
	worker := NewReportWorker(f.repo, f.exporter, nil, 0, nil)
	require.NoError(t, worker.Handle(ctx, f.queue.jobs[0]))

	status, err := f.service.Status(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, status.DownloadURL)

	_, err = f.service.ResolveDownload(ctx, extractToken(*status.DownloadURL))
	assert.True(t, errors.Is(err, appErrors.ErrExpired))
}

func TestReportWorkerHandleFailure(t *testing.T) {
	repo := repository.NewMemoryReportRepository()
	ctx := context.Background()
	job := &models.ReportJob{Type: models.ReportTypeLoanRegister}
	require.NoError(t, repo.Create(ctx, job))
	worker := NewReportWorker(repo, &generatorStub{err: errors.New("render failed")}, nil, 1, nil)

	err := worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)
	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)

	err = worker.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1})
	require.Error(t, err)
	stored, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportServiceRecoverAndCleanup(t *testing.T) {
	f := newReportFixture(t, nil)
	ctx := context.Background()

	pending := &models.ReportJob{Type: models.ReportTypeLoanRegister, Params: models.ReportJobParams{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatCSV}}
	require.NoError(t, f.repo.Create(ctx, pending))
	f.service.RecoverPendingJobs(ctx)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, pending.ID, f.queue.jobs[0].ID)

	worker := NewReportWorker(f.repo, f.exporter, nil, 0, nil)
	require.NoError(t, worker.Handle(ctx, f.queue.jobs[0]))
	status, err := f.service.Status(ctx, pending.ID)
	require.NoError(t, err)
	token := extractToken(*status.DownloadURL)

	f.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.GreaterOrEqual(t, f.service.cleanupExpired(ctx), 1)

	_, err = f.service.ResolveDownload(ctx, token)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
