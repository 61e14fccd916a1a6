package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var reportColumns = []string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db, "postgres")
	mock.ExpectExec(`INSERT INTO "report_jobs"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeLoanRegister,
		Params:    models.ReportJobParams{From: "2024-01-01", To: "2024-01-31", Format: models.ReportFormatPDF},
		CreatedBy: "Bibliotecario",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	rows := sqlmock.NewRows(reportColumns).
		AddRow(job.ID, "loan_register", `{"from":"2024-01-01","to":"2024-01-31","format":"pdf"}`, "QUEUED", 0, nil, "Bibliotecario", time.Now(), nil, nil)
	mock.ExpectQuery(`SELECT "id", "type", "params", .* FROM "report_jobs" WHERE \("id" = \$1\)`).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
	assert.Equal(t, models.ReportFormatPDF, fetched.Params.Format)
	assert.Equal(t, "2024-01-31", fetched.Params.To)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db, "postgres")
	mock.ExpectQuery(`FROM "report_jobs"`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(reportColumns))

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, ErrReportJobNotFound)
}

func TestReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db, "postgres")

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	mock.ExpectExec(`UPDATE "report_jobs" SET "finished_at"=\$1,"progress"=\$2,"status"=\$3 WHERE \("id" = \$4\)`).
		WithArgs(now, progress, status, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNoop(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	require.NoError(t, NewReportRepository(db, "postgres").Update(context.Background(), "job-1", UpdateReportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryReportRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryReportRepository()
	ctx := context.Background()

	job := &models.ReportJob{Type: models.ReportTypeLoanRegister}
	require.NoError(t, repo.Create(ctx, job))

	finished := time.Now().Add(-2 * time.Hour)
	status := models.ReportStatusFinished
	url := "/api/v1/export/token"
	require.NoError(t, repo.Update(ctx, job.ID, UpdateReportJobParams{Status: &status, FinishedAt: &finished, ResultURL: &url}))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, status, got.Status)
	require.NotNil(t, got.ResultURL)

	old, err := repo.ListFinishedBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, old, 1)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrReportJobNotFound)
}

func TestMemoryReportRepositoryListQueued(t *testing.T) {
	repo := NewMemoryReportRepository()
	ctx := context.Background()

	first := &models.ReportJob{Type: models.ReportTypeLoanRegister, CreatedAt: time.Now().Add(-time.Minute)}
	second := &models.ReportJob{Type: models.ReportTypeLoanRegister}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	processing := models.ReportStatusProcessing
	require.NoError(t, repo.Update(ctx, second.ID, UpdateReportJobParams{Status: &processing}))

	queued, err := repo.ListQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, first.ID, queued[0].ID)
}
