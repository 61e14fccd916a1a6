package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// ErrReportJobNotFound is returned when a job id is unknown.
var ErrReportJobNotFound = errors.New("report job not found")

const reportJobsTable = "report_jobs"

var reportJobColumns = []interface{}{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

// UpdateReportJobParams defines the mutable fields.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// ReportRepository persists report job metadata next to the state snapshot.
type ReportRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewReportRepository constructs the repository for a goqu dialect.
func NewReportRepository(db *sqlx.DB, dialect string) *ReportRepository {
	return &ReportRepository{db: db, dialect: goqu.Dialect(dialect)}
}

// EnsureSchema creates the jobs table when missing.
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS report_jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	params TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	result_url TEXT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NULL,
	error_message TEXT NULL
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create report_jobs table: %w", err)
	}
	return nil
}

// Create inserts a new report job row with generated defaults.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	applyReportJobDefaults(job)
	params, err := job.Params.Value()
	if err != nil {
		return err
	}
	query, args, err := r.dialect.Insert(reportJobsTable).Rows(goqu.Record{
		"id":            job.ID,
		"type":          job.Type,
		"params":        params,
		"status":        job.Status,
		"progress":      job.Progress,
		"result_url":    job.ResultURL,
		"created_by":    job.CreatedBy,
		"created_at":    job.CreatedAt,
		"finished_at":   job.FinishedAt,
		"error_message": job.ErrorMessage,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build report job insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	query, args, err := r.dialect.From(reportJobsTable).
		Select(reportJobColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build report job select: %w", err)
	}
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportJobNotFound
		}
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}

// Update persists the provided changes for a job row.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	record := goqu.Record{}
	if params.Status != nil {
		record["status"] = *params.Status
	}
	if params.Progress != nil {
		record["progress"] = *params.Progress
	}
	if params.ResultURL != nil {
		record["result_url"] = *params.ResultURL
	}
	if params.ErrorMessage != nil {
		record["error_message"] = *params.ErrorMessage
	}
	if params.FinishedAt != nil {
		record["finished_at"] = *params.FinishedAt
	}
	if len(record) == 0 {
		return nil
	}

	query, args, err := r.dialect.Update(reportJobsTable).
		Set(record).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build report job update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := r.dialect.From(reportJobsTable).
		Select(reportJobColumns...).
		Where(
			goqu.C("status").Eq(models.ReportStatusFinished),
			goqu.C("finished_at").IsNotNull(),
			goqu.C("finished_at").Lt(cutoff),
		).
		Order(goqu.C("finished_at").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build finished report jobs select: %w", err)
	}
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}

func applyReportJobDefaults(job *models.ReportJob) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
}

// ListQueued returns queued jobs, oldest first, for replay after a restart.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := r.dialect.From(reportJobsTable).
		Select(reportJobColumns...).
		Where(goqu.C("status").Eq(models.ReportStatusQueued)).
		Order(goqu.C("created_at").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build queued report jobs select: %w", err)
	}
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}
