package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// MemoryReportRepository keeps report jobs in process memory. It backs the
// memory storage driver, where no database is configured.
type MemoryReportRepository struct {
	mu   sync.RWMutex
	jobs map[string]models.ReportJob
}

// NewMemoryReportRepository constructs an empty repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{jobs: make(map[string]models.ReportJob)}
}

// Create stores a new job.
func (r *MemoryReportRepository) Create(_ context.Context, job *models.ReportJob) error {
	applyReportJobDefaults(job)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

// GetByID returns a copy of the job.
func (r *MemoryReportRepository) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrReportJobNotFound
	}
	return &job, nil
}

// Update applies the provided changes.
func (r *MemoryReportRepository) Update(_ context.Context, id string, params UpdateReportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrReportJobNotFound
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		finished := *params.FinishedAt
		job.FinishedAt = &finished
	}
	r.jobs[id] = job
	return nil
}

// ListFinishedBefore returns finished jobs older than cutoff, oldest first.
func (r *MemoryReportRepository) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListQueued returns queued jobs, oldest first.
func (r *MemoryReportRepository) ListQueued(_ context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
