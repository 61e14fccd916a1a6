package dto

import (
	"time"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// ExportRequest captures the POST /reports/export payload. Dates are YYYY-MM-DD.
type ExportRequest struct {
	From   string              `json:"from" validate:"required,datetime=2006-01-02"`
	To     string              `json:"to" validate:"required,datetime=2006-01-02"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=pdf csv"`
	Status models.LoanStatus   `json:"status" validate:"omitempty,oneof=active overdue returned"`
	Career models.Career       `json:"career" validate:"omitempty,oneof=accounting nursing agriculture computing"`
}

// ReportJobResponse is returned after enqueueing an export.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and, once finished, the signed download link.
type ReportStatusResponse struct {
	ID          string              `json:"id"`
	Type        models.ReportType   `json:"type"`
	Status      models.ReportStatus `json:"status"`
	Progress    int                 `json:"progress"`
	DownloadURL *string             `json:"download_url,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
