package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	"github.com/noah-isme/biblioteca-api/pkg/export"
	"github.com/noah-isme/biblioteca-api/pkg/storage"
)

const loanRegisterTitle = "Registro de Préstamos"

var loanRegisterHeaders = []string{"ID Préstamo", "Estudiante", "Libro", "Carrera", "Fecha Préstamo", "Fecha Devolución", "Estado"}

var loanRegisterWidths = []float64{25, 50, 80, 32, 30, 30, 30}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ObjectPath string
	Token      string
	URL        string
	Rows       int
	Format     models.ReportFormat
	ExpiresAt  time.Time
}

// ExportService renders the loan register and stores it behind a signed link.
type ExportService struct {
	store   stateStore
	objects storage.ObjectStore
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers use the defaults.
func NewExportService(st stateStore, objects storage.ObjectStore, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		store:   st,
		objects: objects,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the job's loan register and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if job.Type != models.ReportTypeLoanRegister {
		return nil, fmt.Errorf("unsupported report type %s", job.Type)
	}
	loans, err := s.SelectLoans(ctx, job.Params)
	if err != nil {
		return nil, err
	}
	generatedAt := s.now()
	table := loanRegisterTable(loans, job.Params, generatedAt)

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(table)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(table)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	name := path.Join(job.ID, exportFilename(generatedAt, job.Params.Format))
	objectPath, err := s.objects.Save(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, objectPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("loan register exported",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Params.Format)),
		zap.Int("rows", len(loans)),
	)
	return &ExportResult{
		ObjectPath: objectPath,
		Token:      token,
		URL:        fmt.Sprintf("%s/export/%s", prefix, token),
		Rows:       len(loans),
		Format:     job.Params.Format,
		ExpiresAt:  expiresAt,
	}, nil
}

// SelectLoans returns the loans an export with params would contain,
// ordered by loan date.
func (s *ExportService) SelectLoans(ctx context.Context, params models.ReportJobParams) ([]models.LoanDetail, error) {
	from, err := models.ParseDate(params.From)
	if err != nil {
		return nil, fmt.Errorf("parse from date: %w", err)
	}
	to, err := models.ParseDate(params.To)
	if err != nil {
		return nil, fmt.Errorf("parse to date: %w", err)
	}
	var loans []models.LoanDetail
	err = s.store.View(ctx, func(r store.Reader) error {
		asOf := r.Now()
		for _, loan := range r.Loans() {
			day := models.DateOf(loan.LoanDate)
			if day.Before(from) || day.After(to) {
				continue
			}
			if params.Career != "" && loan.Book.Career != params.Career {
				continue
			}
			detail := models.NewLoanDetail(loan, asOf)
			if params.Status != "" && detail.EffectiveStatus != params.Status {
				continue
			}
			loans = append(loans, detail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].LoanDate.Before(loans[j].LoanDate)
	})
	return loans, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, objectPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open streams a stored export.
func (s *ExportService) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	return s.objects.Open(ctx, objectPath)
}

// Delete removes a stored export.
func (s *ExportService) Delete(ctx context.Context, objectPath string) error {
	return s.objects.Delete(ctx, objectPath)
}

// Cleanup removes exports older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.objects.CleanupOlderThan(ctx, ttl)
}

func exportFilename(at time.Time, format models.ReportFormat) string {
	return fmt.Sprintf("registro-prestamos-%s.%s", at.Format(models.DateLayout), format)
}

func loanRegisterTable(loans []models.LoanDetail, params models.ReportJobParams, generatedAt time.Time) export.Table {
	rows := make([][]string, 0, len(loans))
	for _, loan := range loans {
		id := loan.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			loan.Student.FullName(),
			loan.Book.Title,
			loan.Book.Career.DisplayName(),
			loan.LoanDate.Format("02/01/2006"),
			loan.DueDate.Format("02/01/2006"),
			loan.EffectiveStatus.DisplayName(),
		})
	}
	subtitle := fmt.Sprintf("Generado: %s", generatedAt.Format("02/01/2006 15:04"))
	if from, err := models.ParseDate(params.From); err == nil {
		if to, err := models.ParseDate(params.To); err == nil {
			subtitle = fmt.Sprintf("Periodo: %s - %s | %s", from.Format("02/01/2006"), to.Format("02/01/2006"), subtitle)
		}
	}
	return export.Table{
		Title:    loanRegisterTitle,
		Subtitle: subtitle,
		Headers:  loanRegisterHeaders,
		Widths:   loanRegisterWidths,
		Rows:     rows,
	}
}
