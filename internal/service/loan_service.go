package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

// dashboardCachePattern matches every cached dashboard read model.
const dashboardCachePattern = "dashboard:*"

type stateStore interface {
	RunInTransaction(ctx context.Context, fn func(tx *store.Tx) error) error
	View(ctx context.Context, fn func(r store.Reader) error) error
}

type availabilityLedger interface {
	DecreaseAvailability(tx ledgerTx, bookID string) bool
	IncreaseAvailability(tx ledgerTx, bookID string) bool
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// RegisterLoanRequest is the payload for lending a copy. Dates use YYYY-MM-DD;
// an empty loan date means today and an empty due date applies the default period.
type RegisterLoanRequest struct {
	BookID    string `json:"book_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	LoanDate  string `json:"loan_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate   string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes     string `json:"notes" validate:"max=500"`
}

// LoanServiceConfig tunes registration rules.
type LoanServiceConfig struct {
	DefaultPeriod       time.Duration
	MaxActivePerStudent int
}

// DeleteAllResult reports what a bulk delete did.
type DeleteAllResult struct {
	Removed  int `json:"removed"`
	Restored int `json:"restored"`
}

// LoanService is the loan lifecycle engine. It owns loan records and keeps
// book availability in step through the injected ledger.
type LoanService struct {
	store     stateStore
	ledger    availabilityLedger
	cache     cacheInvalidator
	metrics   *MetricsService
	cfg       LoanServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLoanService constructs the engine.
func NewLoanService(st stateStore, ledger availabilityLedger, cache cacheInvalidator, metrics *MetricsService, cfg LoanServiceConfig, validate *validator.Validate, logger *zap.Logger) *LoanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPeriod <= 0 {
		cfg.DefaultPeriod = 14 * 24 * time.Hour
	}
	return &LoanService{
		store:     st,
		ledger:    ledger,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// Register lends one copy of a book to a student.
func (s *LoanService) Register(ctx context.Context, req RegisterLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}

	var created models.Loan
	var asOf time.Time
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		asOf = tx.Now()
		loanDate, dueDate, err := s.resolveDates(req, asOf)
		if err != nil {
			return err
		}

		student, ok := tx.Student(req.StudentID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		book, ok := tx.Book(req.BookID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		if s.cfg.MaxActivePerStudent > 0 && countOutstanding(tx.Loans(), student.ID) >= s.cfg.MaxActivePerStudent {
			return appErrors.Clone(appErrors.ErrLoanLimitReached, "")
		}
		if !s.ledger.DecreaseAvailability(tx, book.ID) {
			return appErrors.Clone(appErrors.ErrNoAvailableCopies, "")
		}

		created = models.Loan{
			ID:        uuid.NewString(),
			BookID:    book.ID,
			StudentID: student.ID,
			Book:      book.Snapshot(),
			Student:   student.Snapshot(),
			LoanDate:  loanDate,
			DueDate:   dueDate,
			Status:    models.LoanStatusActive,
			Notes:     req.Notes,
			CreatedAt: asOf,
			UpdatedAt: asOf,
		}
		if session, ok := tx.Session(); ok {
			created.RegisteredBy = session.OperatorName
		}
		tx.PutLoan(created)
		return nil
	})
	if err != nil {
		s.recordRejection(err, req.BookID)
		return nil, storageError(err, "failed to register loan")
	}

	s.metrics.RecordLoanEvent(LoanEventRegistered, "")
	s.invalidate(ctx)
	s.logger.Info("loan registered",
		zap.String("loan_id", created.ID),
		zap.String("book_id", created.BookID),
		zap.String("student_id", created.StudentID),
	)
	detail := models.NewLoanDetail(created, asOf)
	return &detail, nil
}

// Return closes an outstanding loan and puts the copy back on the shelf.
// A second return of the same loan fails with ErrLoanAlreadyReturned.
func (s *LoanService) Return(ctx context.Context, id string) (*models.LoanDetail, error) {
	var updated models.Loan
	var asOf time.Time
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		asOf = tx.Now()
		loan, ok := tx.Loan(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		if loan.Status == models.LoanStatusReturned {
			return appErrors.Clone(appErrors.ErrLoanAlreadyReturned, "")
		}
		if err := s.restoreCopy(tx, loan); err != nil {
			return err
		}
		returnedAt := asOf
		loan.Status = models.LoanStatusReturned
		loan.ReturnDate = &returnedAt
		loan.UpdatedAt = asOf
		tx.PutLoan(loan)
		updated = loan
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to return loan")
	}

	s.metrics.RecordLoanEvent(LoanEventReturned, "")
	s.invalidate(ctx)
	s.logger.Info("loan returned", zap.String("loan_id", updated.ID), zap.String("book_id", updated.BookID))
	detail := models.NewLoanDetail(updated, asOf)
	return &detail, nil
}

// Delete removes a loan. An outstanding loan gives its copy back first.
func (s *LoanService) Delete(ctx context.Context, id string) error {
	var removed models.Loan
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		loan, ok := tx.Loan(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		if loan.Outstanding() {
			if err := s.restoreCopy(tx, loan); err != nil {
				return err
			}
		}
		tx.DeleteLoan(id)
		removed = loan
		return nil
	})
	if err != nil {
		return storageError(err, "failed to delete loan")
	}

	s.metrics.RecordLoanEvent(LoanEventDeleted, "")
	s.invalidate(ctx)
	s.logger.Info("loan deleted",
		zap.String("loan_id", removed.ID),
		zap.String("book_id", removed.BookID),
		zap.Bool("was_outstanding", removed.Outstanding()),
	)
	return nil
}

// DeleteAll restores a copy for every outstanding loan and then clears the
// collection. Either every restoration and the clear happen, or nothing does.
func (s *LoanService) DeleteAll(ctx context.Context) (*DeleteAllResult, error) {
	result := &DeleteAllResult{}
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		result.Restored = 0
		for _, loan := range tx.Loans() {
			if !loan.Outstanding() {
				continue
			}
			if err := s.restoreCopy(tx, loan); err != nil {
				return err
			}
			result.Restored++
		}
		result.Removed = tx.ClearLoans()
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to delete loans")
	}

	s.metrics.AddLoanEvents(LoanEventDeleted, result.Removed)
	s.invalidate(ctx)
	s.logger.Info("all loans deleted", zap.Int("removed", result.Removed), zap.Int("restored", result.Restored))
	return result, nil
}

// Get returns one loan with its effective status.
func (s *LoanService) Get(ctx context.Context, id string) (*models.LoanDetail, error) {
	var detail models.LoanDetail
	err := s.store.View(ctx, func(r store.Reader) error {
		loan, ok := r.Loan(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		detail = models.NewLoanDetail(loan, r.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns loans matching filter. Status filters on the effective status.
func (s *LoanService) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid loan status")
	}
	if filter.Career != "" && !filter.Career.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid career")
	}

	var matched []models.LoanDetail
	err := s.store.View(ctx, func(r store.Reader) error {
		matched = filterLoans(r.Loans(), filter, r.Now())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sortLoans(matched, filter.SortBy, filter.SortOrder)
	page, pagination := paginate(matched, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// ByStatus returns every loan whose effective status is status.
func (s *LoanService) ByStatus(ctx context.Context, status models.LoanStatus) ([]models.LoanDetail, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid loan status")
	}
	var matched []models.LoanDetail
	err := s.store.View(ctx, func(r store.Reader) error {
		matched = filterLoans(r.Loans(), models.LoanFilter{Status: status}, r.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortLoans(matched, "due_date", "asc")
	return matched, nil
}

// Active returns loans still within their due date.
func (s *LoanService) Active(ctx context.Context) ([]models.LoanDetail, error) {
	return s.ByStatus(ctx, models.LoanStatusActive)
}

// Overdue returns outstanding loans past their due date.
func (s *LoanService) Overdue(ctx context.Context) ([]models.LoanDetail, error) {
	return s.ByStatus(ctx, models.LoanStatusOverdue)
}

// Returned returns closed loans.
func (s *LoanService) Returned(ctx context.Context) ([]models.LoanDetail, error) {
	return s.ByStatus(ctx, models.LoanStatusReturned)
}

func (s *LoanService) resolveDates(req RegisterLoanRequest, now time.Time) (time.Time, time.Time, error) {
	loanDate := models.DateOf(now)
	if req.LoanDate != "" {
		parsed, err := models.ParseDate(req.LoanDate)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan date")
		}
		loanDate = parsed
	}
	dueDate := models.DateOf(loanDate.Add(s.cfg.DefaultPeriod))
	if req.DueDate != "" {
		parsed, err := models.ParseDate(req.DueDate)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid due date")
		}
		dueDate = parsed
	}
	if dueDate.Before(loanDate) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "due date must be on or after loan date")
	}
	return loanDate, dueDate, nil
}

// restoreCopy gives a loan's copy back to the ledger. A book that no longer
// exists has nothing to restore; an existing book that refuses the copy means
// the counts are already inconsistent, so the operation is aborted.
func (s *LoanService) restoreCopy(tx *store.Tx, loan models.Loan) error {
	if s.ledger.IncreaseAvailability(tx, loan.BookID) {
		return nil
	}
	if _, exists := tx.Book(loan.BookID); !exists {
		s.logger.Warn("loan references a missing book", zap.String("loan_id", loan.ID), zap.String("book_id", loan.BookID))
		return nil
	}
	s.logger.Error("availability could not be restored", zap.String("loan_id", loan.ID), zap.String("book_id", loan.BookID))
	return appErrors.Clone(appErrors.ErrConflict, "book availability could not be restored")
}

func (s *LoanService) recordRejection(err error, bookID string) {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) || appErr.Status >= 500 {
		return
	}
	s.metrics.RecordLoanEvent(LoanEventRejected, appErr.Code)
	s.logger.Info("loan registration rejected", zap.String("book_id", bookID), zap.String("reason", appErr.Code))
}

// storageError turns a failed snapshot write into ErrStorage and passes
// domain errors through untouched.
func storageError(err error, message string) error {
	if errors.Is(err, store.ErrPersistFailed) {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
	}
	return err
}

func (s *LoanService) invalidate(ctx context.Context) {
	invalidateDashboard(ctx, s.cache)
}

func invalidateDashboard(ctx context.Context, cache cacheInvalidator) {
	if cache == nil {
		return
	}
	_ = cache.Invalidate(ctx, dashboardCachePattern)
}

func countOutstanding(loans []models.Loan, studentID string) int {
	n := 0
	for _, loan := range loans {
		if loan.StudentID == studentID && loan.Outstanding() {
			n++
		}
	}
	return n
}

func filterLoans(loans []models.Loan, filter models.LoanFilter, asOf time.Time) []models.LoanDetail {
	search := normalizeSearch(filter.Search)
	out := make([]models.LoanDetail, 0, len(loans))
	for _, loan := range loans {
		if filter.StudentID != "" && loan.StudentID != filter.StudentID {
			continue
		}
		if filter.BookID != "" && loan.BookID != filter.BookID {
			continue
		}
		if filter.Career != "" && loan.Book.Career != filter.Career {
			continue
		}
		if filter.From != nil && loan.LoanDate.Before(models.DateOf(*filter.From)) {
			continue
		}
		if filter.To != nil && loan.LoanDate.After(models.DateOf(*filter.To)) {
			continue
		}
		if search != "" && !loanMatches(loan, search) {
			continue
		}
		detail := models.NewLoanDetail(loan, asOf)
		if filter.Status != "" && detail.EffectiveStatus != filter.Status {
			continue
		}
		out = append(out, detail)
	}
	return out
}

func loanMatches(loan models.Loan, search string) bool {
	return containsFold(loan.Book.Title, search) ||
		containsFold(loan.Book.Author, search) ||
		containsFold(loan.Student.FullName(), search) ||
		containsFold(loan.Student.StudentCode, search)
}

func sortLoans(loans []models.LoanDetail, sortBy, order string) {
	desc := order == "" || descending(order)
	less := func(a, b models.LoanDetail) bool {
		switch sortBy {
		case "due_date":
			return a.DueDate.Before(b.DueDate)
		case "student":
			return a.Student.FullName() < b.Student.FullName()
		case "book":
			return a.Book.Title < b.Book.Title
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			if !a.LoanDate.Equal(b.LoanDate) {
				return a.LoanDate.Before(b.LoanDate)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(loans, func(i, j int) bool {
		if desc {
			return less(loans[j], loans[i])
		}
		return less(loans[i], loans[j])
	})
}
