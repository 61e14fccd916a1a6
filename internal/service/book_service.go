package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

type copiesLedger interface {
	UpdateCopies(tx ledgerTx, bookID string, newTotal int) (models.Book, bool)
}

// BookRequest holds the payload for creating or updating a catalog entry.
type BookRequest struct {
	Title       string        `json:"title" validate:"required,max=255"`
	Author      string        `json:"author" validate:"required,max=255"`
	ISBN        string        `json:"isbn" validate:"required,max=32"`
	PublishYear int           `json:"publish_year" validate:"required,min=1800"`
	Publisher   string        `json:"publisher" validate:"required,max=255"`
	Career      models.Career `json:"career" validate:"required,oneof=accounting nursing agriculture computing"`
	Copies      int           `json:"copies" validate:"required,min=1,max=10000"`
	CoverURL    string        `json:"cover_url" validate:"omitempty,url"`
	Description string        `json:"description" validate:"max=2000"`
	Location    string        `json:"location" validate:"max=100"`
}

// CareerCatalog lists a career with its catalog size.
type CareerCatalog struct {
	Career models.Career `json:"career"`
	Name   string        `json:"name"`
	Books  int           `json:"books"`
}

// BookService manages the catalog. Copy counts change only through the ledger.
type BookService struct {
	store     stateStore
	ledger    copiesLedger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookService constructs the catalog service.
func NewBookService(st stateStore, ledger copiesLedger, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{store: st, ledger: ledger, cache: cache, validator: validate, logger: logger}
}

// List returns books matching filter with pagination metadata.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	if filter.Career != "" && !filter.Career.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid career")
	}
	var books []models.Book
	err := s.store.View(ctx, func(r store.Reader) error {
		books = filterBooks(r.Books(), filter)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sortBooks(books, filter.SortBy, filter.SortOrder)
	page, pagination := paginate(books, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// Get returns a single book.
func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := s.store.View(ctx, func(r store.Reader) error {
		found, ok := r.Book(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		book = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Create adds a title with every copy on the shelf.
func (s *BookService) Create(ctx context.Context, req BookRequest) (*models.Book, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var book models.Book
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if isbnTaken(tx.Books(), req.ISBN, "") {
			return appErrors.Clone(appErrors.ErrConflict, "isbn already registered")
		}
		now := tx.Now()
		book = models.Book{
			ID:              uuid.NewString(),
			Copies:          req.Copies,
			AvailableCopies: req.Copies,
			CreatedAt:       now,
		}
		applyBookRequest(&book, req)
		book.UpdatedAt = now
		tx.PutBook(book)
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to create book")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("book created", zap.String("book_id", book.ID), zap.Int("copies", book.Copies))
	return &book, nil
}

// Update edits catalog fields. A new total of copies keeps the copies on loan
// and is rejected when it would fall below them.
func (s *BookService) Update(ctx context.Context, id string, req BookRequest) (*models.Book, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var book models.Book
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		current, ok := tx.Book(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		if isbnTaken(tx.Books(), req.ISBN, id) {
			return appErrors.Clone(appErrors.ErrConflict, "isbn already registered")
		}
		if req.Copies < current.OnLoan() {
			return appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrConflict, "copies cannot be fewer than copies on loan"),
				map[string]int{"on_loan": current.OnLoan()},
			)
		}
		if req.Copies != current.Copies {
			updated, ok := s.ledger.UpdateCopies(tx, id, req.Copies)
			if !ok {
				return appErrors.Clone(appErrors.ErrConflict, "copies could not be updated")
			}
			current = updated
		}
		applyBookRequest(&current, req)
		current.UpdatedAt = tx.Now()
		tx.PutBook(current)
		book = current
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to update book")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("book updated", zap.String("book_id", book.ID))
	return &book, nil
}

// Delete removes a book that no outstanding loan references. Returned loans
// keep their snapshot of it.
func (s *BookService) Delete(ctx context.Context, id string) error {
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Book(id); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		for _, loan := range tx.Loans() {
			if loan.BookID == id && loan.Outstanding() {
				return appErrors.Clone(appErrors.ErrConflict, "book has outstanding loans")
			}
		}
		tx.DeleteBook(id)
		return nil
	})
	if err != nil {
		return storageError(err, "failed to delete book")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("book deleted", zap.String("book_id", id))
	return nil
}

// Careers lists every career with its number of titles.
func (s *BookService) Careers(ctx context.Context) ([]CareerCatalog, error) {
	counts := make(map[models.Career]int)
	err := s.store.View(ctx, func(r store.Reader) error {
		for _, book := range r.Books() {
			counts[book.Career]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	careers := models.Careers()
	out := make([]CareerCatalog, 0, len(careers))
	for _, career := range careers {
		out = append(out, CareerCatalog{Career: career, Name: career.DisplayName(), Books: counts[career]})
	}
	return out, nil
}

func (s *BookService) validate(req BookRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	if req.PublishYear > time.Now().Year() {
		return appErrors.Clone(appErrors.ErrValidation, "publish year cannot be in the future")
	}
	return nil
}

func applyBookRequest(book *models.Book, req BookRequest) {
	book.Title = strings.TrimSpace(req.Title)
	book.Author = strings.TrimSpace(req.Author)
	book.ISBN = strings.TrimSpace(req.ISBN)
	book.PublishYear = req.PublishYear
	book.Publisher = strings.TrimSpace(req.Publisher)
	book.Career = req.Career
	book.CoverURL = req.CoverURL
	book.Description = req.Description
	book.Location = req.Location
}

func isbnTaken(books []models.Book, isbn, excludeID string) bool {
	isbn = strings.TrimSpace(isbn)
	for _, book := range books {
		if book.ID != excludeID && strings.EqualFold(book.ISBN, isbn) {
			return true
		}
	}
	return false
}

func filterBooks(books []models.Book, filter models.BookFilter) []models.Book {
	search := normalizeSearch(filter.Search)
	out := make([]models.Book, 0, len(books))
	for _, book := range books {
		if filter.Career != "" && book.Career != filter.Career {
			continue
		}
		if filter.AvailableOnly && book.AvailableCopies == 0 {
			continue
		}
		if search != "" && !containsFold(book.Title, search) && !containsFold(book.Author, search) && !containsFold(book.ISBN, search) {
			continue
		}
		out = append(out, book)
	}
	return out
}

func sortBooks(books []models.Book, sortBy, order string) {
	desc := descending(order)
	less := func(a, b models.Book) bool {
		switch sortBy {
		case "author":
			return strings.ToLower(a.Author) < strings.ToLower(b.Author)
		case "publish_year":
			return a.PublishYear < b.PublishYear
		case "available_copies":
			return a.AvailableCopies < b.AvailableCopies
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	}
	sort.SliceStable(books, func(i, j int) bool {
		if desc {
			return less(books[j], books[i])
		}
		return less(books[i], books[j])
	})
}
