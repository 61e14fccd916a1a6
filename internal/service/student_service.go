package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

// StudentRequest holds the payload for creating or updating a borrower.
type StudentRequest struct {
	StudentCode string        `json:"student_code" validate:"required,max=20"`
	Name        string        `json:"name" validate:"required,max=100"`
	LastName    string        `json:"last_name" validate:"required,max=100"`
	Email       string        `json:"email" validate:"required,email"`
	Career      models.Career `json:"career" validate:"required,oneof=accounting nursing agriculture computing"`
	Cycle       int           `json:"cycle" validate:"required,min=1,max=12"`
	Phone       string        `json:"phone" validate:"max=20"`
}

// StudentService handles the student directory.
type StudentService struct {
	store     stateStore
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(st stateStore, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{store: st, cache: cache, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Career != "" && !filter.Career.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid career")
	}
	var students []models.Student
	err := s.store.View(ctx, func(r store.Reader) error {
		students = filterStudents(r.Students(), filter)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sortStudents(students, filter.SortBy, filter.SortOrder)
	page, pagination := paginate(students, filter.Page, filter.PageSize)
	return page, pagination, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := s.store.View(ctx, func(r store.Reader) error {
		found, ok := r.Student(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		student = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	var student models.Student
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if codeTaken(tx.Students(), req.StudentCode, "") {
			return appErrors.Clone(appErrors.ErrConflict, "student code already used")
		}
		now := tx.Now()
		student = models.Student{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
		applyStudentRequest(&student, req)
		tx.PutStudent(student)
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to create student")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("student_code", student.StudentCode))
	return &student, nil
}

// Update modifies an existing student. Loans already registered keep their snapshot.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	var student models.Student
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		current, ok := tx.Student(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		if codeTaken(tx.Students(), req.StudentCode, id) {
			return appErrors.Clone(appErrors.ErrConflict, "student code already used")
		}
		applyStudentRequest(&current, req)
		current.UpdatedAt = tx.Now()
		tx.PutStudent(current)
		student = current
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to update student")
	}
	invalidateDashboard(ctx, s.cache)
	return &student, nil
}

// Delete removes a student without outstanding loans.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Student(id); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		if countOutstanding(tx.Loans(), id) > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "student has outstanding loans")
		}
		tx.DeleteStudent(id)
		return nil
	})
	if err != nil {
		return storageError(err, "failed to delete student")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

func applyStudentRequest(student *models.Student, req StudentRequest) {
	student.StudentCode = strings.ToUpper(strings.TrimSpace(req.StudentCode))
	student.Name = strings.TrimSpace(req.Name)
	student.LastName = strings.TrimSpace(req.LastName)
	student.Email = strings.ToLower(strings.TrimSpace(req.Email))
	student.Career = req.Career
	student.Cycle = req.Cycle
	student.Phone = strings.TrimSpace(req.Phone)
}

func codeTaken(students []models.Student, code, excludeID string) bool {
	code = strings.TrimSpace(code)
	for _, student := range students {
		if student.ID != excludeID && strings.EqualFold(student.StudentCode, code) {
			return true
		}
	}
	return false
}

func filterStudents(students []models.Student, filter models.StudentFilter) []models.Student {
	search := normalizeSearch(filter.Search)
	out := make([]models.Student, 0, len(students))
	for _, student := range students {
		if filter.Career != "" && student.Career != filter.Career {
			continue
		}
		if filter.Cycle > 0 && student.Cycle != filter.Cycle {
			continue
		}
		if search != "" &&
			!containsFold(student.FullName(), search) &&
			!containsFold(student.StudentCode, search) &&
			!containsFold(student.Email, search) {
			continue
		}
		out = append(out, student)
	}
	return out
}

func sortStudents(students []models.Student, sortBy, order string) {
	desc := descending(order)
	less := func(a, b models.Student) bool {
		switch sortBy {
		case "student_code":
			return a.StudentCode < b.StudentCode
		case "cycle":
			return a.Cycle < b.Cycle
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			la, lb := strings.ToLower(a.LastName), strings.ToLower(b.LastName)
			if la != lb {
				return la < lb
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(students, func(i, j int) bool {
		if desc {
			return less(students[j], students[i])
		}
		return less(students[i], students[j])
	})
}
