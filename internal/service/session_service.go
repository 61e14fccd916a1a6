package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

// OpenSessionRequest names the operator taking over the desk.
type OpenSessionRequest struct {
	OperatorName string `json:"operator_name" validate:"required,max=100"`
	Role         string `json:"role" validate:"required,oneof=admin librarian"`
}

// SessionService tracks who is operating the circulation desk. It performs no
// authentication; the operator name only stamps registered loans.
type SessionService struct {
	store     stateStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs the desk session service.
func NewSessionService(st stateStore, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{store: st, validator: validate, logger: logger}
}

// Current returns the open session.
func (s *SessionService) Current(ctx context.Context) (*models.Session, error) {
	var session models.Session
	err := s.store.View(ctx, func(r store.Reader) error {
		current, ok := r.Session()
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "no desk session open")
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Open starts a session, replacing any previous one.
func (s *SessionService) Open(ctx context.Context, req OpenSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	var session models.Session
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		session = models.Session{
			OperatorName: strings.TrimSpace(req.OperatorName),
			Role:         req.Role,
			StartedAt:    tx.Now(),
		}
		tx.PutSession(session)
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to open session")
	}
	s.logger.Info("desk session opened", zap.String("operator", session.OperatorName), zap.String("role", session.Role))
	return &session, nil
}

// Close ends the open session. Closing with no session open is a no-op.
func (s *SessionService) Close(ctx context.Context) error {
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Session(); !ok {
			return nil
		}
		tx.ClearSession()
		return nil
	})
	if err != nil {
		return storageError(err, "failed to close session")
	}
	s.logger.Info("desk session closed")
	return nil
}
