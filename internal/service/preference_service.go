package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/store"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

// UpdatePreferencesRequest carries UI settings. Empty fields keep their value.
type UpdatePreferencesRequest struct {
	Theme    string `json:"theme" validate:"omitempty,oneof=light dark"`
	Language string `json:"language" validate:"omitempty,oneof=es en"`
}

// PreferenceService reads and saves UI preferences.
type PreferenceService struct {
	store     stateStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPreferenceService constructs the preference service.
func NewPreferenceService(st stateStore, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{store: st, validator: validate, logger: logger}
}

// Get returns the saved preferences or the defaults.
func (s *PreferenceService) Get(ctx context.Context) (*models.Preferences, error) {
	var prefs models.Preferences
	err := s.store.View(ctx, func(r store.Reader) error {
		prefs = r.Preferences()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Update merges req into the saved preferences.
func (s *PreferenceService) Update(ctx context.Context, req UpdatePreferencesRequest) (*models.Preferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}
	var prefs models.Preferences
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		prefs = tx.Preferences()
		if req.Theme != "" {
			prefs.Theme = req.Theme
		}
		if req.Language != "" {
			prefs.Language = req.Language
		}
		prefs.UpdatedAt = tx.Now()
		tx.PutPreferences(prefs)
		return nil
	})
	if err != nil {
		return nil, storageError(err, "failed to save preferences")
	}
	s.logger.Debug("preferences updated", zap.String("theme", prefs.Theme), zap.String("language", prefs.Language))
	return &prefs, nil
}
