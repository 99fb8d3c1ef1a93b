package service

import (
	"context"
	"errors"

	"github.com/adwatch/backend/internal/model"
)

type SettingsService struct {
	store SettingsStore
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the stored settings, or the defaults (not persisted) when none exist.
func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	st, err := s.store.GetSettings(ctx)
	if errors.Is(err, model.ErrConfigMissing) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	return *st, nil
}

// Update validates and upserts the singleton record; any caller-supplied ID is ignored.
func (s *SettingsService) Update(ctx context.Context, in model.Settings) (model.Settings, error) {
	if err := in.Validate(); err != nil {
		return model.Settings{}, err
	}
	in.ID = model.DefaultSettingsID
	saved, err := s.store.SaveSettings(ctx, in)
	if err != nil {
		return model.Settings{}, err
	}
	return *saved, nil
}
