// Alert queries and operator actions
//
// Listing reads straight from the store; resolve/dismiss go through
// AlertLifecycle so the health score and events follow every transition.

package service

import (
	"context"
	"errors"

	"github.com/adwatch/backend/internal/model"
)

// ErrInvalidInput - malformed request parameters
var ErrInvalidInput = errors.New("invalid input")

type AlertService struct {
	store     AlertStore
	lifecycle *AlertLifecycle
}

func NewAlertService(store AlertStore, lifecycle *AlertLifecycle) *AlertService {
	return &AlertService{store: store, lifecycle: lifecycle}
}

func (s *AlertService) List(ctx context.Context, f model.AlertFilter) ([]model.AlertListItem, error) {
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, errors.Join(ErrInvalidInput, errors.New("unknown severity "+string(f.Severity)))
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Join(ErrInvalidInput, errors.New("unknown status "+string(f.Status)))
	}
	return s.store.ListAlerts(ctx, f)
}

func (s *AlertService) Get(ctx context.Context, id string) (*model.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

func (s *AlertService) Resolve(ctx context.Context, id string) (*model.Alert, error) {
	return s.lifecycle.Resolve(ctx, id)
}

func (s *AlertService) Dismiss(ctx context.Context, id string) (*model.Alert, error) {
	return s.lifecycle.Dismiss(ctx, id)
}
