package db

import (
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/google/uuid"
)

// fillAlert - defaults applied by every store before insert
func fillAlert(a *model.Alert) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	a.Status = model.AlertStatusActive
	a.ResolvedAt = nil
	a.DismissedAt = nil
}
