// Package repository defines persistence interfaces for scan sessions.
package repository

import (
	"context"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// SessionRepository persists scan session state
type SessionRepository interface {
	Create(ctx context.Context, session *models.ScanSession) error
	GetByID(ctx context.Context, id string) (*models.ScanSession, error)
	List(ctx context.Context, limit int) ([]*models.ScanSession, error)
	UpdateStatus(ctx context.Context, id string, status string, progress int) error
	UpdateError(ctx context.Context, id string, errorMsg string) error
	SetResult(ctx context.Context, id string, resultFile string, archiveKey *string) error
}
