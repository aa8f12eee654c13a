package postgres

import (
	"context"
	"database/sql"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/repository"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// PostgresSessionRepository implements SessionRepository for PostgreSQL
type PostgresSessionRepository struct {
	db *sql.DB
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository
func NewPostgresSessionRepository(db *sql.DB) repository.SessionRepository {
	return &PostgresSessionRepository{db: db}
}

// Create inserts a new scan session record
func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.ScanSession) error {
	query := `
		INSERT INTO scan_sessions (id, name, status, progress, start_freq_mhz, stop_freq_mhz, rbw_hz, offset_hz, hold_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Name,
		session.Status,
		session.Progress,
		session.StartFreqMHz,
		session.StopFreqMHz,
		session.RBWHz,
		session.OffsetHz,
		session.HoldCount,
		session.CreatedAt,
		session.UpdatedAt)

	return err
}

func scanSession(scan func(dest ...any) error) (*models.ScanSession, error) {
	var session models.ScanSession
	var resultFile, archiveKey, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := scan(
		&session.ID,
		&session.Name,
		&session.Status,
		&session.Progress,
		&session.StartFreqMHz,
		&session.StopFreqMHz,
		&session.RBWHz,
		&session.OffsetHz,
		&session.HoldCount,
		&resultFile,
		&archiveKey,
		&errorMsg,
		&session.CreatedAt,
		&session.UpdatedAt,
		&completedAt)

	if err != nil {
		return nil, err
	}

	if resultFile.Valid {
		session.ResultFile = &resultFile.String
	}
	if archiveKey.Valid {
		session.ArchiveKey = &archiveKey.String
	}
	if errorMsg.Valid {
		session.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	return &session, nil
}

// GetByID retrieves a scan session by ID
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*models.ScanSession, error) {
	query := `
		SELECT id, name, status, progress, start_freq_mhz, stop_freq_mhz, rbw_hz, offset_hz, hold_count, result_file, archive_key, error_message, created_at, updated_at, completed_at
		FROM scan_sessions
		WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	return scanSession(row.Scan)
}

// List retrieves the most recent scan sessions
func (r *PostgresSessionRepository) List(ctx context.Context, limit int) ([]*models.ScanSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, status, progress, start_freq_mhz, stop_freq_mhz, rbw_hz, offset_hz, hold_count, result_file, archive_key, error_message, created_at, updated_at, completed_at
		FROM scan_sessions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.ScanSession
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// UpdateStatus updates the status and progress of a scan session
func (r *PostgresSessionRepository) UpdateStatus(ctx context.Context, id string, status string, progress int) error {
	query := `
		UPDATE scan_sessions
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, progress, id)
	return err
}

// UpdateError marks a scan session as failed with an error message
func (r *PostgresSessionRepository) UpdateError(ctx context.Context, id string, errorMsg string) error {
	query := `
		UPDATE scan_sessions
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// SetResult records the finalized scan file and optional archive key
func (r *PostgresSessionRepository) SetResult(ctx context.Context, id string, resultFile string, archiveKey *string) error {
	query := `
		UPDATE scan_sessions
		SET result_file = $1, archive_key = $2, updated_at = NOW()
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, resultFile, archiveKey, id)
	return err
}
