package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/repository"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/scan"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/storage"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// ScanController drives running sessions. The scan engine implements it.
type ScanController interface {
	Start(session *models.ScanSession) error
	Pause(id string) error
	Resume(id string) error
	Stop(id string) error
}

// SessionsHandler handles scan session HTTP requests
type SessionsHandler struct {
	repo       repository.SessionRepository
	controller ScanController
	archive    storage.ArchiveService // nil when no archive is configured
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(repo repository.SessionRepository, controller ScanController, archive storage.ArchiveService) *SessionsHandler {
	return &SessionsHandler{repo: repo, controller: controller, archive: archive}
}

// CreateSession creates a scan session record in the pending state
func (h *SessionsHandler) CreateSession(ctx context.Context, req *models.CreateSessionRequest) (*models.CreateSessionResponse, error) {
	if req.Body.StopFreqMHz <= req.Body.StartFreqMHz {
		return nil, huma.Error400BadRequest("Stop frequency must exceed start frequency", nil)
	}

	now := time.Now()
	session := &models.ScanSession{
		ID:           uuid.New().String(),
		Name:         req.Body.Name,
		Status:       models.SessionPending,
		StartFreqMHz: req.Body.StartFreqMHz,
		StopFreqMHz:  req.Body.StopFreqMHz,
		RBWHz:        req.Body.RBWHz,
		OffsetHz:     req.Body.OffsetHz,
		HoldCount:    req.Body.HoldCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.repo.Create(ctx, session); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create session", err)
	}
	log.Info().Str("session_id", session.ID).Str("name", session.Name).
		Float64("start_mhz", session.StartFreqMHz).Float64("stop_mhz", session.StopFreqMHz).
		Msg("scan session created")

	resp := &models.CreateSessionResponse{}
	resp.Body.ID = session.ID
	resp.Body.Status = session.Status
	return resp, nil
}

// GetSession returns session status
func (h *SessionsHandler) GetSession(ctx context.Context, req *models.SessionRequest) (*models.GetSessionResponse, error) {
	session, err := h.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, huma.Error404NotFound("Session not found", err)
	}

	resp := &models.GetSessionResponse{}
	resp.Body = sessionStatusBody(session)
	return resp, nil
}

// ListSessions returns recent sessions, newest first
func (h *SessionsHandler) ListSessions(ctx context.Context, req *models.ListSessionsRequest) (*models.ListSessionsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	sessions, err := h.repo.List(ctx, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sessions", err)
	}

	resp := &models.ListSessionsResponse{}
	resp.Body.Sessions = make([]models.SessionStatusBody, 0, len(sessions))
	for _, s := range sessions {
		resp.Body.Sessions = append(resp.Body.Sessions, sessionStatusBody(s))
	}
	return resp, nil
}

// GetArchiveURL returns a presigned download URL for a session's archived scan
func (h *SessionsHandler) GetArchiveURL(ctx context.Context, req *models.SessionRequest) (*models.ArchiveURLResponse, error) {
	if h.archive == nil {
		return nil, huma.Error503ServiceUnavailable("Scan archive is not configured", nil)
	}
	session, err := h.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, huma.Error404NotFound("Session not found", err)
	}
	if session.ArchiveKey == nil {
		return nil, huma.Error404NotFound("Session has no archived scan", nil)
	}

	url, err := h.archive.GenerateDownloadURL(ctx, *session.ArchiveKey)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
	}

	resp := &models.ArchiveURLResponse{}
	resp.Body.URL = url
	resp.Body.Key = *session.ArchiveKey
	return resp, nil
}

// DeleteArchive removes a session's archived scan from object storage
func (h *SessionsHandler) DeleteArchive(ctx context.Context, req *models.SessionRequest) (*models.SessionControlResponse, error) {
	if h.archive == nil {
		return nil, huma.Error503ServiceUnavailable("Scan archive is not configured", nil)
	}
	session, err := h.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, huma.Error404NotFound("Session not found", err)
	}
	if session.ArchiveKey == nil {
		return nil, huma.Error404NotFound("Session has no archived scan", nil)
	}

	if err := h.archive.DeleteFile(ctx, *session.ArchiveKey); err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete archived scan", err)
	}

	// The local result CSV stays; only the archive copy is gone.
	resultFile := ""
	if session.ResultFile != nil {
		resultFile = *session.ResultFile
	}
	if err := h.repo.SetResult(ctx, req.ID, resultFile, nil); err != nil {
		return nil, huma.Error500InternalServerError("Failed to clear archive key", err)
	}
	log.Info().Str("session_id", req.ID).Str("key", *session.ArchiveKey).Msg("archived scan deleted")
	return controlResponse("Archived scan deleted"), nil
}

// StartSession launches the sweep for a pending session
func (h *SessionsHandler) StartSession(ctx context.Context, req *models.SessionRequest) (*models.SessionControlResponse, error) {
	session, err := h.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, huma.Error404NotFound("Session not found", err)
	}
	if session.Status != models.SessionPending {
		return nil, huma.Error409Conflict(fmt.Sprintf("Session is %s, only pending sessions can start", session.Status), nil)
	}

	if err := h.controller.Start(session); err != nil {
		if errors.Is(err, scan.ErrBusy) {
			return nil, huma.Error409Conflict("Another scan is already running", err)
		}
		return nil, huma.Error400BadRequest("Failed to start scan", err)
	}
	return controlResponse("Scan started"), nil
}

// PauseSession holds the sweep before its next segment
func (h *SessionsHandler) PauseSession(ctx context.Context, req *models.SessionRequest) (*models.SessionControlResponse, error) {
	if err := h.controller.Pause(req.ID); err != nil {
		return nil, huma.Error404NotFound("No running session with that ID", err)
	}
	return controlResponse("Scan paused"), nil
}

// ResumeSession releases a paused sweep
func (h *SessionsHandler) ResumeSession(ctx context.Context, req *models.SessionRequest) (*models.SessionControlResponse, error) {
	if err := h.controller.Resume(req.ID); err != nil {
		return nil, huma.Error404NotFound("No running session with that ID", err)
	}
	return controlResponse("Scan resumed"), nil
}

// StopSession cancels the sweep, keeping the partial capture
func (h *SessionsHandler) StopSession(ctx context.Context, req *models.SessionRequest) (*models.SessionControlResponse, error) {
	if err := h.controller.Stop(req.ID); err != nil {
		return nil, huma.Error404NotFound("No running session with that ID", err)
	}
	return controlResponse("Scan stopped"), nil
}

func controlResponse(msg string) *models.SessionControlResponse {
	resp := &models.SessionControlResponse{}
	resp.Body.Message = msg
	return resp
}

func sessionStatusBody(s *models.ScanSession) models.SessionStatusBody {
	return models.SessionStatusBody{
		ID:         s.ID,
		Name:       s.Name,
		Status:     s.Status,
		Progress:   s.Progress,
		Message:    statusMessage(s),
		ResultFile: s.ResultFile,
	}
}

func statusMessage(s *models.ScanSession) string {
	switch s.Status {
	case models.SessionPending:
		return "Waiting to start"
	case models.SessionRunning:
		return fmt.Sprintf("Sweeping, %d%% complete", s.Progress)
	case models.SessionPaused:
		return fmt.Sprintf("Paused at %d%%", s.Progress)
	case models.SessionCompleted:
		return "Scan complete"
	case models.SessionFailed:
		if s.ErrorMsg != nil {
			return *s.ErrorMsg
		}
		return "Scan failed"
	default:
		return ""
	}
}
