package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/api/handlers"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/repository"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/storage"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(router *chi.Mux, api huma.API, scans *store.ScanStore, markers *store.MarkerStore, sessionRepo repository.SessionRepository, controller handlers.ScanController, archive storage.ArchiveService) {
	// Initialize handlers
	scansHandler := handlers.NewScansHandler(scans, markers)
	sessionsHandler := handlers.NewSessionsHandler(sessionRepo, controller, archive)
	intermodHandler := handlers.NewIntermodHandler()
	averagesHandler := handlers.NewAveragesHandler(scans)

	huma.Register(api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health",
		Tags:        []string{"System"},
	}, func(ctx context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = "1.0.0"
		resp.Body.Time = time.Now()
		return resp, nil
	})

	// Register scan data routes
	huma.Register(api, huma.Operation{
		OperationID: "listScans",
		Method:      http.MethodGet,
		Path:        "/api/scans",
		Summary:     "List scan files",
		Description: "Returns scan CSV file names, most recently modified first",
		Tags:        []string{"Scans"},
	}, scansHandler.ListScans)

	huma.Register(api, huma.Operation{
		OperationID: "getLatestScanData",
		Method:      http.MethodGet,
		Path:        "/api/scans/latest",
		Summary:     "Get latest scan data",
		Description: "Returns the points of the most recent scan plus the marker table",
		Tags:        []string{"Scans"},
	}, scansHandler.GetLatestScanData)

	huma.Register(api, huma.Operation{
		OperationID: "getScanInProgressData",
		Method:      http.MethodGet,
		Path:        "/api/scans/in-progress",
		Summary:     "Get in-progress scan data",
		Description: "Returns the partial data of the scan currently being captured",
		Tags:        []string{"Scans"},
	}, scansHandler.GetScanInProgressData)

	huma.Register(api, huma.Operation{
		OperationID: "getScanData",
		Method:      http.MethodGet,
		Path:        "/api/scans/{filename}",
		Summary:     "Get scan data",
		Description: "Returns the points of one scan file plus the marker table",
		Tags:        []string{"Scans"},
	}, scansHandler.GetScanData)

	huma.Register(api, huma.Operation{
		OperationID: "getMarkers",
		Method:      http.MethodGet,
		Path:        "/api/markers",
		Summary:     "Get markers",
		Description: "Returns the marker table",
		Tags:        []string{"Scans"},
	}, scansHandler.GetMarkers)

	// Register session routes
	huma.Register(api, huma.Operation{
		OperationID: "createSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions",
		Summary:     "Create a scan session",
		Description: "Creates a pending scan session",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.CreateSession)

	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List scan sessions",
		Description: "Returns recent scan sessions, most recent first",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.ListSessions)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}",
		Summary:     "Get session status",
		Description: "Returns the current status and progress of a scan session",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "startSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/start",
		Summary:     "Start a scan session",
		Description: "Launches the sweep for a pending session",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.StartSession)

	huma.Register(api, huma.Operation{
		OperationID: "pauseSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/pause",
		Summary:     "Pause a scan session",
		Description: "Holds the sweep before its next segment",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.PauseSession)

	huma.Register(api, huma.Operation{
		OperationID: "resumeSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/resume",
		Summary:     "Resume a scan session",
		Description: "Releases a paused sweep",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.ResumeSession)

	huma.Register(api, huma.Operation{
		OperationID: "stopSession",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/stop",
		Summary:     "Stop a scan session",
		Description: "Cancels the sweep, keeping the partial capture",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.StopSession)

	huma.Register(api, huma.Operation{
		OperationID: "getSessionArchiveURL",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/archive-url",
		Summary:     "Get archive download URL",
		Description: "Returns a presigned download URL for a session's archived scan",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.GetArchiveURL)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSessionArchive",
		Method:      http.MethodDelete,
		Path:        "/api/sessions/{id}/archive",
		Summary:     "Delete archived scan",
		Description: "Removes a session's archived scan from object storage, keeping the local CSV",
		Tags:        []string{"Sessions"},
	}, sessionsHandler.DeleteArchive)

	// Register analysis routes
	huma.Register(api, huma.Operation{
		OperationID: "computeIntermod",
		Method:      http.MethodPost,
		Path:        "/api/intermod",
		Summary:     "Compute intermodulation products",
		Description: "Computes IMD products over the submitted zones",
		Tags:        []string{"Analysis"},
	}, intermodHandler.ComputeIntermod)

	huma.Register(api, huma.Operation{
		OperationID: "computeAverages",
		Method:      http.MethodPost,
		Path:        "/api/averages",
		Summary:     "Average stored scans",
		Description: "Aggregates the named scan files and writes the result CSVs",
		Tags:        []string{"Analysis"},
	}, averagesHandler.ComputeAverages)
}
