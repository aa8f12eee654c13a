// Package handlers implements the HTTP API operations.
package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// scanDataHeaders is the column description served with every scan payload.
var scanDataHeaders = []string{"Frequency (Hz)", "Power (dBm)"}

// ScansHandler serves scan files and the marker table
type ScansHandler struct {
	scans   *store.ScanStore
	markers *store.MarkerStore
}

// NewScansHandler creates a new scans handler
func NewScansHandler(scans *store.ScanStore, markers *store.MarkerStore) *ScansHandler {
	return &ScansHandler{scans: scans, markers: markers}
}

// ListScans returns the scan file names, newest first
func (h *ScansHandler) ListScans(ctx context.Context, _ *struct{}) (*models.ListScansResponse, error) {
	files, err := h.scans.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list scan files", err)
	}

	resp := &models.ListScansResponse{}
	resp.Body.Files = files
	if resp.Body.Files == nil {
		resp.Body.Files = []string{}
	}
	return resp, nil
}

// scanPayload assembles the shared scan response: points plus markers.
func (h *ScansHandler) scanPayload(filename string) (*models.GetScanDataResponse, error) {
	points, err := h.scans.Read(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("Scan file not found", err)
		}
		return nil, huma.Error400BadRequest("Invalid scan file name", err)
	}

	markers, err := h.markers.Load()
	if err != nil {
		log.Warn().Err(err).Msg("markers unavailable, serving scan without them")
		markers = nil
	}

	resp := &models.GetScanDataResponse{}
	resp.Body.Headers = scanDataHeaders
	resp.Body.Data = points
	if resp.Body.Data == nil {
		resp.Body.Data = []models.TracePoint{}
	}
	resp.Body.Markers = markers
	if resp.Body.Markers == nil {
		resp.Body.Markers = []models.Marker{}
	}
	return resp, nil
}

// GetScanData returns the points of one scan file
func (h *ScansHandler) GetScanData(ctx context.Context, req *models.GetScanDataRequest) (*models.GetScanDataResponse, error) {
	return h.scanPayload(req.Filename)
}

// GetLatestScanData returns the most recently modified scan
func (h *ScansHandler) GetLatestScanData(ctx context.Context, _ *struct{}) (*models.GetScanDataResponse, error) {
	latest, err := h.scans.Latest()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("No scan files yet", err)
		}
		return nil, huma.Error500InternalServerError("Failed to find the latest scan", err)
	}
	return h.scanPayload(latest)
}

// GetScanInProgressData returns the partial data of the active scan
func (h *ScansHandler) GetScanInProgressData(ctx context.Context, _ *struct{}) (*models.GetScanDataResponse, error) {
	name, err := h.scans.InProgress()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("No scan in progress", err)
		}
		return nil, huma.Error500InternalServerError("Failed to read the in-progress pointer", err)
	}
	return h.scanPayload(name)
}

// GetMarkers returns the marker table
func (h *ScansHandler) GetMarkers(ctx context.Context, _ *struct{}) (*models.GetMarkersResponse, error) {
	markers, err := h.markers.Load()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load markers", err)
	}

	resp := &models.GetMarkersResponse{}
	resp.Body.Markers = markers
	if resp.Body.Markers == nil {
		resp.Body.Markers = []models.Marker{}
	}
	return resp, nil
}
