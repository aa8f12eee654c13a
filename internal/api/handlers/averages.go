package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/stats"
	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// AveragesHandler runs the averaging engine over stored scans
type AveragesHandler struct {
	scans *store.ScanStore
}

// NewAveragesHandler creates a new averages handler
func NewAveragesHandler(scans *store.ScanStore) *AveragesHandler {
	return &AveragesHandler{scans: scans}
}

// ComputeAverages aggregates the named scan files and writes the result CSVs
func (h *AveragesHandler) ComputeAverages(ctx context.Context, req *models.AverageRequest) (*models.AverageResponse, error) {
	paths := make([]string, 0, len(req.Body.Files))
	for _, name := range req.Body.Files {
		p, err := h.scans.Path(name)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid scan file name", err)
		}
		paths = append(paths, p)
	}

	res, outDir, err := stats.AverageScans(paths, req.Body.Statistics, req.Body.Prefix, h.scans.Dir(), log.Logger)
	if err != nil {
		return nil, huma.Error400BadRequest("Averaging failed", err)
	}

	log.Info().Int("files", len(paths)).Int("points", len(res.Frequencies)).Str("out_dir", outDir).
		Msg("averaging run complete")

	resp := &models.AverageResponse{}
	resp.Body.OutputDir = outDir
	resp.Body.Statistics = res.Order
	resp.Body.Points = len(res.Frequencies)
	return resp, nil
}
