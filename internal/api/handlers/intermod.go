package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/imd"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// IntermodHandler computes IMD products on demand
type IntermodHandler struct{}

// NewIntermodHandler creates a new intermod handler
func NewIntermodHandler() *IntermodHandler {
	return &IntermodHandler{}
}

// ComputeIntermod runs the IMD calculation over the submitted zones
func (h *IntermodHandler) ComputeIntermod(ctx context.Context, req *models.IntermodRequest) (*models.IntermodResponse, error) {
	if len(req.Body.Zones) == 0 {
		return nil, huma.Error400BadRequest("At least one zone is required", nil)
	}

	products, err := imd.Products(req.Body.Zones, imd.Options{
		Include3rdOrder:  req.Body.Include3rdOrder,
		Include5thOrder:  req.Body.Include5thOrder,
		IncludeCrossZone: req.Body.IncludeCrossZone,
		InBandLowMHz:     req.Body.InBandLowMHz,
		InBandHighMHz:    req.Body.InBandHighMHz,
	})
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid intermod request", err)
	}

	log.Info().Int("zones", len(req.Body.Zones)).Int("products", len(products)).Msg("intermod computed")

	resp := &models.IntermodResponse{}
	resp.Body.Products = products
	if resp.Body.Products == nil {
		resp.Body.Products = []models.IMDProduct{}
	}
	resp.Body.Count = len(products)
	return resp, nil
}
