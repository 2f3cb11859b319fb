package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

// SectorReader reads the persisted sector snapshot
type SectorReader interface {
	SectorMetrics(ctx context.Context) ([]contracts.SectorMetrics, error)
}

// SectorHandler handles sector API endpoints
// ⭐ SSOT: 섹터 API 핸들러는 이 구조체에서만
type SectorHandler struct {
	store  SectorReader
	logger *logger.Logger
}

// NewSectorHandler creates a new sector handler
func NewSectorHandler(store SectorReader, log *logger.Logger) *SectorHandler {
	return &SectorHandler{
		store:  store,
		logger: log,
	}
}

// GetSectors returns the latest metrics of every scored sector, best score first
// GET /api/sectors
func (h *SectorHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.SectorMetrics(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sector metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve sectors")
		return
	}
	if metrics == nil {
		metrics = []contracts.SectorMetrics{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(metrics),
		"data":    metrics,
	})
}
