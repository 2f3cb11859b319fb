package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

const defaultIndicatorDays = 90

// IndicatorReader reads persisted indicator records
type IndicatorReader interface {
	Indicators(ctx context.Context, code string, from, to time.Time) ([]contracts.IndicatorRecord, error)
}

// IndicatorHandler handles per-instrument indicator endpoints
// ⭐ SSOT: 지표 API 핸들러는 이 구조체에서만
type IndicatorHandler struct {
	store  IndicatorReader
	logger *logger.Logger
	now    func() time.Time
}

// NewIndicatorHandler creates a new indicator handler
func NewIndicatorHandler(store IndicatorReader, log *logger.Logger) *IndicatorHandler {
	return &IndicatorHandler{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// GetIndicators returns the indicator history of an instrument, ascending by date.
// Defaults to the last 90 days.
// GET /api/stocks/{code}/indicators?from=2024-01-01&to=2024-06-28
func (h *IndicatorHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "stock code is required")
		return
	}

	now := h.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to, err := parseDateParam(r, "to", today)
	if err != nil {
		respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	from, err := parseDateParam(r, "from", to.AddDate(0, 0, -defaultIndicatorDays))
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if from.After(to) {
		respondError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	records, err := h.store.Indicators(r.Context(), code, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"code": code,
			"from": from.Format(dateLayout),
			"to":   to.Format(dateLayout),
		}).Error("Failed to get indicators")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve indicators")
		return
	}
	if records == nil {
		records = []contracts.IndicatorRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"code":    code,
		"count":   len(records),
		"data":    records,
	})
}
