package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
)

const (
	defaultScoreLimit = 50
	maxScoreLimit     = 500
)

// ScoreReader reads persisted instrument scores
type ScoreReader interface {
	LatestScoreDate(ctx context.Context) (time.Time, bool, error)
	TopScores(ctx context.Context, asOf time.Time, limit int) ([]contracts.Score, error)
}

// ScoreHandler handles score ranking endpoints
type ScoreHandler struct {
	store  ScoreReader
	logger *logger.Logger
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(store ScoreReader, log *logger.Logger) *ScoreHandler {
	return &ScoreHandler{
		store:  store,
		logger: log,
	}
}

// GetScores returns the best total scores of a date (latest scored date by default)
// GET /api/scores?date=2024-06-28&limit=50
func (h *ScoreHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultScoreLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxScoreLimit)
	}

	asOf, err := parseDateParam(r, "date", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if asOf.IsZero() {
		latest, ok, err := h.store.LatestScoreDate(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Failed to get latest score date")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve scores")
			return
		}
		if !ok {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"count":   0,
				"data":    []contracts.Score{},
			})
			return
		}
		asOf = latest
	}

	scores, err := h.store.TopScores(ctx, asOf, limit)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"as_of": asOf.Format(dateLayout),
			"limit": limit,
		}).Error("Failed to get scores")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve scores")
		return
	}
	if scores == nil {
		scores = []contracts.Score{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"as_of":   asOf.Format(dateLayout),
		"count":   len(scores),
		"data":    scores,
	})
}
