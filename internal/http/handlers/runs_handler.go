package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"wayfarer/internal/modules/telemetry"
)

// RunLister reads recent orchestration runs.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]telemetry.Run, error)
}

type RunsHandler struct {
	runs RunLister
}

func NewRunsHandler(runs RunLister) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// List handles GET /api/ai/runs?limit=N.
func (h *RunsHandler) List(c *gin.Context) {
	limit := telemetry.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	limit = telemetry.ClampLimit(limit)

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list orchestration runs")
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []telemetry.Run{}
	}
	writeJSON(c, http.StatusOK, gin.H{"runs": runs, "limit": limit})
}
