// README: Itinerary preview and POI enrichment handlers (quota-guarded).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"wayfarer/internal/http/middleware"
	"wayfarer/internal/itinerary"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/service"
)

// ItineraryGenerator produces validated itineraries.
type ItineraryGenerator interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
}

// ItineraryEnricher attaches places to activities.
type ItineraryEnricher interface {
	Enrich(ctx context.Context, g *itinerary.GeneratedItinerary, opts service.EnrichOptions) (service.EnrichReport, error)
}

type ItineraryHandler struct {
	generator    ItineraryGenerator
	enricher     ItineraryEnricher
	quota        aiusage.Quota
	maxPOIPerDay int
}

// NewItineraryHandler wires the handler. enricher may be nil when no maps key is configured.
func NewItineraryHandler(generator ItineraryGenerator, enricher ItineraryEnricher, quota aiusage.Quota, maxPOIPerDay int) *ItineraryHandler {
	if quota == nil {
		quota = aiusage.Unlimited{}
	}
	return &ItineraryHandler{generator: generator, enricher: enricher, quota: quota, maxPOIPerDay: maxPOIPerDay}
}

type previewReq struct {
	Prompt       string `json:"prompt" binding:"required,max=8000"`
	CurrencyHint string `json:"currencyHint" binding:"omitempty,max=8"`
	TaskType     string `json:"taskType" binding:"omitempty,max=64"`
	TripID       string `json:"tripId" binding:"omitempty,max=64"`
	Enrich       bool   `json:"enrich"`
	Destination  string `json:"destination" binding:"omitempty,max=200"`
	MaxPOIPerDay *int   `json:"maxPoiPerDay" binding:"omitempty,gte=0,lte=20"`
}

type previewResp struct {
	*service.GenerateResult
	Enrichment *service.EnrichReport `json:"enrichment,omitempty"`
}

// Preview handles POST /api/ai/itinerary/preview.
func (h *ItineraryHandler) Preview(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	var req previewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		writeError(c, http.StatusBadRequest, "missing prompt")
		return
	}
	if req.TripID != "" && !isValidID(req.TripID) {
		writeError(c, http.StatusBadRequest, "invalid tripId")
		return
	}

	ctx := c.Request.Context()
	uid := middleware.CallerUID(c)
	if err := h.quota.UseToken(ctx, uid); err != nil {
		if !errors.Is(err, aiusage.ErrInsufficientTokens) {
			log.Error().Err(err).Str("request_id", requestID).Str("uid", uid).Msg("quota check failed")
		}
		writeGenerationError(c, requestID, err)
		return
	}

	res, err := h.generator.Generate(ctx, service.GenerateRequest{
		RequestID:    requestID,
		UserID:       uid,
		TripID:       req.TripID,
		Prompt:       req.Prompt,
		CurrencyHint: req.CurrencyHint,
		TaskType:     req.TaskType,
	})
	if err != nil {
		// Failed generations do not count against the allowance.
		if rerr := h.quota.Refund(context.WithoutCancel(ctx), uid); rerr != nil {
			log.Warn().Err(rerr).Str("request_id", requestID).Str("uid", uid).Msg("quota refund failed")
		}
		writeGenerationError(c, requestID, err)
		return
	}

	resp := previewResp{GenerateResult: res}
	if req.Enrich && h.enricher != nil {
		report, err := h.enricher.Enrich(ctx, res.Itinerary, service.EnrichOptions{
			Destination: req.Destination,
			MaxPerDay:   h.capFor(req.MaxPOIPerDay),
		})
		if err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("poi enrichment interrupted")
		}
		resp.Enrichment = &report
	}
	writeJSON(c, http.StatusOK, resp)
}

type enrichReq struct {
	Itinerary    *itinerary.GeneratedItinerary `json:"itinerary" binding:"required"`
	Destination  string                        `json:"destination" binding:"omitempty,max=200"`
	MaxPOIPerDay *int                          `json:"maxPoiPerDay" binding:"omitempty,gte=0,lte=20"`
	WithDetails  bool                          `json:"withDetails"`
}

type enrichResp struct {
	Itinerary  *itinerary.GeneratedItinerary `json:"itinerary"`
	Enrichment service.EnrichReport          `json:"enrichment"`
}

// Enrich handles POST /api/ai/itinerary/enrich.
func (h *ItineraryHandler) Enrich(c *gin.Context) {
	if h.enricher == nil {
		writeError(c, http.StatusServiceUnavailable, "poi enrichment is not configured")
		return
	}
	var req enrichReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Itinerary.Days) == 0 {
		writeError(c, http.StatusBadRequest, "itinerary has no days")
		return
	}

	report, err := h.enricher.Enrich(c.Request.Context(), req.Itinerary, service.EnrichOptions{
		Destination: req.Destination,
		MaxPerDay:   h.capFor(req.MaxPOIPerDay),
		WithDetails: req.WithDetails,
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("poi enrichment interrupted")
	}
	writeJSON(c, http.StatusOK, enrichResp{Itinerary: req.Itinerary, Enrichment: report})
}

func (h *ItineraryHandler) capFor(requested *int) int {
	if requested != nil {
		return *requested
	}
	return h.maxPOIPerDay
}
