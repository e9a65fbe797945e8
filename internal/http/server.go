// README: API gateway; registers gin routes and delegates to the itinerary services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wayfarer/internal/http/handlers"
	"wayfarer/internal/http/middleware"
	"wayfarer/internal/infra"
	"wayfarer/internal/modules/aiusage"
)

// AdminRole is the role claim required for operator endpoints.
const AdminRole = "admin"

type ServerDeps struct {
	Generator handlers.ItineraryGenerator
	// Enricher may be nil when POI lookups are not configured.
	Enricher handlers.ItineraryEnricher
	Runs     handlers.RunLister
	Quota    aiusage.Quota
	// Verifier may be nil to run without authentication.
	Verifier     infra.TokenVerifier
	MaxPOIPerDay int
}

type Server struct {
	itinerary *handlers.ItineraryHandler
	runs      *handlers.RunsHandler
	verifier  infra.TokenVerifier
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		itinerary: handlers.NewItineraryHandler(deps.Generator, deps.Enricher, deps.Quota, deps.MaxPOIPerDay),
		runs:      handlers.NewRunsHandler(deps.Runs),
		verifier:  deps.Verifier,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/ai", middleware.Auth(s.verifier))
	api.POST("/itinerary/preview", s.itinerary.Preview)
	api.POST("/itinerary/enrich", s.itinerary.Enrich)
	api.GET("/runs", middleware.RequireRole(AdminRole), s.runs.List)
	return r
}
