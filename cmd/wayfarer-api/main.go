// README: Entry point; loads config, wires services, serves HTTP and drains background work on shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"wayfarer/internal/app"
	"wayfarer/internal/config"
	httptransport "wayfarer/internal/http"
	"wayfarer/internal/infra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	infra.NewLogger(cfg.LogLevel, false)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("firebase init")
		}
	} else {
		log.Warn().Msg("FIREBASE_PROJECT_ID unset; API runs without authentication")
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire services")
	}
	defer a.Close()

	deps := httptransport.ServerDeps{
		Generator:    a.Orchestrator,
		Runs:         a.Runs,
		Quota:        a.Quota,
		Verifier:     verifier,
		MaxPOIPerDay: cfg.AI.MaxPOIPerDay,
	}
	if a.Enricher != nil {
		deps.Enricher = a.Enricher
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.NewServer(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("wayfarer api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server")
	}
	a.Drain()
	log.Info().Msg("wayfarer api stopped")
}
