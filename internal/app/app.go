// README: Dependency wiring shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"wayfarer/internal/ai"
	"wayfarer/internal/config"
	"wayfarer/internal/infra"
	"wayfarer/internal/maps"
	"wayfarer/internal/modules/aicache"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/telemetry"
	"wayfarer/internal/service"
)

const (
	memoryRunCapacity = 500
	localCacheCleanup = 10 * time.Minute

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrNoProviders is returned when neither model provider has credentials.
var ErrNoProviders = errors.New("no AI provider configured: set GEMINI_API_KEY or OPENAI_API_KEY")

// App holds the long-lived services. Close releases them after Drain.
type App struct {
	Orchestrator *service.ItineraryOrchestrator
	// Enricher is nil when GOOGLE_MAPS_API_KEY is unset.
	Enricher *service.POIEnricher
	Runs     *telemetry.Sink
	Quota    aiusage.Quota
	DB       *pgxpool.Pool

	closers []io.Closer
	redis   *redis.Client
}

// Build wires storage, cache, providers and services from cfg. Postgres and
// Redis are optional; without them runs stay in memory, quota is unlimited and
// only the local cache tier is used.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Quota: aiusage.Unlimited{}}

	primary, fallback, closers, err := Providers(ctx, cfg.AI)
	a.closers = append(a.closers, closers...)
	if err != nil {
		a.Close()
		return nil, err
	}

	var store telemetry.Store = telemetry.NewMemoryStore(memoryRunCapacity)
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.DB = pool
		store = telemetry.NewPostgresStore(pool)
		a.Quota = aiusage.NewService(aiusage.NewStore(pool, cfg.AI.MonthlyQuota))
	} else {
		log.Warn().Msg("WAYFARER_DB_DSN unset; runs kept in memory and quota disabled")
	}
	a.Runs = telemetry.NewSink(store)

	var shared aicache.Tier
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			// The shared tier is an optimisation; run without it.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable; shared cache tier disabled")
		} else {
			a.redis = client
			shared = aicache.NewRedisTier(client)
		}
	}
	cache := aicache.NewService(
		aicache.NewLocalTier(cfg.AI.LocalCacheTTL, localCacheCleanup),
		shared,
		cfg.AI.LocalCacheTTL,
		cfg.AI.RedisCacheTTL,
	)

	a.Orchestrator = service.NewItineraryOrchestrator(primary, fallback, cache, a.Runs, service.OrchestratorOptions{
		RetryTransportErrors: cfg.AI.RetryTransport,
	})

	if cfg.Maps.APIKey != "" {
		places, err := maps.NewPlacesService(cfg.Maps.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("maps client: %w", err)
		}
		a.Enricher = service.NewPOIEnricher(places, cfg.AI.EnrichRadiusM)
	}
	return a, nil
}

// Providers builds the primary and fallback providers. The configured primary
// goes first and the other vendor, when it has a key, becomes the fallback.
func Providers(ctx context.Context, cfg config.AIConfig) (primary, fallback ai.Provider, closers []io.Closer, err error) {
	var gemini, openai ai.Provider
	if cfg.Gemini.APIKey != "" {
		p, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.CallTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		gemini = p
		closers = append(closers, p)
	}
	if cfg.OpenAI.APIKey != "" {
		p, err := ai.NewChatGPTProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.CallTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		openai = p
	}

	switch cfg.Primary {
	case ProviderOpenAI:
		primary, fallback = openai, gemini
	case ProviderGemini, "":
		primary, fallback = gemini, openai
	default:
		return nil, nil, closers, fmt.Errorf("unknown AI_PRIMARY_PROVIDER %q", cfg.Primary)
	}
	if primary == nil {
		primary, fallback = fallback, nil
	}
	if primary == nil {
		return nil, nil, closers, ErrNoProviders
	}
	return primary, fallback, closers, nil
}

// Drain waits for detached cache writes and telemetry inserts.
func (a *App) Drain() {
	if a.Orchestrator != nil {
		a.Orchestrator.Wait()
	}
	a.Runs.Wait()
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close provider")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
