// README: Config loader with env defaults for HTTP, storage, providers, cache and auth settings.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AIConfig struct {
	Primary        string
	Gemini         ProviderConfig
	OpenAI         ProviderConfig
	CallTimeout    time.Duration
	LocalCacheTTL  time.Duration
	RedisCacheTTL  time.Duration
	RetryTransport bool
	MonthlyQuota   int
	MaxPOIPerDay   int
	EnrichRadiusM  uint
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	AI   AIConfig
	Maps struct {
		APIKey string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	LogLevel string
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("WAYFARER_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("WAYFARER_DB_DSN")
	cfg.Redis.Addr = os.Getenv("WAYFARER_REDIS_ADDR")

	cfg.AI.Primary = strings.ToLower(envOrDefault("AI_PRIMARY_PROVIDER", "gemini"))
	cfg.AI.Gemini = ProviderConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
	}
	cfg.AI.OpenAI = ProviderConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	cfg.AI.CallTimeout = envOrDefaultSeconds("AI_CALL_TIMEOUT_SECONDS", 30)
	cfg.AI.LocalCacheTTL = envOrDefaultSeconds("AI_CACHE_LOCAL_TTL_SECONDS", 900)
	cfg.AI.RedisCacheTTL = envOrDefaultSeconds("AI_CACHE_REDIS_TTL_SECONDS", 900)
	cfg.AI.RetryTransport = envOrDefaultBool("AI_RETRY_TRANSPORT_ERRORS", false)
	cfg.AI.MonthlyQuota = envOrDefaultInt("AI_MONTHLY_QUOTA", 100)
	cfg.AI.MaxPOIPerDay = envOrDefaultInt("AI_ENRICH_MAX_POI_PER_DAY", 0)
	cfg.AI.EnrichRadiusM = uint(envOrDefaultInt("AI_ENRICH_RADIUS_METERS", 5000))

	cfg.Maps.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	cfg.Firebase.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("FIREBASE_CREDENTIALS_FILE")
	cfg.LogLevel = envOrDefault("LOG_LEVEL", "info")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultSeconds(key string, def int) time.Duration {
	return time.Duration(envOrDefaultInt(key, def)) * time.Second
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
