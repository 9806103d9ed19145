package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	// EventChannel prefixes the NATS subject and Redis channel for grading events.
	EventChannel string
	JWTSecret    string
	JWTTTL       time.Duration
	CORSOrigins  string

	AIProvider  string
	AIAPIKey    string
	AIBaseURL   string
	AIModel     string
	AINewsModel string
	AITimeout   time.Duration

	// AIInlineDocuments lets the openai provider send the model answer PDF
	// as a data URI. Only gateways that accept documents there work with it.
	AIInlineDocuments bool

	GradingInstruction string
	GradingSessionTTL  time.Duration
	UploadMaxSizeMB    int
	NewsCacheTTL       time.Duration
	DashboardCacheTTL  time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Supported AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Exam Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel", "exam-grader")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.inline_documents", false)
	v.SetDefault("grading.session_ttl", "30m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("news.cache_ttl", "15m")
	v.SetDefault("dashboard.cache_ttl", "1m")
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.ttl", "ai.timeout", "grading.session_ttl", "news.cache_ttl", "dashboard.cache_ttl", "rate_limit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventChannel:       v.GetString("event.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		JWTTTL:             durations["jwt.ttl"],
		CORSOrigins:        v.GetString("cors.origins"),
		AIProvider:         strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AIAPIKey:           v.GetString("ai.api_key"),
		AIBaseURL:          v.GetString("ai.base_url"),
		AIModel:            v.GetString("ai.model"),
		AINewsModel:        v.GetString("ai.news_model"),
		AITimeout:          durations["ai.timeout"],
		AIInlineDocuments:  v.GetBool("ai.inline_documents"),
		GradingInstruction: v.GetString("grading.instruction"),
		GradingSessionTTL:  durations["grading.session_ttl"],
		UploadMaxSizeMB:    v.GetInt("upload.max_size_mb"),
		NewsCacheTTL:       durations["news.cache_ttl"],
		DashboardCacheTTL:  durations["dashboard.cache_ttl"],
		RateLimitRequests:  v.GetInt("rate_limit.requests"),
		RateLimitWindow:    durations["rate_limit.window"],
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.AIProvider {
	case ProviderGemini, ProviderOpenAI:
		if cfg.AIAPIKey == "" {
			return Config{}, fmt.Errorf("ai api key must be provided for provider %q", cfg.AIProvider)
		}
	case ProviderMock:
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.AIProvider == ProviderOpenAI && !cfg.AIInlineDocuments {
		return Config{}, fmt.Errorf("provider %q cannot send the model answer PDF; set GRADER_AI_INLINE_DOCUMENTS=true for a gateway that accepts document data URIs", cfg.AIProvider)
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 120
	}

	return cfg, nil
}
