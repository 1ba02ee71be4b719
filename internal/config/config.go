package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Executor backends.
const (
	ExecutorBrowser = "browser"
	ExecutorWorker  = "worker"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// PipelineConfig groups the knobs driving the outreach pipeline itself.
type PipelineConfig struct {
	DiscoveryURL    string
	MaxPages        int
	Lanes           int
	MaxRetries      int
	ActionDelay     time.Duration
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
	PendingLimit    int
}

// ContactConfig holds the sender details embedded in outgoing messages.
type ContactConfig struct {
	Name     string
	Company  string
	LinkedIn string
	WhatsApp string
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	Port            string
	TokenTTL        time.Duration
	RateLimitRuns   RateLimitConfig
	Pipeline        PipelineConfig
	Contact         ContactConfig
	Executor        string
	WorkerBaseURL   string
	CookiesFile     string
	Headless        bool
	AnthropicAPIKey string
	ClaudeModel     string
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		Port:            getEnv("PORT", "8080"),
		TokenTTL:        parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour),
		Executor:        strings.ToLower(getEnv("EXECUTOR", "browser")),
		WorkerBaseURL:   getEnv("WORKER_BASE_URL", "http://worker:9000"),
		CookiesFile:     getEnv("COOKIES_FILE", "cookies.json"),
		Headless:        parseBool(getEnv("HEADLESS", "true")),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:     getEnv("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		Pipeline: PipelineConfig{
			DiscoveryURL:    getEnv("DISCOVERY_URL", "https://attend.websummit.com/lis25/discovery?active_tab=attendances"),
			MaxPages:        parseInt(getEnv("MAX_PAGES", "200"), 200),
			Lanes:           parseInt(getEnv("LANES", "5"), 5),
			MaxRetries:      parseInt(getEnv("MAX_RETRIES", "3"), 3),
			ActionDelay:     parseDuration(getEnv("ACTION_DELAY", "3s"), 3*time.Second),
			RetryBaseDelay:  parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
			RetryMultiplier: parseFloat(getEnv("RETRY_MULTIPLIER", "2"), 2),
			PendingLimit:    parseInt(getEnv("PENDING_LIMIT", "0"), 0),
		},
		Contact: ContactConfig{
			Name:     getEnv("CONTACT_NAME", ""),
			Company:  getEnv("CONTACT_COMPANY", ""),
			LinkedIn: getEnv("CONTACT_LINKEDIN", ""),
			WhatsApp: getEnv("CONTACT_WHATSAPP", ""),
		},
	}

	if cfg.Executor != ExecutorBrowser && cfg.Executor != ExecutorWorker {
		return nil, fmt.Errorf("invalid EXECUTOR value: %q (want browser or worker)", cfg.Executor)
	}
	if cfg.Pipeline.Lanes <= 0 {
		return nil, fmt.Errorf("LANES must be positive, got %d", cfg.Pipeline.Lanes)
	}
	if cfg.Pipeline.MaxRetries <= 0 {
		return nil, fmt.Errorf("MAX_RETRIES must be positive, got %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.RetryMultiplier < 1 {
		return nil, fmt.Errorf("RETRY_MULTIPLIER must be >= 1, got %v", cfg.Pipeline.RetryMultiplier)
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_RUNS", "5/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RUNS value: %w", err)
	}
	cfg.RateLimitRuns = rl

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(input string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(input string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(input string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(input))
	if err != nil {
		return true
	}
	return b
}
