package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM provider
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// People-search provider
	SearchAPIBase string
	SearchAPIKey  string

	// Scheduler
	TickInterval  time.Duration
	AdvisoryLocks bool
	RunScheduler  bool

	// Notifications
	SlackWebhookURL string
	EmailAPIBase    string
	EmailAPIKey     string
	EmailFrom       string
	ActionURLBase   string
	ActionURLSecret string

	// HTTP server
	ServerPort string
	// APITokens maps bearer tokens to user ids, from
	// LEADLOOP_API_TOKENS="token1:user1,token2:user2".
	APITokens map[string]string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "leadloop"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "sourcing"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("LEADLOOP_LLM_PROVIDER", ProviderOpenAI),
		LLMModel:        getEnv("LEADLOOP_LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		SearchAPIBase: getEnv("LEADLOOP_SEARCH_API_BASE", "https://api.peoplesearch.example/v1"),
		SearchAPIKey:  getEnv("LEADLOOP_SEARCH_API_KEY", ""),

		TickInterval:  getEnvDuration("LEADLOOP_TICK_INTERVAL", 60*time.Second),
		AdvisoryLocks: getEnvBool("LEADLOOP_SCHED_LOCKS", true),
		RunScheduler:  getEnvBool("LEADLOOP_SCHEDULER", true),

		SlackWebhookURL: getEnv("LEADLOOP_SLACK_WEBHOOK", ""),
		EmailAPIBase:    getEnv("LEADLOOP_EMAIL_API_BASE", ""),
		EmailAPIKey:     getEnv("LEADLOOP_EMAIL_API_KEY", ""),
		EmailFrom:       getEnv("LEADLOOP_EMAIL_FROM", "notifications@leadloop.local"),
		ActionURLBase:   getEnv("LEADLOOP_ACTION_URL_BASE", "http://localhost:8486"),
		ActionURLSecret: getEnv("LEADLOOP_ACTION_URL_SECRET", ""),

		ServerPort: getEnv("LEADLOOP_SERVER_PORT", "8486"),
		APITokens:  parseTokenMap(getEnv("LEADLOOP_API_TOKENS", "")),

		LogFile:  getEnv("LEADLOOP_LOG_FILE", "/tmp/leadloop.log"),
		LogLevel: parseLogLevel(getEnv("LEADLOOP_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseTokenMap(s string) map[string]string {
	tokens := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		token, user, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || user == "" {
			continue
		}
		tokens[token] = user
	}
	return tokens
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
