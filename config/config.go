// Package config loads this repository's environment-variable surface
// in one place: each setting comes from its environment variable, or
// from the built-in default given in Load.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the resolved environment for one process. Every field
// corresponds to an env var named in the external interfaces contract;
// processes that don't need a given subsystem simply ignore the
// corresponding fields.
type Config struct {
	// LLM / Ollama-shaped chat+embeddings endpoint.
	LLMURL         string
	LLMModel       string // legacy alias, prefer OllamaBaseURL+LLMURL
	OllamaBaseURL  string

	// Redis-compatible ledger.
	RedisHost string
	RedisPort string

	// External vector store.
	ChromaURL        string
	ChromaBatchSize  int

	// Headless rendering service.
	WebPerceptorURL string

	// Gateway / chat front-end.
	GatewayAddress string
	ChatServerURL  string

	NamespaceVersion string
	DefaultTenant    string

	// Framework extras not named by the external spec but required by
	// the ambient stack.
	LogLevel  string
	LogFormat string
	Debug     bool

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// Load reads Config from the process environment, applying the default
// given next to each variable name below.
func Load() *Config {
	return &Config{
		LLMURL:        getenv("LLM_URL", "http://localhost:11434/api/chat"),
		LLMModel:      getenv("LLM_MODEL", "llama3"),
		OllamaBaseURL: getenv("OLLAMA_BASE_URL", "http://localhost:11434"),

		RedisHost: getenv("REDIS_HOST", "localhost"),
		RedisPort: getenv("REDIS_PORT", "6379"),

		ChromaURL:       getenv("CHROMA_URL", "http://localhost:8000"),
		ChromaBatchSize: getenvInt("CHROMA_BATCH_SIZE", 64),

		WebPerceptorURL: getenv("WEB_PERCEPTOR_URL", "http://localhost:9000/render"),

		GatewayAddress: getenv("GATEWAY_ADDRESS", "http://localhost:8080"),
		ChatServerURL:  getenv("CHAT_SERVER_URL", ""),

		NamespaceVersion: getenv("NAMESPACE_VERSION", "v1"),
		DefaultTenant:    getenv("DEFAULT_TENANT", "default"),

		LogLevel:  getenv("IOA_LOG_LEVEL", "info"),
		LogFormat: getenv("IOA_LOG_FORMAT", "text"),
		Debug:     getenvBool("IOA_DEBUG", false),

		RetryMaxAttempts:  getenvInt("IOA_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getenvDuration("IOA_RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:     getenvDuration("IOA_RETRY_MAX_DELAY", 5*time.Second),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
