// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsAddr string
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Provider string // "memory" or "mongo"
	MongoURI string
	Database string
}

// AgentConfig configures the upstream voice-agent connection.
type AgentConfig struct {
	Provider           string // "mock" or "deepgram"
	URL                string
	APIKey             string
	ListenModel        string
	SpeakVoice         string
	Language           string
	InputSampleRateHz  int
	OutputSampleRateHz int
}

// LLMConfig configures the OpenAI-compatible chat endpoint used for the
// agent's think step and for text-practice feedback.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// ThinkURL is the externally reachable URL of this service's
	// /v1/llm/think endpoint, handed to the upstream agent.
	ThinkURL string
}

// RankerConfig configures the optional semantic re-ranking collaborator.
// The timeout is a hard budget: on expiry the retrieval engine falls back
// to keyword ordering instead of waiting.
type RankerConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RetrievalConfig tunes the context retrieval engine.
type RetrievalConfig struct {
	CacheSize    int
	DefaultLimit int
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicTurns    string
	TopicSessions string
	Principal     string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel string
}

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Store         StoreConfig
	Agent         AgentConfig
	LLM           LLMConfig
	Ranker        RankerConfig
	Retrieval     RetrievalConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset or unparsable.
func Load() *Configuration {
	cfg := &Configuration{
		Service: ServiceConfig{
			Principal:   envOrDefault("SERVICE_PRINCIPAL", "svc-practice-session"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		Store: StoreConfig{
			Provider: envOrDefault("STORE_PROVIDER", "memory"),
			MongoURI: envOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
			Database: envOrDefault("DATABASE_NAME", "practice"),
		},
		Agent: AgentConfig{
			Provider:           envOrDefault("AGENT_PROVIDER", "mock"),
			URL:                envOrDefault("AGENT_URL", "wss://agent.deepgram.com/v1/agent/converse"),
			APIKey:             envOrDefault("AGENT_API_KEY", ""),
			ListenModel:        envOrDefault("AGENT_LISTEN_MODEL", "nova-3"),
			SpeakVoice:         envOrDefault("AGENT_SPEAK_VOICE", "aura-2-thalia-en"),
			Language:           envOrDefault("AGENT_LANGUAGE", "en"),
			InputSampleRateHz:  envOrDefaultInt("AGENT_INPUT_SAMPLE_RATE_HZ", 16000),
			OutputSampleRateHz: envOrDefaultInt("AGENT_OUTPUT_SAMPLE_RATE_HZ", 24000),
		},
		LLM: LLMConfig{
			BaseURL:     envOrDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:      envOrDefault("LLM_API_KEY", ""),
			Model:       envOrDefault("LLM_MODEL", "llama-3.3-70b-versatile"),
			Temperature: envOrDefaultFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:   envOrDefaultInt("LLM_MAX_TOKENS", 1024),
			ThinkURL:    envOrDefault("LLM_THINK_URL", ""),
		},
		Ranker: RankerConfig{
			Enabled: envOrDefaultBool("RANKER_ENABLED", false),
			BaseURL: envOrDefault("RANKER_BASE_URL", ""),
			APIKey:  envOrDefault("RANKER_API_KEY", ""),
			Model:   envOrDefault("RANKER_MODEL", ""),
			Timeout: envOrDefaultDuration("RANKER_TIMEOUT", 2*time.Second),
		},
		Retrieval: RetrievalConfig{
			CacheSize:    envOrDefaultInt("RETRIEVAL_CACHE_SIZE", 256),
			DefaultLimit: envOrDefaultInt("RETRIEVAL_DEFAULT_LIMIT", 3),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicTurns:    envOrDefault("KAFKA_TOPIC_TURNS", "practice.turn.final"),
			TopicSessions: envOrDefault("KAFKA_TOPIC_SESSIONS", "practice.session.completed"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}

	// Kafka principal falls back to the service principal.
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
