package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// LLM providers
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIRouterModel string
	EmbeddingModel    string
	AWSRegion         string
	BedrockModelID    string

	// Speech providers
	DeepgramAPIKey     string
	DeepgramModel      string
	ElevenLabsAPIKey   string
	ElevenLabsVoiceID  string
	TelephonyAuthToken string

	// Audio tuning. These are empirically tuned and exposed as configuration
	// rather than fixed constants.
	FrameDurationMS    int
	SampleRate         int
	VADEnergyThreshold float64
	VADDebounceFrames  int
	SilenceGap         time.Duration

	// Latency budgets
	STTConnectTimeout time.Duration
	RetrievalTimeout  time.Duration
	TurnBudget        time.Duration

	// Retrieval shaping
	RetrievalTopK       int
	RetrievalCharBudget int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRouterModel: getEnv("OPENAI_ROUTER_MODEL", "gpt-4o-mini"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),

		DeepgramAPIKey:     getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:      getEnv("DEEPGRAM_MODEL", "nova-2"),
		ElevenLabsAPIKey:   getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:  getEnv("ELEVENLABS_VOICE_ID", ""),
		TelephonyAuthToken: getEnv("TELEPHONY_AUTH_TOKEN", ""),

		FrameDurationMS:    getEnvAsInt("FRAME_DURATION_MS", 20),
		SampleRate:         getEnvAsInt("SAMPLE_RATE", 8000),
		VADEnergyThreshold: getEnvAsFloat("VAD_ENERGY_THRESHOLD", 0.02),
		VADDebounceFrames:  getEnvAsInt("VAD_DEBOUNCE_FRAMES", 3),
		SilenceGap:         getEnvAsDuration("SILENCE_GAP", 1500*time.Millisecond),

		STTConnectTimeout: getEnvAsDuration("STT_CONNECT_TIMEOUT", 5*time.Second),
		RetrievalTimeout:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 500*time.Millisecond),
		TurnBudget:        getEnvAsDuration("TURN_BUDGET", 6*time.Second),

		RetrievalTopK:       getEnvAsInt("RETRIEVAL_TOP_K", 3),
		RetrievalCharBudget: getEnvAsInt("RETRIEVAL_CHAR_BUDGET", 1200),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
