package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	// Patient directory
	DatabaseURL   string
	PatientsFile  string
	PatientsWatch bool

	// Language generation and embeddings
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIChatModel      string
	OpenAIEmbeddingModel string

	// Document retriever
	ChromaURL        string
	ChromaCollection string
	DocsDir          string
	RetrieverTopK    int
	EvidenceMaxChars int

	// Web search
	TavilyAPIKey  string
	TavilyBaseURL string
	RedisAddr     string
	RedisPassword string
	WebCacheTTL   time.Duration

	// Turn handling
	CallTimeout  time.Duration
	NameTriggers []string

	// Audit
	AuditLogFile       string
	AuditNotifyChannel string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		PatientsFile:  getEnv("PATIENTS_FILE", "data/patients.json"),
		PatientsWatch: getEnvAsBool("PATIENTS_WATCH", true),

		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAIChatModel:      getEnv("OPENAI_MODEL_CHAT", "gpt-4o-mini"),
		OpenAIEmbeddingModel: getEnv("OPENAI_MODEL_EMBEDDING", "text-embedding-3-small"),

		ChromaURL:        getEnv("CHROMA_URL", ""),
		ChromaCollection: getEnv("CHROMA_COLLECTION", "nephrology"),
		DocsDir:          getEnv("DOCS_DIR", ""),
		RetrieverTopK:    getEnvAsPositiveInt("RETRIEVER_TOP_K", 3),
		EvidenceMaxChars: getEnvAsPositiveInt("EVIDENCE_MAX_CHARS", 800),

		TavilyAPIKey:  getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL: getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		WebCacheTTL:   getEnvAsDuration("WEB_CACHE_TTL", time.Hour),

		CallTimeout:  getEnvAsDuration("CALL_TIMEOUT", 30*time.Second),
		NameTriggers: getEnvAsList("NAME_TRIGGERS", []string{"john", "doe", "smith", "name"}),

		AuditLogFile:       getEnv("AUDIT_LOG_FILE", "logs/system.log"),
		AuditNotifyChannel: getEnv("AUDIT_NOTIFY_CHANNEL", "audit_events"),
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

// getEnvAsPositiveInt is getEnvAsInt that also rejects zero and negatives.
func getEnvAsPositiveInt(key string, defaultValue int) int {
	if value := getEnvAsInt(key, defaultValue); value > 0 {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
