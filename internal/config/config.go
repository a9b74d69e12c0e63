// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot credentials,
// chat scoping, answer timing, rate limiting, storage paths, the completion
// backend, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-question-relay")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig defines the text-completion backend settings.
type LLMConfig struct {
	Endpoint    string        // LLM_ENDPOINT (defaults to the Yandex foundation-models API)
	IAMToken    string        // IAM_TOKEN
	FolderID    string        // FOLDER_ID
	Model       string        // LLM_MODEL (e.g. "yandexgpt")
	Temperature float64       // LLM_TEMPERATURE in [0..1]
	MaxTokens   int           // LLM_MAX_TOKENS
	Timeout     time.Duration // LLM_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Bot
	BotToken       string // BOT_TOKEN
	AllowedChatID  int64  // ALLOWED_CHAT_ID (required)
	AllowedTopicID int64  // ALLOWED_TOPIC_ID
	PollTimeout    time.Duration

	// Answer timing and limits
	ResponseDelay       time.Duration // grace period before the automated answer
	CleanupInterval     time.Duration // how often aged questions are purged
	RetentionHorizon    time.Duration // age beyond which questions are purged
	MaxQuestionsPerUser int

	// Storage
	DBPath           string // SQLite path
	SystemPromptPath string // system prompt file, falls back to a built-in prompt
	QuestionLogPath  string // append-only question audit file
	FeedbackLogPath  string // append-only feedback audit file

	// Admin HTTP server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Outgoing Bot API pacing
	SendRPS   float64 // tokens per second (>= 0)
	SendBurst int     // bucket size (>= 1)

	// Collaborators
	LLM  LLMConfig
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Bot
		BotToken:       getenv("BOT_TOKEN", ""),
		AllowedChatID:  getint64("ALLOWED_CHAT_ID", 0),
		AllowedTopicID: getint64("ALLOWED_TOPIC_ID", 2),
		PollTimeout:    getdur("POLL_TIMEOUT", 30*time.Second),

		// Answer timing and limits
		ResponseDelay:       getdur("RESPONSE_DELAY", 5*time.Minute),
		CleanupInterval:     getdur("CLEANUP_INTERVAL", 24*time.Hour),
		RetentionHorizon:    getdur("RETENTION_HORIZON", 7*24*time.Hour),
		MaxQuestionsPerUser: getint("MAX_QUESTIONS_PER_USER", 50),

		// Storage
		DBPath:           getenv("DB_PATH", "questions.db"),
		SystemPromptPath: getenv("SYSTEM_PROMPT_PATH", "system_prompt.txt"),
		QuestionLogPath:  getenv("QUESTION_LOG_PATH", "questions_log.txt"),
		FeedbackLogPath:  getenv("FEEDBACK_LOG_PATH", "feedback_log.txt"),

		// Admin HTTP server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Outgoing Bot API pacing
		SendRPS:   getfloat("SEND_RPS", 20.0),
		SendBurst: getint("SEND_BURST", 5),

		// Completion backend
		LLM: LLMConfig{
			Endpoint:    getenv("LLM_ENDPOINT", ""),
			IAMToken:    getenv("IAM_TOKEN", ""),
			FolderID:    getenv("FOLDER_ID", ""),
			Model:       getenv("LLM_MODEL", "yandexgpt"),
			Temperature: getfloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   getint("LLM_MAX_TOKENS", 1000),
			Timeout:     getdur("LLM_TIMEOUT", 60*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-question-relay"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.AllowedChatID == 0 {
		return cfg, errors.New("ALLOWED_CHAT_ID must be set")
	}
	if cfg.ResponseDelay <= 0 {
		return cfg, errors.New("RESPONSE_DELAY must be > 0")
	}
	if cfg.CleanupInterval <= 0 {
		return cfg, errors.New("CLEANUP_INTERVAL must be > 0")
	}
	if cfg.RetentionHorizon <= 0 {
		return cfg, errors.New("RETENTION_HORIZON must be > 0")
	}
	if cfg.MaxQuestionsPerUser < 1 {
		return cfg, errors.New("MAX_QUESTIONS_PER_USER must be >= 1")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.SendRPS < 0 {
		return cfg, errors.New("SEND_RPS must be >= 0")
	}
	if cfg.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		return cfg, errors.New("LLM_TEMPERATURE must be between 0 and 1")
	}
	if cfg.LLM.MaxTokens < 1 {
		return cfg, errors.New("LLM_MAX_TOKENS must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
