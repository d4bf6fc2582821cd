package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Gemini API
	GeminiAPIKey          string
	GeminiAPIEndpoint     string // if set, overrides the default Gemini API base URL
	GeminiModel           string
	GeminiModelPriority   []string // candidate models probed at startup, best first
	ProbeModels           bool
	GeminiTemperature     float64
	GeminiTopP            float64
	GeminiMaxOutputTokens int
	SystemPrompt          string

	// Completion
	MaxContextChars     int
	MaxContextTurns     int
	RequestTimeout      time.Duration
	CompleteMaxAttempts int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	RetryJitter         float64

	// Orchestration
	MaxConcurrentRequests int64
	ReplyChunkChars       int

	// Scratch assets
	ScratchDir      string
	AssetTTL        time.Duration
	ReclaimInterval time.Duration

	// History
	HistoryDBPath   string
	HistoryTTL      time.Duration
	HistoryDisabled bool

	// Rendering
	FontDir      string
	FontRegular  string
	FontBold     string
	CanvasWidth  int
	CanvasHeight int
	FontSize     float64
	MinFontSize  float64
	LineSpacing  float64
	Margin       int
	MaxLines     int

	// S3 archive (optional; disabled when bucket is empty)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	// Service auth (optional; bcrypt hash of the bearer key)
	ServiceAPIKeyHash string
}

// Load loads configuration from environment variables
func Load() *Config {
	scratch := getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "geminiduck"))

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiModelPriority: getEnvList("GEMINI_MODEL_PRIORITY", []string{
			"gemini-3.0-flash-latest",
			"gemini-2.5-flash",
			"gemini-2.0-flash",
			"gemini-1.5-flash-latest",
			"gemini-1.5-pro-latest",
		}),
		ProbeModels:           getEnvBool("PROBE_MODELS", true),
		GeminiTemperature:     getEnvFloat("GEMINI_TEMPERATURE", 0.7),
		GeminiTopP:            getEnvFloat("GEMINI_TOP_P", 0.9),
		GeminiMaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 4000),
		SystemPrompt:          getEnv("SYSTEM_PROMPT", ""),

		MaxContextChars:     getEnvInt("MAX_CONTEXT_CHARS", 6000),
		MaxContextTurns:     getEnvInt("MAX_CONTEXT_TURNS", 6),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 90*time.Second),
		CompleteMaxAttempts: clampMin(getEnvInt("COMPLETE_MAX_ATTEMPTS", 4), 1),
		RetryBaseDelay:      getEnvDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:       getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		RetryJitter:         getEnvFloat("RETRY_JITTER", 0.2),

		MaxConcurrentRequests: int64(clampMin(getEnvInt("MAX_CONCURRENT_REQUESTS", 4), 1)),
		ReplyChunkChars:       clampMin(getEnvInt("REPLY_CHUNK_CHARS", 500), 1),

		ScratchDir:      scratch,
		AssetTTL:        getEnvDuration("ASSET_TTL", time.Hour),
		ReclaimInterval: getEnvDuration("RECLAIM_INTERVAL", 30*time.Minute),

		HistoryDBPath:   getEnv("HISTORY_DB_PATH", filepath.Join(scratch, "history.db")),
		HistoryTTL:      getEnvDuration("HISTORY_TTL", 7*24*time.Hour),
		HistoryDisabled: getEnvBool("HISTORY_DISABLED", false),

		FontDir:      getEnv("FONT_DIR", "/usr/share/fonts/truetype/dejavu"),
		FontRegular:  getEnv("FONT_REGULAR", "DejaVuSans.ttf"),
		FontBold:     getEnv("FONT_BOLD", "DejaVuSans-Bold.ttf"),
		CanvasWidth:  getEnvInt("CANVAS_WIDTH", 1024),
		CanvasHeight: getEnvInt("CANVAS_HEIGHT", 1280),
		FontSize:     getEnvFloat("FONT_SIZE", 28),
		MinFontSize:  getEnvFloat("MIN_FONT_SIZE", 14),
		LineSpacing:  getEnvFloat("LINE_SPACING", 1.4),
		Margin:       getEnvInt("MARGIN", 48),
		MaxLines:     getEnvInt("MAX_LINES", 200),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		ServiceAPIKeyHash: getEnv("SERVICE_API_KEY_HASH", ""),
	}
}

// Validate checks settings the process cannot run without.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.ScratchDir == "" {
		return fmt.Errorf("SCRATCH_DIR must not be empty")
	}
	if c.MinFontSize > c.FontSize {
		return fmt.Errorf("MIN_FONT_SIZE (%v) exceeds FONT_SIZE (%v)", c.MinFontSize, c.FontSize)
	}
	return nil
}

// ArchiveEnabled reports whether rendered assets should be mirrored to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
