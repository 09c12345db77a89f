// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/onepager/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for databases (always absolute)
	OutDir  string // Directory for generated memo/screen Markdown files

	Port     int
	DevMode  bool
	LogLevel string

	// SEC EDGAR access. The SEC requires a declared User-Agent with contact
	// information on every request.
	SECUserAgent    string
	SECMaxPerSecond int

	// Generative text collaborator
	AnthropicAPIKey   string
	GeminiAPIKey      string
	TextGenModel      string
	TextGenMaxPerMin  int
	TextGenMaxRetries int

	// Screener defaults
	ScreenUniverse    []string
	ScreenMinFCFYield float64
	ScreenMinROIC     float64
	ScreenSchedule    string
	CleanupSchedule   string
	SnapshotTTLHours  int

	// Optional S3 archive for generated documents. Empty bucket disables it.
	ArchiveBucket    string
	ArchiveRegion    string
	ArchivePrefix    string
	ArchiveAccessKey string
	ArchiveSecretKey string
}

// DefaultUniverse is the screen universe used when SCREEN_UNIVERSE is unset.
var DefaultUniverse = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META", "JPM", "BRK-B", "JNJ", "PG", "XOM"}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ONEPAGER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	outDir := getEnv("ONEPAGER_OUT_DIR", "")
	if outDir == "" {
		outDir = "out"
	}
	absOutDir, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	if err := os.MkdirAll(absOutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		OutDir:   absOutDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SECUserAgent:    getEnv("SEC_USER_AGENT", "onepager/1.0 research@localhost"),
		SECMaxPerSecond: getEnvAsInt("SEC_MAX_PER_SECOND", 4),

		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		TextGenModel:      getEnv("TEXTGEN_MODEL", "gemini-2.0-flash"),
		TextGenMaxPerMin:  getEnvAsInt("TEXTGEN_MAX_PER_MINUTE", 10),
		TextGenMaxRetries: getEnvAsInt("TEXTGEN_MAX_RETRIES", 2),

		ScreenUniverse:    getEnvAsList("SCREEN_UNIVERSE", DefaultUniverse),
		ScreenMinFCFYield: getEnvAsFloat("SCREEN_MIN_FCF_YIELD", 0.04),
		ScreenMinROIC:     getEnvAsFloat("SCREEN_MIN_ROIC", 0.10),
		ScreenSchedule:    getEnv("SCREEN_SCHEDULE", "0 0 6 * * *"),
		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "0 0 * * * *"),
		SnapshotTTLHours:  getEnvAsInt("SNAPSHOT_TTL_HOURS", 24),

		ArchiveBucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveRegion:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchivePrefix:    getEnv("ARCHIVE_S3_PREFIX", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.SECMaxPerSecond <= 0 {
		return fmt.Errorf("SEC_MAX_PER_SECOND must be positive, got %d", c.SECMaxPerSecond)
	}
	if c.TextGenMaxPerMin <= 0 {
		return fmt.Errorf("TEXTGEN_MAX_PER_MINUTE must be positive, got %d", c.TextGenMaxPerMin)
	}
	if c.ScreenMinFCFYield < 0 || c.ScreenMinROIC < 0 {
		return fmt.Errorf("screen thresholds must be non-negative")
	}
	// Generative keys are optional: without them every analysis falls back to
	// the deterministic path.
	return nil
}

// TextGenEnabled reports whether any generative provider is configured.
func (c *Config) TextGenEnabled() bool {
	return c.AnthropicAPIKey != "" || c.GeminiAPIKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if parsed := utils.ParseCSV(os.Getenv(key)); parsed != nil {
		return parsed
	}
	return defaultValue
}
