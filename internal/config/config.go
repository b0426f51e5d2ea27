package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"allowance/internal/codec"
	applog "allowance/internal/log"
	"allowance/internal/sheets/flatfile"
)

type Config struct {
	// HTTP server
	Host               string
	Port               string
	RateLimitPerMinute int
	MaxUploadBytes     int64
	SummaryCacheTTL    time.Duration
	ShutdownTimeout    time.Duration

	// Data directory
	DataDir     string
	LedgerFile  string
	GoalsFile   string
	PresetsFile string
	DecodeMode  string
	ImportMode  string
	UniqueKeys  bool
	RecentDays  int
	SeedFile    string

	// AMQP, optional: empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror, optional
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Host:               getEnv("ALLOWANCE_HOST", "127.0.0.1"),
		Port:               getEnv("ALLOWANCE_PORT", "8000"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		SummaryCacheTTL:    getEnvDuration("SUMMARY_CACHE_TTL", time.Minute),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataDir:     getEnv("DATA_DIR", "."),
		LedgerFile:  getEnv("LEDGER_FILE", flatfile.DefaultLedgerFile),
		GoalsFile:   getEnv("GOALS_FILE", flatfile.DefaultGoalsFile),
		PresetsFile: getEnv("PRESETS_FILE", flatfile.DefaultPresetsFile),
		DecodeMode:  getEnv("DECODE_MODE", string(codec.Tolerant)),
		ImportMode:  getEnv("IMPORT_MODE", string(flatfile.ImportPassthrough)),
		UniqueKeys:  getEnvBool("REFERENCE_UNIQUE_KEYS", false),
		RecentDays:  getEnvInt("RECENT_DAYS", 7),
		SeedFile:    getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "allowance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "allowance_events"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Allowance"),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 0 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 0 and 65535", port))
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty")
	}
	for key, name := range map[string]string{"LEDGER_FILE": c.LedgerFile, "GOALS_FILE": c.GoalsFile, "PRESETS_FILE": c.PresetsFile} {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a plain file name", key, name))
		}
	}
	if c.LedgerFile == c.GoalsFile || c.LedgerFile == c.PresetsFile || c.GoalsFile == c.PresetsFile {
		errors = append(errors, "LEDGER_FILE, GOALS_FILE and PRESETS_FILE must differ")
	}

	if _, err := codec.ParseMode(c.DecodeMode); err != nil {
		errors = append(errors, fmt.Sprintf("invalid DECODE_MODE: %v", err))
	}
	if _, err := flatfile.ParseImportMode(c.ImportMode); err != nil {
		errors = append(errors, fmt.Sprintf("invalid IMPORT_MODE: %v", err))
	}

	if c.RecentDays < 1 || c.RecentDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid recent days %d: must be between 1 and 366", c.RecentDays))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload bytes %d: must be positive", c.MaxUploadBytes))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file '%s' is not readable: %v", c.SeedFile, err))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleCredentialsJSON == "" && c.GoogleCredentialsFile == "" {
		errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// StoreOptions turns the data settings into flat-file options. Call after
// Validate.
func (c *Config) StoreOptions() flatfile.Options {
	mode, _ := codec.ParseMode(c.DecodeMode)
	importMode, _ := flatfile.ParseImportMode(c.ImportMode)
	return flatfile.Options{
		Mode:        mode,
		ImportMode:  importMode,
		UniqueKeys:  c.UniqueKeys,
		LedgerFile:  c.LedgerFile,
		GoalsFile:   c.GoalsFile,
		PresetsFile: c.PresetsFile,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
