package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"allowance/internal/codec"
	"allowance/internal/sheets/flatfile"
)

func validConfig() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               "8000",
		RateLimitPerMinute: 60,
		MaxUploadBytes:     1 << 20,
		SummaryCacheTTL:    time.Minute,
		DataDir:            ".",
		LedgerFile:         "allowance.csv",
		GoalsFile:          "goals.csv",
		PresetsFile:        "presets.csv",
		DecodeMode:         "tolerant",
		ImportMode:         "passthrough",
		RecentDays:         7,
		AMQPExchange:       "allowance",
		AMQPQueue:          "allowance_events",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"port zero picks any free port", func(c *Config) { c.Port = "0" }, ""},
		{"invalid port - non-numeric", func(c *Config) { c.Port = "abc" }, "invalid port 'abc': must be a number"},
		{"invalid port - out of range", func(c *Config) { c.Port = "70000" }, "invalid port 70000"},
		{"empty data dir", func(c *Config) { c.DataDir = " " }, "data directory cannot be empty"},
		{"file name with path", func(c *Config) { c.GoalsFile = "../goals.csv" }, "invalid GOALS_FILE"},
		{"same file twice", func(c *Config) { c.PresetsFile = "goals.csv" }, "must differ"},
		{"decode mode", func(c *Config) { c.DecodeMode = "lenient" }, "invalid DECODE_MODE"},
		{"import mode", func(c *Config) { c.ImportMode = "merge" }, "invalid IMPORT_MODE"},
		{"recent days", func(c *Config) { c.RecentDays = 0 }, "invalid recent days 0"},
		{"upload size", func(c *Config) { c.MaxUploadBytes = 0 }, "invalid max upload bytes"},
		{"missing seed file", func(c *Config) { c.SeedFile = filepath.Join(t.TempDir(), "nope.yaml") }, "seed file"},
		{"amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "invalid AMQP URL scheme 'http'"},
		{"amqp queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "" }, "AMQP queue name cannot be empty"},
		{"sheets without credentials", func(c *Config) { c.GoogleSpreadsheetID = "abc" }, "GOOGLE_SERVICE_ACCOUNT_JSON"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid LOG_LEVEL"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "invalid LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errorString)
			}
			if !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errorString)
			}
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "x"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil || strings.Count(err.Error(), "\n- ") != 2 {
		t.Fatalf("expected two listed problems, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ALLOWANCE_HOST", "ALLOWANCE_PORT", "DATA_DIR", "DECODE_MODE", "IMPORT_MODE", "AMQP_URL", "RECENT_DAYS", "REFERENCE_UNIQUE_KEYS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Host != "127.0.0.1" || cfg.Port != "8000" {
		t.Errorf("host/port = %s:%s", cfg.Host, cfg.Port)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQP should be off by default, got %q", cfg.AMQPURL)
	}
	if cfg.RecentDays != 7 || cfg.UniqueKeys {
		t.Errorf("recent days %d unique %v", cfg.RecentDays, cfg.UniqueKeys)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALLOWANCE_PORT", "9000")
	t.Setenv("DECODE_MODE", "strict")
	t.Setenv("IMPORT_MODE", "rebalance")
	t.Setenv("REFERENCE_UNIQUE_KEYS", "true")
	t.Setenv("RECENT_DAYS", "not-a-number")
	t.Setenv("SUMMARY_CACHE_TTL", "5s")

	cfg := Load()
	if cfg.Port != "9000" || cfg.RecentDays != 7 || cfg.SummaryCacheTTL != 5*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}

	opts := cfg.StoreOptions()
	if opts.Mode != codec.Strict || opts.ImportMode != flatfile.ImportRebalance || !opts.UniqueKeys {
		t.Fatalf("store options = %+v", opts)
	}
}
