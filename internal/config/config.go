package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Splitwise
	SplitwiseBaseURL   string
	SplitwisePageLimit int
	SplitwiseMaxPages  int
	SplitwiseTimeout   time.Duration
	IdentityCacheTTL   time.Duration

	// AutoSyncInterval of zero disables the scheduler
	AutoSyncInterval time.Duration

	// AMQP (optional)
	AMQPURL              string
	AMQPExchange         string
	AMQPQueue            string
	AMQPEventsRoutingKey string

	// Export (optional). ExportTarget is "sheets", "memory", "none", or empty
	// to pick Sheets whenever a spreadsheet id is set.
	ExportTarget        string
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Calendar and logging
	Timezone  string
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/nettracker.db"),

		SplitwiseBaseURL:   getEnv("SPLITWISE_BASE_URL", "https://secure.splitwise.com/api/v3.0"),
		SplitwisePageLimit: getEnvInt("SPLITWISE_PAGE_LIMIT", 100),
		SplitwiseMaxPages:  getEnvInt("SPLITWISE_MAX_PAGES", 1),
		SplitwiseTimeout:   getEnvDuration("SPLITWISE_TIMEOUT", 15*time.Second),
		IdentityCacheTTL:   getEnvDuration("IDENTITY_CACHE_TTL", time.Hour),

		AutoSyncInterval: getEnvDuration("AUTO_SYNC_INTERVAL", 0),

		AMQPURL:              getEnv("AMQP_URL", ""),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "nettracker"),
		AMQPQueue:            getEnv("AMQP_QUEUE", "sync_requests"),
		AMQPEventsRoutingKey: getEnv("AMQP_EVENTS_ROUTING_KEY", "sync_completed"),

		ExportTarget:        getEnv("EXPORT_TARGET", ""),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "NetTracker"),

		Timezone:  getEnv("TIMEZONE", "Local"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Location resolves Timezone. "Local" and the empty string mean the host
// zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Export targets.
const (
	ExportSheets = "sheets"
	ExportMemory = "memory"
	ExportNone   = "none"
)

// ExportMode resolves which exporter to build. Empty means export is off.
func (c *Config) ExportMode() string {
	switch target := strings.ToLower(strings.TrimSpace(c.ExportTarget)); target {
	case ExportSheets, ExportMemory:
		return target
	case "":
		if c.GoogleSpreadsheetID != "" {
			return ExportSheets
		}
	}
	return ""
}

// ExportEnabled reports whether any exporter is configured.
func (c *Config) ExportEnabled() bool {
	return c.ExportMode() != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate Splitwise client
	if parsedURL, err := url.Parse(c.SplitwiseBaseURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Splitwise base URL '%s'", c.SplitwiseBaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid Splitwise base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.SplitwisePageLimit < 1 || c.SplitwisePageLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid Splitwise page limit %d: must be between 1 and 1000", c.SplitwisePageLimit))
	}
	if c.SplitwiseMaxPages < 1 || c.SplitwiseMaxPages > 100 {
		errors = append(errors, fmt.Sprintf("invalid Splitwise max pages %d: must be between 1 and 100", c.SplitwiseMaxPages))
	}
	if c.SplitwiseTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid Splitwise timeout %v: must be at least 1 second", c.SplitwiseTimeout))
	}
	if c.IdentityCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid identity cache TTL %v: must not be negative", c.IdentityCacheTTL))
	}

	// Validate auto-sync interval (0 disables)
	if c.AutoSyncInterval != 0 {
		if c.AutoSyncInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid auto-sync interval %v: must be at least 1 minute", c.AutoSyncInterval))
		} else if c.AutoSyncInterval > 24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid auto-sync interval %v: must be at most 24 hours", c.AutoSyncInterval))
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
		if c.AMQPEventsRoutingKey == "" {
			errors = append(errors, "AMQP events routing key cannot be empty when AMQP URL is provided")
		} else if c.AMQPEventsRoutingKey == c.AMQPQueue {
			errors = append(errors, "AMQP events routing key must differ from the request queue name")
		}
	}

	// Validate export target
	switch strings.ToLower(strings.TrimSpace(c.ExportTarget)) {
	case "", ExportSheets, ExportMemory, ExportNone:
	default:
		errors = append(errors, fmt.Sprintf("invalid export target '%s': must be one of [sheets memory none]", c.ExportTarget))
	}
	if c.ExportMode() == ExportSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when the export target is sheets")
		}
		if strings.TrimSpace(c.GoogleSheetName) == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
