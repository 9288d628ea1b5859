package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Source     SourceConfig     `toml:"source"`     // PiAware data source settings
	Receiver   ReceiverConfig   `toml:"receiver"`   // Physical receiver location settings
	Store      StoreConfig      `toml:"store"`      // Snapshot/report artifact store settings
	Storage    StorageConfig    `toml:"storage"`    // Query database settings
	Tracker    TrackerConfig    `toml:"tracker"`    // Flight segmentation settings
	Enrichment EnrichmentConfig `toml:"enrichment"` // Airline and airframe lookup settings
	Events     EventsConfig     `toml:"events"`     // NATS event publishing settings
	Digest     DigestConfig     `toml:"digest"`     // Daily LLM digest settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the API server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// SourceConfig contains the PiAware data source configuration
type SourceConfig struct {
	URL                    string `toml:"url"`                      // URL of the PiAware aircraft feed (e.g., http://192.168.1.10:8080/data/aircraft.json)
	FetchIntervalSecs      int    `toml:"fetch_interval_seconds"`   // How often to poll the feed (default: 1)
	VisibilityTimeoutSecs  int    `toml:"visibility_timeout_secs"`  // Time without position reports after which an aircraft is dropped from tracking (default: 30)
	FetchReceiverOnStartup bool   `toml:"fetch_receiver_on_start"`  // Resolve receiver coordinates from receiver.json at startup
}

// ReceiverConfig contains the physical receiver location. Latitude and
// longitude are overridden by receiver.json when fetch_receiver_on_start
// is enabled.
type ReceiverConfig struct {
	Latitude      float64 `toml:"latitude"`       // Latitude of the receiver in decimal degrees
	Longitude     float64 `toml:"longitude"`      // Longitude of the receiver in decimal degrees
	ElevationFeet float64 `toml:"elevation_feet"` // Elevation of the receiver above sea level in feet
}

// StoreConfig contains the snapshot/report artifact store configuration
type StoreConfig struct {
	Type string `toml:"type"` // Artifact store backend: "fs" or "s3"

	// Filesystem store settings (used when type = "fs")
	Root string `toml:"root"` // Root directory for snapshot and report files

	// S3 store settings (used when type = "s3")
	Endpoint  string `toml:"endpoint"`   // S3 endpoint (e.g., "s3.amazonaws.com" or a MinIO host:port)
	AccessKey string `toml:"access_key"` // S3 access key
	SecretKey string `toml:"secret_key"` // S3 secret key
	Bucket    string `toml:"bucket"`     // S3 bucket name (created if missing)
	UseSSL    bool   `toml:"use_ssl"`    // Use TLS when talking to the S3 endpoint
}

// StorageConfig contains query database configuration
type StorageConfig struct {
	Type           string `toml:"type"`             // Storage backend type (currently only "sqlite" is supported)
	SQLiteBasePath string `toml:"sqlite_base_path"` // Base path for SQLite database files (actual filename will be generated as flighttrack-YYYY-MM-DD.db)
}

// TrackerConfig contains flight segmentation settings
type TrackerConfig struct {
	GapMinutes     int `toml:"gap_minutes"`      // Silence gap that splits one aircraft's reports into separate flights (default: 5)
	MinDurationSec int `toml:"min_duration_sec"` // Minimum flight duration to keep in reports (default: 30)
	Workers        int `toml:"workers"`          // Concurrent per-aircraft segmentation workers for backfill (default: 4)
}

// EnrichmentConfig contains lookup database paths for airline and airframe
// metadata
type EnrichmentConfig struct {
	AirlineDBPath  string `toml:"airline_db_path"`  // Path to airline database JSON file keyed by ICAO callsign prefix
	AircraftDBPath string `toml:"aircraft_db_path"` // Path to aircraft database JSON file keyed by ICAO hex
}

// EventsConfig contains NATS event publishing settings
type EventsConfig struct {
	Enabled bool   `toml:"enabled"` // Publish squawk transition events to NATS
	URL     string `toml:"url"`     // NATS server URL (e.g., "nats://127.0.0.1:4222")
	Subject string `toml:"subject"` // Subject for transition events (default: "flighttrack.squawk.transitions")
}

// DigestConfig contains daily LLM digest settings
type DigestConfig struct {
	Enabled bool   `toml:"enabled"` // Enable the Gemini daily digest endpoint
	APIKey  string `toml:"api_key"` // Gemini API key
	Model   string `toml:"model"`   // Gemini model name (default: "gemini-2.0-flash")
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	// Validate source config
	if c.Source.URL == "" {
		return fmt.Errorf("source url is required")
	}
	if c.Source.FetchIntervalSecs == 0 {
		c.Source.FetchIntervalSecs = 1
	}
	if c.Source.FetchIntervalSecs < 0 {
		return fmt.Errorf("invalid fetch interval: %d", c.Source.FetchIntervalSecs)
	}
	if c.Source.VisibilityTimeoutSecs == 0 {
		c.Source.VisibilityTimeoutSecs = 30
	}
	if c.Source.VisibilityTimeoutSecs < 0 {
		return fmt.Errorf("invalid visibility timeout: %d", c.Source.VisibilityTimeoutSecs)
	}

	// Validate receiver config
	if err := c.ValidateReceiver(); err != nil {
		return err
	}

	// Validate store config
	if err := c.ValidateStore(); err != nil {
		return err
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLiteBasePath == "" {
		return fmt.Errorf("sqlite_base_path is required when storage type is sqlite")
	}

	// Validate tracker config
	if c.Tracker.GapMinutes == 0 {
		c.Tracker.GapMinutes = 5
	}
	if c.Tracker.GapMinutes < 0 {
		return fmt.Errorf("invalid gap_minutes: %d", c.Tracker.GapMinutes)
	}
	if c.Tracker.MinDurationSec == 0 {
		c.Tracker.MinDurationSec = 30
	}
	if c.Tracker.MinDurationSec < 0 {
		return fmt.Errorf("invalid min_duration_sec: %d", c.Tracker.MinDurationSec)
	}
	if c.Tracker.Workers == 0 {
		c.Tracker.Workers = 4
	}
	if c.Tracker.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Tracker.Workers)
	}

	// Validate events config
	if c.Events.Enabled {
		if c.Events.URL == "" {
			return fmt.Errorf("events url is required when events are enabled")
		}
		if c.Events.Subject == "" {
			c.Events.Subject = "flighttrack.squawk.transitions"
		}
	}

	// Validate digest config
	if c.Digest.Enabled && c.Digest.APIKey == "" {
		fmt.Printf("WARN: Digest is enabled but no Gemini API key provided - digest features will be disabled\n")
		c.Digest.Enabled = false
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ValidateReceiver validates the receiver location configuration
func (c *Config) ValidateReceiver() error {
	if c.Receiver.Latitude < -90 || c.Receiver.Latitude > 90 {
		return fmt.Errorf("invalid receiver latitude: %f", c.Receiver.Latitude)
	}

	if c.Receiver.Longitude < -180 || c.Receiver.Longitude > 180 {
		return fmt.Errorf("invalid receiver longitude: %f", c.Receiver.Longitude)
	}

	// Elevation can be negative, so we'll just check if it's within a reasonable range, e.g. -2000 to 30000 feet.
	if c.Receiver.ElevationFeet < -2000 || c.Receiver.ElevationFeet > 30000 {
		return fmt.Errorf("receiver elevation out of typical range: %.0f ft", c.Receiver.ElevationFeet)
	}

	return nil
}

// ValidateStore validates the artifact store configuration
func (c *Config) ValidateStore() error {
	if c.Store.Type == "" {
		c.Store.Type = "fs"
	}

	switch c.Store.Type {
	case "fs":
		if c.Store.Root == "" {
			return fmt.Errorf("store root is required when store type is fs")
		}
	case "s3":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store endpoint is required when store type is s3")
		}
		if c.Store.AccessKey == "" || c.Store.SecretKey == "" {
			return fmt.Errorf("store access_key and secret_key are required when store type is s3")
		}
		if c.Store.Bucket == "" {
			return fmt.Errorf("store bucket is required when store type is s3")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'fs' or 's3')", c.Store.Type)
	}

	return nil
}
