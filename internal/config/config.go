package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"

	"github.com/yegors/flightrec/internal/opensky"
	"github.com/yegors/flightrec/internal/scoring"
	"github.com/yegors/flightrec/internal/upstream"
	"github.com/yegors/flightrec/internal/weather"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Search  SearchConfig          `toml:"search" json:"search"`   // Time window to look back over
	Filter  FilterConfig          `toml:"filter" json:"filter"`   // Optional filter stages
	Rank    RankConfig            `toml:"rank" json:"rank"`       // Optional scoring stages
	Logging LoggingConfig         `toml:"logging" json:"logging"` // Application logging settings
	Storage StorageConfig         `toml:"storage" json:"storage"` // Cache store backend
	Cache   CacheConfig           `toml:"cache" json:"cache"`     // Caching policy
	OpenSky OpenSkyConfig         `toml:"opensky" json:"opensky"` // Flight and aircraft metadata source
	Weather weather.WeatherConfig `toml:"wx" json:"wx"`           // METAR source settings
	Server  ServerConfig          `toml:"server" json:"server"`   // HTTP server settings (serve mode only)
}

// SearchConfig selects the interval of flights to consider
type SearchConfig struct {
	TimeIntervalH float64 `toml:"time_interval_h" json:"time_interval_h"` // Hours to look back from now (required, > 0)
}

// Interval returns the look-back window as a duration
func (s SearchConfig) Interval() time.Duration {
	return time.Duration(s.TimeIntervalH * float64(time.Hour))
}

// FilterConfig contains the optional filter stages.
// A nil list disables the stage; an empty list drops every flight.
type FilterConfig struct {
	ICAORegion   []string `toml:"icao_region" json:"icao_region"`     // Airport code prefixes both endpoints must match
	Operator     []string `toml:"operator" json:"operator"`           // Callsign prefixes
	AircraftType []string `toml:"aircraft_type" json:"aircraft_type"` // Allowed typecodes
}

// RankConfig contains the optional scoring stages; nil disables a stage
type RankConfig struct {
	FlightTime   *FlightTimeConfig   `toml:"flight_time" json:"flight_time"`
	Registration *RegistrationConfig `toml:"registration" json:"registration"`
	Airport      map[string]float64  `toml:"airport" json:"airport"` // Airport code prefix -> score delta
	Weather      *WeatherRankConfig  `toml:"weather" json:"weather"`
}

// FlightTimeConfig penalizes flights outside a preferred duration
type FlightTimeConfig struct {
	Min           float64 `toml:"min" json:"min"`                         // Minutes
	Max           float64 `toml:"max" json:"max"`                         // Minutes
	PenaltyPerMin float64 `toml:"penalty_per_min" json:"penalty_per_min"` // Subtracted per minute outside [min, max]
}

// RegistrationConfig rewards specific tail numbers
type RegistrationConfig struct {
	Value      []string `toml:"value" json:"value"`             // Registrations, normalized before comparison
	ScoreMatch float64  `toml:"score_match" json:"score_match"` // Added on a match
}

// WeatherRankConfig holds the magnitude of each weather detector; nil disables it
type WeatherRankConfig struct {
	GustPerKt *float64 `toml:"gust_per_kt" json:"gust_per_kt"` // Per knot of gust over sustained wind
	Vis       *float64 `toml:"vis" json:"vis"`                 // Visibility below 9999 m
	RVR       *float64 `toml:"rvr" json:"rvr"`                 // RVR group present
	Ceil      *float64 `toml:"ceil" json:"ceil"`               // Per cloud layer below 200 ft
	Rain      *float64 `toml:"rain" json:"rain"`
	Snow      *float64 `toml:"snow" json:"snow"`
	TCU       *float64 `toml:"tcu" json:"tcu"`
	Thunder   *float64 `toml:"thunder" json:"thunder"`
}

// Magnitudes returns the enabled detectors keyed by detector name
func (w WeatherRankConfig) Magnitudes() map[string]float64 {
	out := make(map[string]float64)
	for name, v := range map[string]*float64{
		scoring.DetectGust:    w.GustPerKt,
		scoring.DetectVis:     w.Vis,
		scoring.DetectRVR:     w.RVR,
		scoring.DetectCeiling: w.Ceil,
		scoring.DetectRain:    w.Rain,
		scoring.DetectSnow:    w.Snow,
		scoring.DetectTCU:     w.TCU,
		scoring.DetectThunder: w.Thunder,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`   // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format" json:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// Storage backends accepted in StorageConfig.Type
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// StorageConfig selects where cached upstream responses live
type StorageConfig struct {
	Type          string `toml:"type" json:"type"`                     // "sqlite" (default), "redis" or "memory"
	SQLitePath    string `toml:"sqlite_path" json:"sqlite_path"`       // SQLite database file
	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`         // host:port of the redis server
	RedisPassword string `toml:"redis_password" json:"redis_password"` // Optional
	RedisDB       int    `toml:"redis_db" json:"redis_db"`             // Database index
	RedisPrefix   string `toml:"redis_prefix" json:"redis_prefix"`     // Key prefix
}

// CacheConfig controls what gets cached
type CacheConfig struct {
	CacheEmptySegments *bool `toml:"cache_empty_segments" json:"cache_empty_segments"` // Cache hour segments with no flights (default true)
}

// EmptySegments reports whether empty hour segments are cached
func (c CacheConfig) EmptySegments() bool {
	return c.CacheEmptySegments == nil || *c.CacheEmptySegments
}

// OpenSkyConfig contains the flight source settings
type OpenSkyConfig struct {
	BaseURL               string  `toml:"base_url" json:"base_url"`                                 // REST API root
	CredentialsPath       string  `toml:"credentials_path" json:"credentials_path"`                 // OAuth2 or token JSON; anonymous when missing
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds" json:"request_timeout_seconds"`   // Per attempt
	MaxRetries            *int    `toml:"max_retries" json:"max_retries"`                           // Retries on 503, 429 and transport errors; 0 disables
	RetryInitialBackoffMs int     `toml:"retry_initial_backoff_ms" json:"retry_initial_backoff_ms"` // First retry delay
	RetryMaxBackoffMs     int     `toml:"retry_max_backoff_ms" json:"retry_max_backoff_ms"`         // Retry delay cap
	RequestsPerSecond     float64 `toml:"requests_per_second" json:"requests_per_second"`           // 0 disables pacing
}

// Policy converts the settings into a retry policy
func (o OpenSkyConfig) Policy() upstream.Policy {
	return upstream.Policy{
		Timeout:           time.Duration(o.RequestTimeoutSeconds) * time.Second,
		MaxRetries:        o.Retries(),
		InitialBackoff:    time.Duration(o.RetryInitialBackoffMs) * time.Millisecond,
		MaxBackoff:        time.Duration(o.RetryMaxBackoffMs) * time.Millisecond,
		RequestsPerSecond: o.RequestsPerSecond,
	}
}

// Retries returns the configured retry budget, or the default when unset
func (o OpenSkyConfig) Retries() int {
	if o.MaxRetries == nil {
		return upstream.DefaultPolicy().MaxRetries
	}
	return *o.MaxRetries
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host             string `toml:"host" json:"host"`                                   // Host address to bind to
	Port             int    `toml:"port" json:"port"`                                   // HTTP port
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds" json:"read_timeout_seconds"`   // Maximum duration for reading the request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds" json:"write_timeout_seconds"` // Maximum duration for writing the response, including a pipeline run
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads configuration from a TOML file, or a JSON file when the path ends in .json
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return &config, nil
}

// LoadWithFallback tries the preferred path first, then the usual locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
		"config.json",         // Plain JSON config
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
			config, err := Load(path)
			if err != nil {
				// An explicit path that fails to load is fatal
				if path == preferredPath {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate applies defaults and validates the configuration
func (c *Config) Validate() error {
	if c.Search.TimeIntervalH <= 0 {
		return fmt.Errorf("search.time_interval_h is required and must be greater than 0: %v", c.Search.TimeIntervalH)
	}

	if ft := c.Rank.FlightTime; ft != nil {
		if ft.Min > ft.Max {
			return fmt.Errorf("rank.flight_time.min (%v) must not exceed max (%v)", ft.Min, ft.Max)
		}
		if ft.PenaltyPerMin < 0 {
			return fmt.Errorf("rank.flight_time.penalty_per_min must be 0 or greater: %v", ft.PenaltyPerMin)
		}
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if err := c.ValidateOpenSky(); err != nil {
		return err
	}
	if err := c.ValidateWeather(); err != nil {
		return err
	}

	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}

	return nil
}

// ValidateStorage applies storage defaults and checks the backend settings
func (c *Config) ValidateStorage() error {
	if c.Storage.Type == "" {
		c.Storage.Type = StorageSQLite
	}
	switch c.Storage.Type {
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			c.Storage.SQLitePath = "data/flightrec.db"
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required when storage type is redis")
		}
		if c.Storage.RedisDB < 0 {
			return fmt.Errorf("invalid redis_db: %d", c.Storage.RedisDB)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage type: %s (must be 'sqlite', 'redis' or 'memory')", c.Storage.Type)
	}
	return nil
}

// ValidateOpenSky applies source defaults and checks the retry policy
func (c *Config) ValidateOpenSky() error {
	def := upstream.DefaultPolicy()
	if c.OpenSky.BaseURL == "" {
		c.OpenSky.BaseURL = opensky.DefaultBaseURL
	}
	if c.OpenSky.RequestTimeoutSeconds == 0 {
		c.OpenSky.RequestTimeoutSeconds = int(def.Timeout / time.Second)
	}
	if c.OpenSky.MaxRetries == nil {
		retries := def.MaxRetries
		c.OpenSky.MaxRetries = &retries
	}
	if c.OpenSky.RetryInitialBackoffMs == 0 {
		c.OpenSky.RetryInitialBackoffMs = int(def.InitialBackoff / time.Millisecond)
	}
	if c.OpenSky.RetryMaxBackoffMs == 0 {
		c.OpenSky.RetryMaxBackoffMs = int(def.MaxBackoff / time.Millisecond)
	}

	if c.OpenSky.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("opensky request_timeout_seconds must be greater than 0: %d", c.OpenSky.RequestTimeoutSeconds)
	}
	if *c.OpenSky.MaxRetries < 0 {
		return fmt.Errorf("opensky max_retries must be 0 or greater: %d", *c.OpenSky.MaxRetries)
	}
	if c.OpenSky.RetryInitialBackoffMs < 0 || c.OpenSky.RetryMaxBackoffMs < c.OpenSky.RetryInitialBackoffMs {
		return fmt.Errorf("opensky retry backoff must satisfy 0 <= initial (%d) <= max (%d)",
			c.OpenSky.RetryInitialBackoffMs, c.OpenSky.RetryMaxBackoffMs)
	}
	if c.OpenSky.RequestsPerSecond < 0 {
		return fmt.Errorf("opensky requests_per_second must be 0 or greater: %v", c.OpenSky.RequestsPerSecond)
	}
	return nil
}

// ValidateWeather applies weather defaults and checks the source settings
func (c *Config) ValidateWeather() error {
	def := weather.DefaultWeatherConfig()
	if c.Weather.Source == "" {
		c.Weather.Source = def.Source
	}
	if c.Weather.APIBaseURL == "" && c.Weather.Source == weather.SourceAviationWeather {
		c.Weather.APIBaseURL = def.APIBaseURL
	}
	if c.Weather.RequestTimeoutSeconds == 0 {
		c.Weather.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if c.Weather.MaxRetries == nil {
		c.Weather.MaxRetries = def.MaxRetries
	}
	if c.Weather.CacheExpiryMinutes == nil {
		c.Weather.CacheExpiryMinutes = def.CacheExpiryMinutes
	}

	switch c.Weather.Source {
	case weather.SourceAviationWeather, weather.SourceWindy:
	default:
		return fmt.Errorf("invalid weather source: %s (must be 'aviationweather' or 'windy')", c.Weather.Source)
	}

	// Validate API base URL
	if c.Weather.APIBaseURL == "" {
		return fmt.Errorf("weather api_base_url cannot be empty")
	}

	// Validate request timeout
	if c.Weather.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}

	// Validate max retries
	if *c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", *c.Weather.MaxRetries)
	}

	// Validate cache expiry
	if *c.Weather.CacheExpiryMinutes < 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be 0 or greater: %d", *c.Weather.CacheExpiryMinutes)
	}

	return nil
}
