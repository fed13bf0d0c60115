package weather

import "time"

// Source names accepted in WeatherConfig.Source
const (
	SourceAviationWeather = "aviationweather"
	SourceWindy           = "windy"
)

// WeatherConfig represents the weather source configuration
type WeatherConfig struct {
	Source                string `toml:"source" json:"source"`
	APIBaseURL            string `toml:"api_base_url" json:"api_base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" json:"request_timeout_seconds"`
	MaxRetries            *int   `toml:"max_retries" json:"max_retries"`                   // nil uses the default; 0 disables retries
	CacheExpiryMinutes    *int   `toml:"cache_expiry_minutes" json:"cache_expiry_minutes"` // nil uses the default; 0 disables caching
}

// DefaultWeatherConfig returns the default weather configuration
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		Source:                SourceAviationWeather,
		APIBaseURL:            "https://aviationweather.gov/api/data",
		RequestTimeoutSeconds: 10,
		MaxRetries:            intPtr(defaultMaxRetries),
		CacheExpiryMinutes:    intPtr(defaultCacheExpiryMinutes),
	}
}

const (
	defaultMaxRetries         = 2
	defaultCacheExpiryMinutes = 60
)

func intPtr(v int) *int { return &v }

// Retries returns the retry budget per request
func (c WeatherConfig) Retries() int {
	if c.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.MaxRetries
}

// CacheExpiry returns how long a resolved report stays cached; 0 means reports are not cached
func (c WeatherConfig) CacheExpiry() time.Duration {
	if c.CacheExpiryMinutes == nil {
		return defaultCacheExpiryMinutes * time.Minute
	}
	return time.Duration(*c.CacheExpiryMinutes) * time.Minute
}

// METARResponse is one element of the aviationweather.gov METAR JSON array
type METARResponse struct {
	ICAOID     string `json:"icaoId"`
	ReportTime string `json:"reportTime"`
	ObsTime    int64  `json:"obsTime"`
	RawOb      string `json:"rawOb"`
}
