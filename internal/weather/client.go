package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/yegors/flightrec/internal/upstream"
	"github.com/yegors/flightrec/pkg/logger"
)

// Client fetches raw METAR text for a station
type Client struct {
	config    WeatherConfig
	requester *upstream.Requester
	logger    *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(config WeatherConfig, logger *logger.Logger) *Client {
	policy := upstream.DefaultPolicy()
	policy.Timeout = time.Duration(config.RequestTimeoutSeconds) * time.Second
	policy.MaxRetries = config.Retries()
	policy.InitialBackoff = 500 * time.Millisecond
	policy.MaxBackoff = 4 * time.Second

	return &Client{
		config:    config,
		requester: upstream.NewRequester("weather", policy, logger),
		logger:    logger.Named("weather-client"),
	}
}

// FetchMETAR returns the most recent raw report for the station.
// Missing, empty or malformed data yields "" without an error.
func (c *Client) FetchMETAR(ctx context.Context, airportCode string) (string, error) {
	base := strings.TrimRight(c.config.APIBaseURL, "/")

	var urlStr string
	switch c.config.Source {
	case SourceWindy:
		urlStr = fmt.Sprintf("%s/%s", base, url.PathEscape(airportCode))
	default:
		urlStr = fmt.Sprintf("%s/metar?ids=%s&format=json", base, url.QueryEscape(airportCode))
	}

	body, err := c.requester.Get(ctx, urlStr, nil)
	if errors.Is(err, upstream.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	raw, err := c.decode(body)
	if err != nil {
		c.logger.Warn("Malformed weather response, using empty report",
			logger.String("airport", airportCode),
			logger.Error(err))
		return "", nil
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) decode(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}

	if c.config.Source == SourceWindy {
		var resp WindyMETARResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("error decoding windy metar: %w", err)
		}
		return resp.latestRaw(), nil
	}

	// The API returns an array with the latest observation first
	var result []METARResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error decoding metar: %w", err)
	}
	if len(result) == 0 {
		return "", nil
	}
	return result[0].RawOb, nil
}
