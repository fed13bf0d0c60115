package opensky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/internal/upstream"
	"github.com/yegors/flightrec/pkg/logger"
)

// DefaultBaseURL is the public OpenSky REST API
const DefaultBaseURL = "https://opensky-network.org/api"

// Client talks to the OpenSky REST API. It serves as both the
// flight-track source and the aircraft metadata source.
type Client struct {
	baseURL   string
	requester *upstream.Requester
	auth      *tokenSource
	logger    *logger.Logger
}

// NewClient creates an OpenSky client. credentialsPath may be empty for anonymous access.
func NewClient(baseURL, credentialsPath string, policy upstream.Policy, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	clientLogger := log.Named("opensky")
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: upstream.NewRequester("opensky", policy, log),
		auth:      newTokenSource(credentialsPath, &http.Client{Timeout: policy.Timeout}, clientLogger),
		logger:    clientLogger,
	}
}

// Flights implements flight.Source using /flights/all
func (c *Client) Flights(ctx context.Context, begin, end int64) ([]flight.Flight, error) {
	q := url.Values{}
	q.Set("begin", fmt.Sprintf("%d", begin))
	q.Set("end", fmt.Sprintf("%d", end))
	urlStr := c.baseURL + "/flights/all?" + q.Encode()

	body, err := c.get(ctx, urlStr)
	if errors.Is(err, upstream.ErrNotFound) {
		c.logger.Debug("No flights in interval", logger.Int64("begin", begin), logger.Int64("end", end))
		return []flight.Flight{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []flight.Flight
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse opensky flights: %w", err)
	}

	flights := make([]flight.Flight, 0, len(raw))
	for _, f := range raw {
		flights = append(flights, f.Normalize())
	}

	c.logger.Debug("Successfully fetched flights",
		logger.Int64("begin", begin),
		logger.Int64("end", end),
		logger.Int("count", len(flights)))
	return flights, nil
}

// metadataResponse is the subset of /metadata/aircraft/icao used here
type metadataResponse struct {
	ICAO24       string `json:"icao24"`
	Registration string `json:"registration"`
	Typecode     string `json:"typecode"`
	Model        string `json:"model"`
	Operator     string `json:"operatorIcao"`
}

// Aircraft implements aircraft.Source. Unknown aircraft yield (nil, nil).
func (c *Client) Aircraft(ctx context.Context, icao24 string) (*aircraft.Record, error) {
	urlStr := c.baseURL + "/metadata/aircraft/icao/" + url.PathEscape(icao24)

	body, err := c.get(ctx, urlStr)
	if errors.Is(err, upstream.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta metadataResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse opensky aircraft %s: %w", icao24, err)
	}

	return &aircraft.Record{
		Registration: strings.TrimSpace(meta.Registration),
		Typecode:     strings.TrimSpace(meta.Typecode),
	}, nil
}

func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	var header http.Header
	if token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	return c.requester.Get(ctx, urlStr, header)
}

// tokenTTLFallback is used when a token's lifetime is unknown
const tokenTTLFallback = 29 * time.Minute
