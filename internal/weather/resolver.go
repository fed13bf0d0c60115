package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/pkg/logger"
)

// Source returns the raw report text for a station, "" when unavailable
type Source interface {
	FetchMETAR(ctx context.Context, airportCode string) (string, error)
}

// Reports maps airport code to raw report text
type Reports map[string]string

// Resolver resolves raw reports for the endpoints of a flight list through the cache
type Resolver struct {
	source Source
	cache  *cache.Loader
	ttl    time.Duration
	logger *logger.Logger
}

// NewResolver creates a weather resolver; entries expire after ttl.
// A ttl of 0 disables caching and every run fetches fresh reports.
func NewResolver(source Source, loader *cache.Loader, ttl time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{
		source: source,
		cache:  loader,
		ttl:    ttl,
		logger: log.Named("weather"),
	}
}

// Airports returns the distinct departure and arrival codes of flights in order of first appearance
func Airports(flights []flight.Flight) []string {
	seen := make(map[string]bool)
	var codes []string
	add := func(code string) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}
	for _, f := range flights {
		add(f.EstDepartureAirport)
		add(f.EstArrivalAirport)
	}
	return codes
}

// Resolve returns the report text for every endpoint airport in flights
func (r *Resolver) Resolve(ctx context.Context, flights []flight.Flight) (Reports, error) {
	codes := Airports(flights)
	r.logger.Debug("Loading weather reports", logger.Int("airports", len(codes)))

	reports := make(Reports, len(codes))
	for _, code := range codes {
		code := code
		fetch := func(ctx context.Context) (string, error) {
			r.logger.Debug("Request weather report", logger.String("airport", code))
			return r.source.FetchMETAR(ctx, code)
		}
		var text string
		var err error
		if r.ttl > 0 {
			text, err = cache.GetOrLoad(ctx, r.cache, cache.NamespaceMETAR, code, r.ttl, fetch)
		} else {
			text, err = fetch(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve weather for %s: %w", code, err)
		}
		reports[code] = text
	}
	return reports, nil
}
