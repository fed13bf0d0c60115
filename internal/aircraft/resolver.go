package aircraft

import (
	"context"
	"fmt"
	"strings"

	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/pkg/logger"
)

// Record is the resolved metadata for one icao24
type Record struct {
	Registration string `json:"registration"`
	Typecode     string `json:"typecode"`
}

// NormalizedRegistration upper-cases the registration and drops every
// character that is not an ASCII letter or digit
func NormalizedRegistration(reg string) string {
	var b strings.Builder
	b.Grow(len(reg))
	for _, r := range strings.ToUpper(reg) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Source looks up aircraft metadata. A nil record with a nil error means not found.
type Source interface {
	Aircraft(ctx context.Context, icao24 string) (*Record, error)
}

// Lookup maps icao24 to its record; a nil value means the aircraft is unknown
type Lookup map[string]*Record

// Get returns the resolved record, or nil when unknown or unresolved
func (l Lookup) Get(icao24 string) *Record {
	return l[icao24]
}

// Resolver resolves aircraft metadata through the cache. Entries never expire.
type Resolver struct {
	source Source
	cache  *cache.Loader
	logger *logger.Logger
}

// NewResolver creates a metadata resolver
func NewResolver(source Source, loader *cache.Loader, log *logger.Logger) *Resolver {
	return &Resolver{
		source: source,
		cache:  loader,
		logger: log.Named("aircraft"),
	}
}

// Resolve looks up every distinct icao24 in flights exactly once, in order of first appearance
func (r *Resolver) Resolve(ctx context.Context, flights []flight.Flight) (Lookup, error) {
	r.logger.Debug("Loading aircraft data", logger.Int("flights", len(flights)))

	out := make(Lookup)
	for _, f := range flights {
		if f.ICAO24 == "" {
			continue
		}
		if _, seen := out[f.ICAO24]; seen {
			continue
		}

		icao24 := f.ICAO24
		rec, err := cache.GetOrLoad(ctx, r.cache, cache.NamespaceAircraft, icao24, cache.NoExpiry,
			func(ctx context.Context) (*Record, error) {
				r.logger.Debug("Request aircraft information", logger.String("icao24", icao24))
				return r.source.Aircraft(ctx, icao24)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve aircraft %s: %w", icao24, err)
		}
		out[icao24] = rec
	}

	var unknown int
	for _, rec := range out {
		if rec == nil {
			unknown++
		}
	}
	r.logger.Debug("Aircraft data loaded",
		logger.Int("aircraft", len(out)),
		logger.Int("unknown", unknown))
	return out, nil
}
