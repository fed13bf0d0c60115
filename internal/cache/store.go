package cache

import (
	"context"
	"time"
)

// Namespaces used by the recommender
const (
	NamespaceFlights  = "flights"  // hour-aligned flight segments, keyed by segment start
	NamespaceAircraft = "aircraft" // aircraft metadata, keyed by icao24
	NamespaceMETAR    = "metar"    // raw weather reports, keyed by station code
)

// NoExpiry marks an entry that never expires
const NoExpiry time.Duration = 0

// Store is a persistent (namespace, key) -> value mapping with optional expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and true if the entry exists and has not expired
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)

	// Put stores value under (namespace, key). A ttl of NoExpiry keeps the entry forever.
	Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Close releases resources held by the store
	Close() error
}
