package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/yegors/flightrec/internal/metrics"
)

// Loader reads typed values through a Store and collapses concurrent
// loads of the same (namespace, key) so each key is written once.
type Loader struct {
	store Store
	group singleflight.Group
}

// NewLoader wraps a Store
func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Store returns the underlying store
func (l *Loader) Store() Store {
	return l.store
}

// Lookup decodes the cached value into target. It reports whether the entry existed.
func (l *Loader) Lookup(ctx context.Context, namespace, key string, target interface{}) (bool, error) {
	raw, ok, err := l.store.Get(ctx, namespace, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s/%s: %w", namespace, key, err)
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		// A corrupt entry is treated as a miss and will be overwritten
		metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()
		return false, nil
	}
	metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
	return true, nil
}

// Save encodes value and stores it
func (l *Loader) Save(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s/%s: %w", namespace, key, err)
	}
	if err := l.store.Put(ctx, namespace, key, raw, ttl); err != nil {
		return fmt.Errorf("cache put %s/%s: %w", namespace, key, err)
	}
	metrics.CacheWrites.WithLabelValues(namespace).Inc()
	return nil
}

// GetOrLoad returns the cached value for (namespace, key), calling load on a miss
// and storing its result with ttl. Concurrent callers for the same key share one load.
func GetOrLoad[T any](ctx context.Context, l *Loader, namespace, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	return GetOrLoadIf(ctx, l, namespace, key, ttl, load, nil)
}

// GetOrLoadIf is GetOrLoad where keep decides whether a loaded value is stored.
// A nil keep stores every value.
//
// The shared load runs on a context detached from any single caller, so a
// canceled caller returns ctx.Err() without failing the others waiting on the key.
func GetOrLoadIf[T any](ctx context.Context, l *Loader, namespace, key string, ttl time.Duration, load func(context.Context) (T, error), keep func(T) bool) (T, error) {
	var cached T
	ok, err := l.Lookup(ctx, namespace, key, &cached)
	if err != nil {
		return cached, err
	}
	if ok {
		return cached, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(namespace+"/"+key, func() (interface{}, error) {
		// Another caller may have filled the entry while we waited
		var again T
		if ok, err := l.Lookup(detached, namespace, key, &again); err != nil {
			return again, err
		} else if ok {
			return again, nil
		}

		loaded, err := load(detached)
		if err != nil {
			return loaded, err
		}
		if keep != nil && !keep(loaded) {
			return loaded, nil
		}
		if err := l.Save(detached, namespace, key, loaded, ttl); err != nil {
			return loaded, err
		}
		return loaded, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
