package flight

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/pkg/logger"
)

// SegmentSeconds is the length of one cachable segment
const SegmentSeconds int64 = 3600

// Source returns all flights observed in [begin, end), unix seconds
type Source interface {
	Flights(ctx context.Context, begin, end int64) ([]Flight, error)
}

// Segment is a half-open interval [Begin, End) in unix seconds
type Segment struct {
	Begin int64
	End   int64
}

// Cachable reports whether both ends are hour-aligned
func (s Segment) Cachable() bool {
	return s.Begin%SegmentSeconds == 0 && s.End%SegmentSeconds == 0
}

// Segments splits [begin, end) so that every internal boundary is hour-aligned.
// The first and last segments may be partial.
func Segments(begin, end int64) []Segment {
	steps := []int64{begin}
	for end-steps[len(steps)-1] > SegmentSeconds {
		next := steps[len(steps)-1] + SegmentSeconds
		next -= next % SegmentSeconds
		steps = append(steps, next)
	}
	steps = append(steps, end)

	segments := make([]Segment, 0, len(steps)-1)
	for i := 0; i+1 < len(steps); i++ {
		segments = append(segments, Segment{Begin: steps[i], End: steps[i+1]})
	}
	return segments
}

// Fetcher retrieves flights for an interval one segment at a time,
// serving fully hour-aligned past segments from the cache
type Fetcher struct {
	source     Source
	cache      *cache.Loader
	cacheEmpty bool
	logger     *logger.Logger
}

// NewFetcher creates a fetcher. cacheEmpty controls whether a segment
// with no flights is cached like any other.
func NewFetcher(source Source, loader *cache.Loader, cacheEmpty bool, log *logger.Logger) *Fetcher {
	return &Fetcher{
		source:     source,
		cache:      loader,
		cacheEmpty: cacheEmpty,
		logger:     log.Named("fetcher"),
	}
}

// Fetch returns the flights observed in [begin, end) in segment order
func (f *Fetcher) Fetch(ctx context.Context, begin, end time.Time) ([]Flight, error) {
	b, e := begin.Unix(), end.Unix()
	if b >= e {
		return nil, fmt.Errorf("invalid interval: begin %d is not before end %d", b, e)
	}

	var flights []Flight
	for _, seg := range Segments(b, e) {
		part, err := f.fetchSegment(ctx, seg)
		if err != nil {
			return nil, err
		}
		flights = append(flights, part...)
	}

	f.logger.Debug("Fetched flights",
		logger.Int64("begin", b),
		logger.Int64("end", e),
		logger.Int("count", len(flights)))
	return flights, nil
}

func (f *Fetcher) fetchSegment(ctx context.Context, seg Segment) ([]Flight, error) {
	f.logger.Debug("Get flights for segment",
		logger.Int64("begin", seg.Begin),
		logger.Int64("end", seg.End))

	if !seg.Cachable() {
		return f.load(ctx, seg)
	}

	key := strconv.FormatInt(seg.Begin, 10)
	keep := func(flights []Flight) bool { return len(flights) > 0 || f.cacheEmpty }
	return cache.GetOrLoadIf(ctx, f.cache, cache.NamespaceFlights, key, cache.NoExpiry,
		func(ctx context.Context) ([]Flight, error) {
			flights, err := f.load(ctx, seg)
			if err == nil && keep(flights) {
				f.logger.Debug("Segment written to cache",
					logger.String("key", key),
					logger.Int("count", len(flights)))
			}
			return flights, err
		}, keep)
}

func (f *Fetcher) load(ctx context.Context, seg Segment) ([]Flight, error) {
	flights, err := f.source.Flights(ctx, seg.Begin, seg.End)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flights for [%d, %d): %w", seg.Begin, seg.End, err)
	}
	if flights == nil {
		flights = []Flight{}
	}
	return flights, nil
}
