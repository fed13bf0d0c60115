package recommender

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/internal/config"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/internal/scoring"
	"github.com/yegors/flightrec/internal/weather"
	"github.com/yegors/flightrec/pkg/logger"
)

// hour-aligned reference point, 2023-11-14 22:00:00 UTC
const base int64 = 1_699_999_200

type flightSource struct {
	mu      sync.Mutex
	calls   int
	flights []flight.Flight
	err     error
}

func (s *flightSource) Flights(_ context.Context, begin, end int64) ([]flight.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []flight.Flight
	for _, f := range s.flights {
		if f.FirstSeen >= begin && f.FirstSeen < end {
			out = append(out, f)
		}
	}
	return out, nil
}

type aircraftSource struct {
	mu      sync.Mutex
	calls   int
	records map[string]*aircraft.Record
}

func (s *aircraftSource) Aircraft(_ context.Context, icao24 string) (*aircraft.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.records[icao24], nil
}

type metarSource struct {
	mu      sync.Mutex
	calls   int
	reports map[string]string
}

func (s *metarSource) FetchMETAR(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reports[code], nil
}

type fixture struct {
	flights  *flightSource
	aircraft *aircraftSource
	metar    *metarSource
	loader   *cache.Loader
}

func newFixture() *fixture {
	return &fixture{
		flights: &flightSource{flights: []flight.Flight{
			{ICAO24: "3c6444", Callsign: "DLH123", EstDepartureAirport: "EDDF", EstArrivalAirport: "LOWW", FirstSeen: base + 600, LastSeen: base + 600 + 75*60},
			{ICAO24: "3c6555", Callsign: "DLH045", EstDepartureAirport: "EDDM", EstArrivalAirport: "EDDH", FirstSeen: base + 1200, LastSeen: base + 1200 + 30*60},
			{ICAO24: "440123", Callsign: "AUA101", EstDepartureAirport: "LOWW", EstArrivalAirport: "EDDF", FirstSeen: base + 4000, LastSeen: base + 4000 + 80*60},
			{ICAO24: "400abc", Callsign: "BAW902", EstDepartureAirport: "EGLL", EstArrivalAirport: "EDDF", FirstSeen: base + 5000, LastSeen: base + 5000 + 90*60},
			{ICAO24: "ffffff", Callsign: "DLH9", EstDepartureAirport: "EDDF", EstArrivalAirport: "", FirstSeen: base + 6000, LastSeen: base + 6000 + 60*60},
		}},
		aircraft: &aircraftSource{records: map[string]*aircraft.Record{
			"3c6444": {Registration: "D-AIUA", Typecode: "A320"},
			"3c6555": {Registration: "D-AIBC", Typecode: "A319"},
			"440123": {Registration: "OE-LBA", Typecode: "A320"},
			"400abc": {Registration: "G-EUUA", Typecode: "A320"},
		}},
		metar: &metarSource{reports: map[string]string{
			"EDDF": "EDDF 142150Z 24015G25KT 9999 FEW030 08/03 Q1013",
			"LOWW": "LOWW 142150Z 30005KT 0600 FG OVC001 02/02 Q1020",
		}},
		loader: cache.NewLoader(cache.NewMemoryStore()),
	}
}

func (fx *fixture) recommender(opts Options) *Recommender {
	log := logger.NewNop()
	r := New(
		flight.NewFetcher(fx.flights, fx.loader, true, log),
		aircraft.NewResolver(fx.aircraft, fx.loader, log),
		weather.NewResolver(fx.metar, fx.loader, time.Hour, log),
		opts,
		log,
	)
	r.SetClock(func() time.Time { return time.Unix(base+2*3600, 0) })
	return r
}

func callsigns(ranked []scoring.Scored) []string {
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.Flight.Callsign
	}
	return out
}

func TestRunWithEverythingDisabled(t *testing.T) {
	fx := newFixture()
	res, err := fx.recommender(Options{Interval: 2 * time.Hour}).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, time.Unix(base, 0).UTC(), res.Begin)
	assert.Equal(t, []string{"AUA101", "BAW902", "DLH045", "DLH123", "DLH9"}, callsigns(res.Ranked))
	for _, s := range res.Ranked {
		assert.Equal(t, 0.0, s.Score)
	}
	assert.Zero(t, fx.metar.calls, "weather is not resolved when weather scoring is off")
	assert.Equal(t, 2, fx.flights.calls)

	var buf bytes.Buffer
	require.NoError(t, res.WriteText(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "   0:\tEDDF - ?\t2340Z\tDLH9\t? (?)", lines[4])
}

func TestRunFiltersAndScores(t *testing.T) {
	fx := newFixture()
	gust := 2.0
	ceil := -10.0
	cfg := &config.Config{
		Search: config.SearchConfig{TimeIntervalH: 2},
		Filter: config.FilterConfig{
			ICAORegion:   []string{"ED", "LO"},
			AircraftType: []string{"A320", "A319"},
		},
		Rank: config.RankConfig{
			FlightTime:   &config.FlightTimeConfig{Min: 40, Max: 600, PenaltyPerMin: 1},
			Registration: &config.RegistrationConfig{Value: []string{"oe-lba"}, ScoreMatch: 50},
			Airport:      map[string]float64{"EDD": 5},
			Weather:      &config.WeatherRankConfig{GustPerKt: &gust, Ceil: &ceil},
		},
	}
	res, err := fx.recommender(OptionsFromConfig(cfg)).Run(context.Background())
	require.NoError(t, err)

	// BAW902 and DLH9 (no arrival airport) fail the region filter
	require.Equal(t, []string{"AUA101", "DLH123", "DLH045"}, callsigns(res.Ranked))

	// AUA101: registration 50, airport 5, EDDF gust 20, LOWW ceiling -10
	assert.InDelta(t, 65.0, res.Ranked[0].Score, 1e-9)
	// DLH123: airport 5, gust 20, ceiling -10
	assert.InDelta(t, 15.0, res.Ranked[1].Score, 1e-9)
	// DLH045: 30 minutes is 10 short, airport 5 twice
	assert.InDelta(t, 0.0, res.Ranked[2].Score, 1e-9)

	assert.Equal(t, "LOWW 142150Z 30005KT 0600 FG OVC001 02/02 Q1020", res.Ranked[0].DepartureWeather)
	assert.True(t, res.WeatherEnabled)
	assert.Equal(t, 4, fx.metar.calls, "EDDF LOWW EDDM EDDH each fetched once")
}

func TestRunOperatorFilter(t *testing.T) {
	fx := newFixture()
	res, err := fx.recommender(Options{Interval: 2 * time.Hour, Operator: []string{"DLH"}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DLH045", "DLH123", "DLH9"}, callsigns(res.Ranked))
}

func TestRunEmptyFilterListDropsEverything(t *testing.T) {
	fx := newFixture()
	res, err := fx.recommender(Options{Interval: 2 * time.Hour, Operator: []string{}}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
}

func TestRunWarmCacheSkipsFlightSource(t *testing.T) {
	fx := newFixture()
	r := fx.recommender(Options{Interval: 2 * time.Hour})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, fx.flights.calls)
	aircraftCalls := fx.aircraft.calls

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fx.flights.calls, "aligned segments come from the cache")
	assert.Equal(t, aircraftCalls, fx.aircraft.calls, "metadata is cached, unknowns included")
	assert.Len(t, res.Ranked, 5)
}

func TestRunIntervalOverride(t *testing.T) {
	fx := newFixture()
	res, err := fx.recommender(Options{Interval: 2 * time.Hour}).RunInterval(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"AUA101", "BAW902", "DLH9"}, callsigns(res.Ranked))

	_, err = fx.recommender(Options{}).RunInterval(context.Background(), 0)
	assert.Error(t, err)
}

func TestRunPropagatesSourceErrors(t *testing.T) {
	fx := newFixture()
	fx.flights.err = errors.New("upstream exploded")
	_, err := fx.recommender(Options{Interval: time.Hour}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestResultWriteJSON(t *testing.T) {
	fx := newFixture()
	opts := Options{Interval: 2 * time.Hour, Scorers: []scoring.Scorer{scoring.NewAirport(map[string]float64{"LOWW": 3})}}
	res, err := fx.recommender(opts).Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.WriteJSON(&buf))

	var doc struct {
		RunID   string `json:"run_id"`
		Count   int    `json:"count"`
		Flights []struct {
			Callsign  string             `json:"callsign"`
			Score     float64            `json:"score"`
			Breakdown map[string]float64 `json:"breakdown"`
		} `json:"flights"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, res.RunID, doc.RunID)
	assert.Equal(t, 5, doc.Count)
	assert.Equal(t, "AUA101", doc.Flights[0].Callsign)
	assert.Equal(t, 3.0, doc.Flights[0].Breakdown["airport"])
}
