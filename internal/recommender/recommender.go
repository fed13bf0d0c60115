// Package recommender runs the fetch, filter, enrich, score and rank pipeline
// for one time window.
package recommender

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/config"
	"github.com/yegors/flightrec/internal/filter"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/internal/metrics"
	"github.com/yegors/flightrec/internal/report"
	"github.com/yegors/flightrec/internal/scoring"
	"github.com/yegors/flightrec/internal/weather"
	"github.com/yegors/flightrec/pkg/logger"
)

// Options selects the enabled pipeline stages. Nil filter lists disable the
// filter; an empty scorer list scores every flight 0.
type Options struct {
	Interval       time.Duration
	ICAORegion     []string
	Operator       []string
	AircraftType   []string
	Scorers        []scoring.Scorer
	WeatherEnabled bool
}

// OptionsFromConfig builds the options for a validated configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Interval:     cfg.Search.Interval(),
		ICAORegion:   cfg.Filter.ICAORegion,
		Operator:     cfg.Filter.Operator,
		AircraftType: cfg.Filter.AircraftType,
	}

	rank := cfg.Rank
	if ft := rank.FlightTime; ft != nil {
		opts.Scorers = append(opts.Scorers, scoring.FlightTime{Min: ft.Min, Max: ft.Max, PenaltyPerMin: ft.PenaltyPerMin})
	}
	if reg := rank.Registration; reg != nil {
		opts.Scorers = append(opts.Scorers, scoring.NewRegistration(reg.Value, reg.ScoreMatch))
	}
	if rank.Airport != nil {
		opts.Scorers = append(opts.Scorers, scoring.NewAirport(rank.Airport))
	}
	if rank.Weather != nil {
		opts.Scorers = append(opts.Scorers, scoring.NewWeather(rank.Weather.Magnitudes()))
		opts.WeatherEnabled = true
	}
	return opts
}

// Recommender wires the pipeline stages together
type Recommender struct {
	fetcher  *flight.Fetcher
	aircraft *aircraft.Resolver
	weather  *weather.Resolver
	opts     Options
	engine   *scoring.Engine
	now      func() time.Time
	logger   *logger.Logger
}

// New creates a recommender. weatherResolver may be nil when weather scoring is disabled.
func New(fetcher *flight.Fetcher, aircraftResolver *aircraft.Resolver, weatherResolver *weather.Resolver, opts Options, log *logger.Logger) *Recommender {
	return &Recommender{
		fetcher:  fetcher,
		aircraft: aircraftResolver,
		weather:  weatherResolver,
		opts:     opts,
		engine:   scoring.NewEngine(opts.Scorers...),
		now:      time.Now,
		logger:   log.Named("recommender"),
	}
}

// SetClock replaces the wall clock used to anchor the window
func (r *Recommender) SetClock(now func() time.Time) {
	r.now = now
}

// Interval returns the configured look-back window
func (r *Recommender) Interval() time.Duration {
	return r.opts.Interval
}

// Result is one ranked run
type Result struct {
	RunID          string
	Begin          time.Time
	End            time.Time
	GeneratedAt    time.Time
	Ranked         []scoring.Scored
	WeatherEnabled bool

	engine *scoring.Engine
}

// WriteText renders the ranked flights one per line
func (res *Result) WriteText(w io.Writer) error {
	return report.WriteText(w, res.Ranked, res.WeatherEnabled)
}

// WriteJSON renders the ranked flights with a per-scorer breakdown
func (res *Result) WriteJSON(w io.Writer) error {
	var breakdown func(scoring.Candidate) map[string]float64
	if res.engine != nil && len(res.engine.Scorers()) > 0 {
		breakdown = res.engine.Breakdown
	}
	return report.WriteJSON(w, report.Report{
		RunID:       res.RunID,
		Begin:       res.Begin,
		End:         res.End,
		GeneratedAt: res.GeneratedAt,
		Flights:     report.Items(res.Ranked, breakdown),
	})
}

// Run processes the configured window ending now
func (r *Recommender) Run(ctx context.Context) (*Result, error) {
	return r.RunInterval(ctx, r.opts.Interval)
}

// RunInterval processes the window of the given length ending now
func (r *Recommender) RunInterval(ctx context.Context, interval time.Duration) (*Result, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	start := time.Now()
	now := r.now().UTC().Truncate(time.Second)
	res := &Result{
		RunID:          uuid.NewString(),
		Begin:          now.Add(-interval),
		End:            now,
		GeneratedAt:    now,
		WeatherEnabled: r.opts.WeatherEnabled,
		engine:         r.engine,
	}
	log := r.logger.With(logger.String("run_id", res.RunID))
	log.Info("Starting recommendation run",
		logger.Time("begin", res.Begin),
		logger.Time("end", res.End))

	ranked, err := r.run(ctx, log, res.Begin, res.End)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		log.Error("Recommendation run failed", logger.Error(err))
		return nil, err
	}
	metrics.PipelineRuns.WithLabelValues("ok").Inc()

	res.Ranked = ranked
	log.Info("Recommendation run complete",
		logger.Int("flights", len(ranked)),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (r *Recommender) run(ctx context.Context, log *logger.Logger, begin, end time.Time) ([]scoring.Scored, error) {
	flights, err := r.fetcher.Fetch(ctx, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flights: %w", err)
	}
	stage(log, "fetched", len(flights))

	var pass1 []filter.Filter
	if r.opts.ICAORegion != nil {
		pass1 = append(pass1, filter.Region(r.opts.ICAORegion))
	}
	if r.opts.Operator != nil {
		pass1 = append(pass1, filter.Operator(r.opts.Operator))
	}
	flights = filter.Chain(flights, pass1...)
	stage(log, "filtered", len(flights))

	lookup, err := r.aircraft.Resolve(ctx, flights)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve aircraft: %w", err)
	}

	if r.opts.AircraftType != nil {
		flights = filter.Chain(flights, filter.AircraftType(lookup, r.opts.AircraftType))
	}
	stage(log, "typed", len(flights))

	var reports weather.Reports
	if r.opts.WeatherEnabled && r.weather != nil {
		reports, err = r.weather.Resolve(ctx, flights)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve weather: %w", err)
		}
	}

	candidates := make([]scoring.Candidate, len(flights))
	for i, f := range flights {
		candidates[i] = scoring.Candidate{
			Flight:           f,
			Aircraft:         lookup.Get(f.ICAO24),
			DepartureWeather: reports[f.EstDepartureAirport],
			ArrivalWeather:   reports[f.EstArrivalAirport],
		}
	}

	ranked := report.Rank(r.engine.Score(candidates))
	stage(log, "ranked", len(ranked))
	return ranked, nil
}

func stage(log *logger.Logger, name string, n int) {
	metrics.StageFlights.WithLabelValues(name).Set(float64(n))
	log.Debug("Pipeline stage", logger.String("stage", name), logger.Int("flights", n))
}
