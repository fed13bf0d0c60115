// Package scoring ranks candidate flights with independent, additive scorers.
//
// Each Scorer is a pure function of a Candidate returning a delta. The
// Engine folds the deltas starting from zero, so the order scorers are
// applied in does not change the total.
package scoring

import (
	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/flight"
)

// Candidate is a filtered flight together with everything resolved about it
type Candidate struct {
	Flight           flight.Flight
	Aircraft         *aircraft.Record // nil when unknown
	DepartureWeather string
	ArrivalWeather   string
}

// Scorer computes one contribution to a candidate's score
type Scorer interface {
	Name() string
	Score(c Candidate) float64
}

// Scored is a candidate with its final score
type Scored struct {
	Candidate
	Score float64
}

// Engine applies a fixed set of scorers
type Engine struct {
	scorers []Scorer
}

// NewEngine creates an engine. Disabled stages are simply not passed in.
func NewEngine(scorers ...Scorer) *Engine {
	return &Engine{scorers: scorers}
}

// Scorers returns the configured scorers
func (e *Engine) Scorers() []Scorer {
	return e.scorers
}

// Score returns every candidate with its total score; the input is not modified
func (e *Engine) Score(candidates []Candidate) []Scored {
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		out[i] = Scored{Candidate: c, Score: e.total(c)}
	}
	return out
}

func (e *Engine) total(c Candidate) float64 {
	score := 0.0
	for _, s := range e.scorers {
		score += s.Score(c)
	}
	return score
}

// Breakdown returns the contribution of each scorer, keyed by name
func (e *Engine) Breakdown(c Candidate) map[string]float64 {
	out := make(map[string]float64, len(e.scorers))
	for _, s := range e.scorers {
		out[s.Name()] += s.Score(c)
	}
	return out
}
