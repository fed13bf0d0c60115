package scoring

import (
	"sort"
	"strings"

	"github.com/yegors/flightrec/internal/aircraft"
)

// FlightTime penalizes flights shorter than Min or longer than Max minutes
type FlightTime struct {
	Min           float64
	Max           float64
	PenaltyPerMin float64
}

func (FlightTime) Name() string { return "flight_time" }

func (s FlightTime) Score(c Candidate) float64 {
	d := c.Flight.DurationMinutes()
	var delta float64
	if d < s.Min {
		delta -= s.PenaltyPerMin * (s.Min - d)
	}
	if d > s.Max {
		delta -= s.PenaltyPerMin * (d - s.Max)
	}
	return delta
}

// Registration rewards flights flown by one of a set of tail numbers
type Registration struct {
	values map[string]bool
	match  float64
}

// NewRegistration builds the scorer; values are normalized like resolved registrations
func NewRegistration(values []string, scoreMatch float64) Registration {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[aircraft.NormalizedRegistration(v)] = true
	}
	return Registration{values: set, match: scoreMatch}
}

func (Registration) Name() string { return "registration" }

func (s Registration) Score(c Candidate) float64 {
	if c.Aircraft == nil {
		return 0
	}
	reg := aircraft.NormalizedRegistration(c.Aircraft.Registration)
	if reg != "" && s.values[reg] {
		return s.match
	}
	return 0
}

type airportDelta struct {
	prefix string
	delta  float64
}

// Airport adds a delta for every configured prefix matching either endpoint
type Airport struct {
	deltas []airportDelta
}

// NewAirport builds the scorer from a prefix -> delta mapping
func NewAirport(deltas map[string]float64) Airport {
	s := Airport{deltas: make([]airportDelta, 0, len(deltas))}
	for p, d := range deltas {
		s.deltas = append(s.deltas, airportDelta{prefix: p, delta: d})
	}
	// stable summation order
	sort.Slice(s.deltas, func(i, j int) bool { return s.deltas[i].prefix < s.deltas[j].prefix })
	return s
}

func (Airport) Name() string { return "airport" }

func (s Airport) Score(c Candidate) float64 {
	dep, arr := c.Flight.EstDepartureAirport, c.Flight.EstArrivalAirport
	var delta float64
	for _, ad := range s.deltas {
		if dep != "" && strings.HasPrefix(dep, ad.prefix) {
			delta += ad.delta
		}
		if arr != "" && strings.HasPrefix(arr, ad.prefix) {
			delta += ad.delta
		}
	}
	return delta
}
