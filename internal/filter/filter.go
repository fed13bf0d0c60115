// Package filter holds the order-preserving flight predicates.
package filter

import (
	"strings"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/flight"
)

// Filter narrows a flight list, keeping the relative order of survivors
type Filter func([]flight.Flight) []flight.Flight

// Chain applies filters in sequence
func Chain(flights []flight.Flight, filters ...Filter) []flight.Flight {
	for _, f := range filters {
		flights = f(flights)
	}
	return flights
}

func keep(flights []flight.Flight, pred func(flight.Flight) bool) []flight.Flight {
	out := make([]flight.Flight, 0, len(flights))
	for _, f := range flights {
		if pred(f) {
			out = append(out, f)
		}
	}
	return out
}

// hasPrefix reports whether s is present and starts with any of prefixes
func hasPrefix(s string, prefixes []string) bool {
	if s == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Region keeps flights whose departure and arrival airports both start with
// one of the ICAO region prefixes (not necessarily the same one)
func Region(prefixes []string) Filter {
	return func(flights []flight.Flight) []flight.Flight {
		return keep(flights, func(f flight.Flight) bool {
			return hasPrefix(f.EstDepartureAirport, prefixes) && hasPrefix(f.EstArrivalAirport, prefixes)
		})
	}
}

// Operator keeps flights whose callsign starts with one of the operator prefixes
func Operator(prefixes []string) Filter {
	return func(flights []flight.Flight) []flight.Flight {
		return keep(flights, func(f flight.Flight) bool {
			return hasPrefix(f.Callsign, prefixes)
		})
	}
}

// AircraftType keeps flights whose resolved typecode is one of allowed.
// Unknown aircraft and records without a typecode are dropped.
func AircraftType(lookup aircraft.Lookup, allowed []string) Filter {
	set := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		set[t] = true
	}
	return func(flights []flight.Flight) []flight.Flight {
		return keep(flights, func(f flight.Flight) bool {
			rec := lookup.Get(f.ICAO24)
			return rec != nil && rec.Typecode != "" && set[rec.Typecode]
		})
	}
}
