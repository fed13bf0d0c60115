package flight

import (
	"strings"
	"time"
)

// Flight is one observed flight leg as reported by the flight-track source.
// Absent string fields are empty.
type Flight struct {
	ICAO24              string `json:"icao24"`
	Callsign            string `json:"callsign"`
	EstDepartureAirport string `json:"estDepartureAirport"`
	EstArrivalAirport   string `json:"estArrivalAirport"`
	FirstSeen           int64  `json:"firstSeen"`
	LastSeen            int64  `json:"lastSeen"`
}

// Normalize trims the padding the source leaves on callsigns and identifiers
func (f Flight) Normalize() Flight {
	f.ICAO24 = strings.ToLower(strings.TrimSpace(f.ICAO24))
	f.Callsign = strings.TrimSpace(f.Callsign)
	f.EstDepartureAirport = strings.TrimSpace(f.EstDepartureAirport)
	f.EstArrivalAirport = strings.TrimSpace(f.EstArrivalAirport)
	return f
}

// Departure returns firstSeen as a UTC time
func (f Flight) Departure() time.Time {
	return time.Unix(f.FirstSeen, 0).UTC()
}

// DurationMinutes returns lastSeen - firstSeen in (fractional) minutes
func (f Flight) DurationMinutes() float64 {
	return float64(f.LastSeen-f.FirstSeen) / 60
}
