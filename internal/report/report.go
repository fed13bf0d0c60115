// Package report orders scored flights and renders them as text or JSON.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yegors/flightrec/internal/scoring"
)

const unknown = "?"

// Rank returns the flights ordered by descending score, then ascending callsign.
// Full ties keep their input order. The input slice is not modified.
func Rank(scored []scoring.Scored) []scoring.Scored {
	out := make([]scoring.Scored, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Flight.Callsign < out[j].Flight.Callsign
	})
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// Line renders one ranked flight. The score is truncated toward zero.
func Line(s scoring.Scored, withWeather bool) string {
	reg, typ := unknown, unknown
	if s.Aircraft != nil {
		reg, typ = orUnknown(s.Aircraft.Registration), orUnknown(s.Aircraft.Typecode)
	}
	line := fmt.Sprintf("%4d:\t%s - %s\t%sZ\t%s\t%s (%s)",
		int(s.Score),
		orUnknown(s.Flight.EstDepartureAirport),
		orUnknown(s.Flight.EstArrivalAirport),
		s.Flight.Departure().Format("1504"),
		orUnknown(s.Flight.Callsign),
		reg, typ,
	)
	if withWeather {
		line += fmt.Sprintf("\t%s -- %s", s.DepartureWeather, s.ArrivalWeather)
	}
	return line
}

// WriteText writes one line per flight in the given order
func WriteText(w io.Writer, ranked []scoring.Scored, withWeather bool) error {
	bw := bufio.NewWriter(w)
	for _, s := range ranked {
		if _, err := fmt.Fprintln(bw, Line(s, withWeather)); err != nil {
			return fmt.Errorf("failed to write report line: %w", err)
		}
	}
	return bw.Flush()
}

// Item is the JSON form of one ranked flight
type Item struct {
	Rank             int                `json:"rank"`
	Score            float64            `json:"score"`
	ICAO24           string             `json:"icao24"`
	Callsign         string             `json:"callsign,omitempty"`
	Departure        string             `json:"departure,omitempty"`
	Arrival          string             `json:"arrival,omitempty"`
	DepartureTime    time.Time          `json:"departure_time"`
	DurationMinutes  float64            `json:"duration_minutes"`
	Registration     string             `json:"registration,omitempty"`
	Typecode         string             `json:"typecode,omitempty"`
	DepartureWeather string             `json:"departure_weather,omitempty"`
	ArrivalWeather   string             `json:"arrival_weather,omitempty"`
	Breakdown        map[string]float64 `json:"breakdown,omitempty"`
}

// Report is the JSON document produced by one pipeline run
type Report struct {
	RunID       string    `json:"run_id"`
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Flights     []Item    `json:"flights"`
}

// Items converts ranked flights to their JSON form. breakdown may be nil.
func Items(ranked []scoring.Scored, breakdown func(scoring.Candidate) map[string]float64) []Item {
	items := make([]Item, 0, len(ranked))
	for i, s := range ranked {
		item := Item{
			Rank:             i + 1,
			Score:            s.Score,
			ICAO24:           s.Flight.ICAO24,
			Callsign:         s.Flight.Callsign,
			Departure:        s.Flight.EstDepartureAirport,
			Arrival:          s.Flight.EstArrivalAirport,
			DepartureTime:    s.Flight.Departure(),
			DurationMinutes:  s.Flight.DurationMinutes(),
			DepartureWeather: s.DepartureWeather,
			ArrivalWeather:   s.ArrivalWeather,
		}
		if s.Aircraft != nil {
			item.Registration = s.Aircraft.Registration
			item.Typecode = s.Aircraft.Typecode
		}
		if breakdown != nil {
			item.Breakdown = breakdown(s.Candidate)
		}
		items = append(items, item)
	}
	return items
}

// WriteJSON encodes the report
func WriteJSON(w io.Writer, r Report) error {
	if r.Flights == nil {
		r.Flights = []Item{}
	}
	r.Count = len(r.Flights)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
