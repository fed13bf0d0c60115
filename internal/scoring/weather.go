package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

// Detector inspects the body of a weather report and returns the feature
// multiplier for it. ok is false when the feature is absent.
type Detector func(body string) (value float64, ok bool)

// Detector names, in the order they are evaluated
const (
	DetectGust    = "gust_per_kt"
	DetectVis     = "vis"
	DetectRVR     = "rvr"
	DetectCeiling = "ceil"
	DetectRain    = "rain"
	DetectSnow    = "snow"
	DetectTCU     = "tcu"
	DetectThunder = "thunder"
)

// DetectorNames lists every known detector
var DetectorNames = []string{
	DetectGust, DetectVis, DetectRVR, DetectCeiling,
	DetectRain, DetectSnow, DetectTCU, DetectThunder,
}

var (
	gustRe    = regexp.MustCompile(`(?:^|\s)\d{3}(\d{2})G(\d{2,})KT(?:\s|$)`)
	visRe     = regexp.MustCompile(`(?:^|\s)(\d{4})(?:\s|$)`)
	rvrRe     = regexp.MustCompile(`(?:^|\s)R\d+[LCR]?/P\d+`)
	ceilingRe = regexp.MustCompile(`(?:^|\s)[A-Z]{3}(\d{3})`)
	timeRe    = regexp.MustCompile(`^\d{6}Z$`)
)

func phenomenon(code string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|\s)[+-]?(?:[A-Z]{2})*` + code + `(?:[A-Z]{2})*(?:\s|$)`)
}

var detectors = map[string]Detector{
	DetectGust: func(body string) (float64, bool) {
		m := gustRe.FindStringSubmatch(body)
		if m == nil {
			return 0, false
		}
		wind, _ := strconv.Atoi(m[1])
		gust, _ := strconv.Atoi(m[2])
		return float64(gust - wind), true
	},
	DetectVis: func(body string) (float64, bool) {
		m := visRe.FindStringSubmatch(body)
		if m == nil {
			return 0, false
		}
		if v, _ := strconv.Atoi(m[1]); v < 9999 {
			return 1, true
		}
		return 0, false
	},
	DetectRVR: matcher(rvrRe),
	DetectCeiling: func(body string) (float64, bool) {
		n := 0
		for _, m := range ceilingRe.FindAllStringSubmatch(body, -1) {
			if h, _ := strconv.Atoi(m[1]); h < 2 {
				n++
			}
		}
		return float64(n), n > 0
	},
	DetectRain:    matcher(phenomenon("RA")),
	DetectSnow:    matcher(phenomenon("SN")),
	DetectThunder: matcher(phenomenon("TS")),
	DetectTCU: func(body string) (float64, bool) {
		if strings.Contains(body, "TCU") {
			return 1, true
		}
		return 0, false
	},
}

func matcher(re *regexp.Regexp) Detector {
	return func(body string) (float64, bool) {
		if re.MatchString(body) {
			return 1, true
		}
		return 0, false
	}
}

// LookupDetector returns the detector registered under name
func LookupDetector(name string) (Detector, bool) {
	d, ok := detectors[name]
	return d, ok
}

// ReportBody strips the report type word, a COR marker and the station
// identifier from the head of a raw METAR, and the remarks section from its
// tail, so they are not read as weather. Whitespace runs are collapsed to
// single spaces.
func ReportBody(text string) string {
	fields := strings.Fields(text)
	typed := false
	if len(fields) > 0 && (fields[0] == "METAR" || fields[0] == "SPECI") {
		fields = fields[1:]
		typed = true
	}
	if len(fields) > 0 && fields[0] == "COR" {
		fields = fields[1:]
	}
	if len(fields) > 0 && (typed || (len(fields) > 1 && timeRe.MatchString(fields[1]))) {
		fields = fields[1:]
	}
	for i, f := range fields {
		if f == "RMK" {
			fields = fields[:i]
			break
		}
	}
	return strings.Join(fields, " ")
}

type weightedDetector struct {
	name      string
	detect    Detector
	magnitude float64
}

// Weather scores the departure and arrival reports of a candidate
type Weather struct {
	detectors []weightedDetector
}

// NewWeather builds the scorer from detector magnitudes. Detectors missing
// from the map are disabled; unknown names are ignored.
func NewWeather(magnitudes map[string]float64) Weather {
	var w Weather
	for _, name := range DetectorNames {
		m, ok := magnitudes[name]
		if !ok {
			continue
		}
		w.detectors = append(w.detectors, weightedDetector{name: name, detect: detectors[name], magnitude: m})
	}
	return w
}

func (Weather) Name() string { return "weather" }

func (w Weather) Score(c Candidate) float64 {
	return w.Report(c.DepartureWeather) + w.Report(c.ArrivalWeather)
}

// Report scores a single raw report
func (w Weather) Report(text string) float64 {
	body := ReportBody(text)
	if body == "" {
		return 0
	}
	var delta float64
	for _, d := range w.detectors {
		if v, ok := d.detect(body); ok {
			delta += d.magnitude * v
		}
	}
	return delta
}
