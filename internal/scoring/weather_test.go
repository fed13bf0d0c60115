package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportBody(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"METAR LIRA 121250Z 24015G25KT 9999 FEW030 18/12 Q1013", "121250Z 24015G25KT 9999 FEW030 18/12 Q1013"},
		{"SPECI COR EGTS 121250Z 00000KT", "121250Z 00000KT"},
		{"EGTS 121250Z 00000KT  CAVOK", "121250Z 00000KT CAVOK"},
		{" 24015G25KT ", "24015G25KT"},
		{"KJFK 191251Z 24015KT 10SM FEW250 21/10 A3001 RMK AO2 TSNO SLP162", "191251Z 24015KT 10SM FEW250 21/10 A3001"},
		{"RMK AO2", ""},
		{"TSRA", "TSRA"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReportBody(tt.in), tt.in)
	}
}

func detect(t *testing.T, name, body string) (float64, bool) {
	t.Helper()
	d, ok := LookupDetector(name)
	if !assert.True(t, ok, name) {
		return 0, false
	}
	return d(body)
}

func TestDetectors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   float64
		wantOK bool
	}{
		{DetectGust, "24015G25KT", 10, true},
		{DetectGust, "121250Z 24015G25KT 18005G40KT", 10, true},
		{DetectGust, "24015KT", 0, false},
		{DetectVis, "24015KT 0800 BKN001", 1, true},
		{DetectVis, "24015KT 9999", 0, false},
		{DetectVis, "24015KT CAVOK", 0, false},
		{DetectRVR, "0800 R25/P1500", 1, true},
		{DetectRVR, "0800 R07L/P2000N", 1, true},
		{DetectRVR, "0800 R25/1200", 0, false},
		{DetectCeiling, "BKN001 OVC000 SCT002", 2, true},
		{DetectCeiling, "FEW030 BKN100", 0, false},
		{DetectRain, "-RA BR", 1, true},
		{DetectRain, "+SHRA", 1, true},
		{DetectRain, "VCTSRA", 1, true},
		{DetectRain, "BR", 0, false},
		{DetectSnow, "-SHSN", 1, true},
		{DetectSnow, "FZRA", 0, false},
		{DetectThunder, "TS", 1, true},
		{DetectThunder, "VCTS", 1, true},
		{DetectThunder, "SHRA", 0, false},
		{DetectTCU, "FEW020TCU", 1, true},
		{DetectTCU, "FEW020CB", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.body, func(t *testing.T) {
			got, ok := detect(t, tt.name, tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeatherGustScenario(t *testing.T) {
	w := NewWeather(map[string]float64{DetectGust: 2})
	c := candidate("EDDF", "EGLL", 60)
	c.DepartureWeather = " 24015G25KT "
	assert.Equal(t, 20.0, w.Score(c))
}

func TestWeatherIgnoresStationIdentifier(t *testing.T) {
	w := NewWeather(map[string]float64{DetectRain: -5, DetectThunder: -7})
	assert.Equal(t, 0.0, w.Report("METAR LIRA 121250Z 24005KT 9999 FEW030 18/12 Q1013"))
	assert.Equal(t, 0.0, w.Report("EGTS 121250Z 24005KT 9999 FEW030 18/12 Q1013"))
	assert.Equal(t, -12.0, w.Report("EGTS 121250Z 24005KT 4000 TSRA FEW030CB 18/12 Q1013"))
}

func TestWeatherBothEndpoints(t *testing.T) {
	w := NewWeather(map[string]float64{DetectVis: -3, DetectCeiling: -4, DetectTCU: 1})
	c := candidate("EDDF", "EGLL", 60)
	c.DepartureWeather = "EDDF 121250Z 24005KT 0400 BKN001 OVC001 12/12 Q1013"
	c.ArrivalWeather = "EGLL 121250Z 24005KT 9999 FEW020TCU 12/08 Q1013"
	assert.Equal(t, -3.0-8.0+1.0, w.Score(c))
}

func TestWeatherEmptyReports(t *testing.T) {
	w := NewWeather(map[string]float64{DetectGust: 2, DetectVis: -1})
	assert.Equal(t, 0.0, w.Score(candidate("EDDF", "EGLL", 60)))
}

func TestWeatherDisabledDetectors(t *testing.T) {
	w := NewWeather(map[string]float64{"hail": 10})
	assert.Equal(t, 0.0, w.Report("EDDF 121250Z 24015G35KT 0200 +TSRAGR"))
}

func TestWeatherIgnoresRemarks(t *testing.T) {
	w := NewWeather(map[string]float64{DetectThunder: 15, DetectCeiling: 10, DetectRain: 3})
	assert.Equal(t, 0.0, w.Report("KJFK 191251Z 24015KT 10SM FEW250 21/10 A3001 RMK AO2 TSNO SLP162"))
	assert.Equal(t, 0.0, w.Report("KJFK 191251Z 24015KT 10SM FEW250 21/10 A3001 RMK AO2 SLP001"))
	assert.Equal(t, 0.0, w.Report("METAR KORD 191251Z 24015KT 10SM SCT030 21/10 A3001 RMK AO2 RAB15E30 SLP162"))

	// weather before the remarks still counts
	assert.Equal(t, 18.0, w.Report("KJFK 191251Z 24015KT 3SM TSRA BKN030CB 21/19 A2992 RMK AO2 TSB45 SLP132"))
}
